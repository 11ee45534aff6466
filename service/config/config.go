package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
)

// Supported cluster names. These double as the explorer "cluster" query value.
const (
	NetworkMainnet = "mainnet-beta"
	NetworkDevnet  = "devnet"
	NetworkTestnet = "testnet"
)

// Well-known mints that get a symbol without any configuration.
const (
	USDCMainnetMintAddress = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCDevnetMintAddress  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	WrappedSOLMintAddress  = "So11111111111111111111111111111111111111112"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	Network      string
	SolanaRPCURL string
	ExplorerHost string
	Commitment   rpc.CommitmentType
	RPCRateLimit float64 // requests per second, 0 disables limiting

	// Dashboard configuration
	HistoryLimit   int
	FetchTimeout   time.Duration
	ConfirmTimeout time.Duration

	// Optional local signer. Empty means the dashboard is watch-only.
	WalletKeypairPath string

	// NATS configuration. Empty disables notification streaming.
	NATSURL string

	// Extra mint -> symbol entries on top of the built-in registry.
	ExtraTokenSymbols map[string]string
}

// Load reads configuration from environment variables and validates all required fields.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence.
// Returns an error if any configuration is invalid.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	network, err := normalizeNetwork(getEnvOrDefault("SOLANA_NETWORK", NetworkDevnet))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Network = network
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultRPCURL(network))
	cfg.ExplorerHost = getEnvOrDefault("EXPLORER_HOST", "explorer.solana.com")

	commitment, err := parseCommitment(getEnvOrDefault("COMMITMENT", string(rpc.CommitmentProcessed)))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Commitment = commitment

	rateLimit, err := parseFloat("RPC_RATE_LIMIT", 5)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RPCRateLimit = rateLimit

	// Dashboard configuration
	historyLimit, err := parseInt("HISTORY_LIMIT", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.HistoryLimit = historyLimit

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.FetchTimeout = fetchTimeout

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ConfirmTimeout = confirmTimeout

	cfg.WalletKeypairPath = os.Getenv("WALLET_KEYPAIR_PATH")
	cfg.NATSURL = os.Getenv("NATS_URL")

	symbols, err := parseTokenSymbols(os.Getenv("TOKEN_SYMBOLS"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ExtraTokenSymbols = symbols

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if _, err := normalizeNetwork(c.Network); err != nil {
		errs = append(errs, err)
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.ExplorerHost == "" {
		errs = append(errs, fmt.Errorf("ExplorerHost is required"))
	}

	if c.HistoryLimit < 1 || c.HistoryLimit > 1000 {
		errs = append(errs, fmt.Errorf("HistoryLimit must be between 1 and 1000, got %d", c.HistoryLimit))
	}

	if c.RPCRateLimit < 0 {
		errs = append(errs, fmt.Errorf("RPCRateLimit cannot be negative"))
	}

	if c.FetchTimeout < time.Second {
		errs = append(errs, fmt.Errorf("FetchTimeout must be at least 1 second"))
	}

	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// TokenSymbols returns the mint -> symbol registry for the configured network.
func (c *Config) TokenSymbols() map[string]string {
	symbols := map[string]string{
		WrappedSOLMintAddress: "wSOL",
	}
	switch c.Network {
	case NetworkMainnet:
		symbols[USDCMainnetMintAddress] = "USDC"
	default:
		symbols[USDCDevnetMintAddress] = "USDC"
	}
	for mint, symbol := range c.ExtraTokenSymbols {
		symbols[mint] = symbol
	}
	return symbols
}

// RPCEndpoints splits SOLANA_RPC_URL on commas so several providers can be listed.
func (c *Config) RPCEndpoints() []string {
	var endpoints []string
	for _, e := range strings.Split(c.SolanaRPCURL, ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	return endpoints
}

// DefaultRPCURL returns the public RPC endpoint for a cluster.
func DefaultRPCURL(network string) string {
	switch network {
	case NetworkMainnet:
		return rpc.MainNetBeta_RPC
	case NetworkTestnet:
		return rpc.TestNet_RPC
	default:
		return rpc.DevNet_RPC
	}
}

func normalizeNetwork(network string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "mainnet", NetworkMainnet:
		return NetworkMainnet, nil
	case NetworkDevnet:
		return NetworkDevnet, nil
	case NetworkTestnet:
		return NetworkTestnet, nil
	default:
		return "", fmt.Errorf("SOLANA_NETWORK: invalid network %q: must be mainnet-beta, devnet or testnet", network)
	}
}

func parseCommitment(value string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(value); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	default:
		return "", fmt.Errorf("COMMITMENT: invalid commitment %q: must be processed, confirmed or finalized", value)
	}
}

// parseTokenSymbols parses "MINT=SYMBOL,MINT=SYMBOL".
func parseTokenSymbols(value string) (map[string]string, error) {
	symbols := make(map[string]string)
	if strings.TrimSpace(value) == "" {
		return symbols, nil
	}
	for _, pair := range strings.Split(value, ",") {
		mint, symbol, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || mint == "" || symbol == "" {
			return nil, fmt.Errorf("TOKEN_SYMBOLS: invalid entry %q: expected MINT=SYMBOL", pair)
		}
		if _, err := solana.PublicKeyFromBase58(mint); err != nil {
			return nil, fmt.Errorf("TOKEN_SYMBOLS: invalid mint %q: %w", mint, err)
		}
		symbols[mint] = symbol
	}
	return symbols, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
