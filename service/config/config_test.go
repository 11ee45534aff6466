package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, NetworkDevnet, cfg.Network)
	assert.Equal(t, rpc.DevNet_RPC, cfg.SolanaRPCURL)
	assert.Equal(t, "explorer.solana.com", cfg.ExplorerHost)
	assert.Equal(t, rpc.CommitmentProcessed, cfg.Commitment)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 5.0, cfg.RPCRateLimit)
	assert.Empty(t, cfg.WalletKeypairPath)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLANA_NETWORK", "mainnet")
	t.Setenv("SOLANA_RPC_URL", "https://mainnet.helius-rpc.com/?api-key=secret")
	t.Setenv("COMMITMENT", "confirmed")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("RPC_RATE_LIMIT", "0")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("TOKEN_SYMBOLS", "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB=USDT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, NetworkMainnet, cfg.Network)
	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=secret", cfg.SolanaRPCURL)
	assert.Equal(t, rpc.CommitmentConfirmed, cfg.Commitment)
	assert.Equal(t, 25, cfg.HistoryLimit)
	assert.Equal(t, 0.0, cfg.RPCRateLimit)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)

	symbols := cfg.TokenSymbols()
	assert.Equal(t, "USDT", symbols["Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"])
	assert.Equal(t, "USDC", symbols[USDCMainnetMintAddress])
	assert.NotContains(t, symbols, USDCDevnetMintAddress)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown network", "SOLANA_NETWORK", "localnet-ish", "invalid network"},
		{"bad commitment", "COMMITMENT", "recent", "invalid commitment"},
		{"bad history limit", "HISTORY_LIMIT", "ten", "invalid integer"},
		{"history limit out of range", "HISTORY_LIMIT", "5000", "HistoryLimit must be between"},
		{"bad duration", "FETCH_TIMEOUT", "soon", "invalid duration"},
		{"bad rate", "RPC_RATE_LIMIT", "fast", "invalid number"},
		{"bad token symbols", "TOKEN_SYMBOLS", "not-a-pair", "expected MINT=SYMBOL"},
		{"bad token mint", "TOKEN_SYMBOLS", "nope=USDT", "invalid mint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HISTORY_LIMIT=42\nEXPLORER_HOST=solscan.io\n"), 0o600))

	t.Chdir(dir)
	// godotenv sets process env directly; register cleanup through t.Setenv.
	t.Setenv("HISTORY_LIMIT", "")
	t.Setenv("EXPLORER_HOST", "")
	os.Unsetenv("HISTORY_LIMIT")
	os.Unsetenv("EXPLORER_HOST")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.HistoryLimit)
	assert.Equal(t, "solscan.io", cfg.ExplorerHost)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Network:        NetworkDevnet,
		SolanaRPCURL:   rpc.DevNet_RPC,
		ExplorerHost:   "explorer.solana.com",
		HistoryLimit:   10,
		FetchTimeout:   15 * time.Second,
		ConfirmTimeout: time.Minute,
	}
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.SolanaRPCURL = ""
	invalid.FetchTimeout = time.Millisecond
	err := invalid.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SolanaRPCURL is required")
	assert.Contains(t, err.Error(), "FetchTimeout must be at least 1 second")
}

func TestDefaultRPCURL(t *testing.T) {
	assert.Equal(t, rpc.MainNetBeta_RPC, DefaultRPCURL(NetworkMainnet))
	assert.Equal(t, rpc.TestNet_RPC, DefaultRPCURL(NetworkTestnet))
	assert.Equal(t, rpc.DevNet_RPC, DefaultRPCURL(NetworkDevnet))
}

func TestRPCEndpoints(t *testing.T) {
	cfg := Config{SolanaRPCURL: "https://a.example.com, https://b.example.com,,"}
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RPCEndpoints())
}
