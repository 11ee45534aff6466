package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/sollink/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	SendTransaction(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

// ErrTransactionFailed is returned by ConfirmTransaction when the cluster
// reports an execution error for the signature.
var ErrTransactionFailed = errors.New("transaction failed on chain")

// DefaultConfirmPollInterval is how often ConfirmTransaction asks for signature status.
const DefaultConfirmPollInterval = 500 * time.Millisecond

// Client is the chain boundary used by the dashboard. It wraps the RPC client
// with rate limiting, metrics and logging, and converts responses into domain types.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // RPC endpoint identifier for metrics (e.g., "devnet", rpc host)
	commitment   rpc.CommitmentType
	limiter      *rate.Limiter
	pollInterval time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet-beta", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		commitment:   rpc.CommitmentProcessed,
		pollInterval: DefaultConfirmPollInterval,
	}
}

// WithCommitment sets the commitment used for reads and preflight.
func (c *Client) WithCommitment(commitment rpc.CommitmentType) *Client {
	c.commitment = commitment
	return c
}

// WithRateLimit caps outgoing RPC calls to rps requests per second.
// Zero or negative disables limiting.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	burst := max(int(rps), 1)
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithPollInterval overrides the confirmation polling interval.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	c.pollInterval = d
	return c
}

// Commitment returns the configured commitment level.
func (c *Client) Commitment() rpc.CommitmentType {
	return c.commitment
}

// call runs one RPC round trip behind the rate limiter and records its outcome.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", method, err)
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimitWait(c.endpoint, time.Since(waitStart).Seconds())
		}
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.DebugContext(ctx, "rpc call failed",
			"method", method,
			"endpoint", c.endpoint,
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	}
	return err
}

// GetBalance returns the native balance of an account in lamports.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var result *rpc.GetBalanceResult
	err := c.call(ctx, "GetBalance", func() (err error) {
		result, err = c.rpc.GetBalance(ctx, account, c.commitment)
		return err
	})
	if err != nil {
		return 0, err
	}
	if result == nil {
		return 0, fmt.Errorf("empty balance response for %s", account)
	}
	return result.Value, nil
}

// GetSignatures returns up to limit signature records for an address, in the
// order the node returns them (newest first).
func (c *Client) GetSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.readCommitment(),
	}

	var signatures []*rpc.TransactionSignature
	err := c.call(ctx, "GetSignaturesForAddress", func() (err error) {
		signatures, err = c.rpc.GetSignaturesForAddress(ctx, address, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"address", address.String(),
		"count", len(signatures),
	)
	return signatures, nil
}

// GetLatestBlockhash returns a recent blockhash for building transactions.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var result *rpc.GetLatestBlockhashResult
	err := c.call(ctx, "GetLatestBlockhash", func() (err error) {
		result, err = c.rpc.GetLatestBlockhash(ctx, c.commitment)
		return err
	})
	if err != nil {
		return solana.Hash{}, err
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty blockhash response")
	}
	return result.Value.Blockhash, nil
}

// GetTokenAccounts returns every SPL Token and Token-2022 account owned by owner.
func (c *Client) GetTokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, error) {
	var all []TokenAccount
	for _, programID := range []solana.PublicKey{TokenProgramID, Token2022ProgramID} {
		conf := &rpc.GetTokenAccountsConfig{ProgramId: &programID}
		opts := &rpc.GetTokenAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingJSONParsed,
		}

		var result *rpc.GetTokenAccountsResult
		err := c.call(ctx, "GetTokenAccountsByOwner", func() (err error) {
			result, err = c.rpc.GetTokenAccountsByOwner(ctx, owner, conf, opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		accounts, err := parseTokenAccounts(result)
		if err != nil {
			return nil, err
		}
		all = append(all, accounts...)
	}

	c.logger.DebugContext(ctx, "fetched token accounts",
		"owner", owner.String(),
		"count", len(all),
	)
	return all, nil
}

// GetTransaction fetches and parses a specific transaction by signature.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*Transaction, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.readCommitment(),
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	var result *rpc.GetTransactionResult
	err := c.call(ctx, "GetTransaction", func() (err error) {
		result, err = c.rpc.GetTransaction(ctx, signature, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return parseTransactionFromResult(signature, result)
}

// SendTransaction submits a signed transaction and returns its signature.
// Preflight simulation runs at the configured commitment.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	}

	var signature solana.Signature
	err := c.call(ctx, "SendTransaction", func() (err error) {
		signature, err = c.rpc.SendTransaction(ctx, tx, opts)
		return err
	})
	if err != nil {
		return solana.Signature{}, err
	}

	c.logger.InfoContext(ctx, "transaction submitted",
		"signature", signature.String(),
		"endpoint", c.endpoint,
	)
	return signature, nil
}

// ConfirmTransaction polls the signature status until it reaches the given
// commitment, the cluster reports an execution error, or ctx is done.
func (c *Client) ConfirmTransaction(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	start := time.Now()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var result *rpc.GetSignatureStatusesResult
		err := c.call(ctx, "GetSignatureStatuses", func() (err error) {
			result, err = c.rpc.GetSignatureStatuses(ctx, true, signature)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WarnContext(ctx, "signature status poll failed, retrying",
				"signature", signature.String(),
				"error", err,
			)
		} else if result != nil && len(result.Value) > 0 && result.Value[0] != nil {
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if reachedCommitment(status.ConfirmationStatus, commitment) {
				if c.metrics != nil {
					c.metrics.RecordConfirmDuration(string(commitment), time.Since(start).Seconds())
				}
				c.logger.InfoContext(ctx, "transaction confirmed",
					"signature", signature.String(),
					"status", status.ConfirmationStatus,
					"duration", time.Since(start),
				)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readCommitment maps processed to confirmed for methods that reject processed.
func (c *Client) readCommitment() rpc.CommitmentType {
	if c.commitment == rpc.CommitmentProcessed {
		return rpc.CommitmentConfirmed
	}
	return c.commitment
}

func commitmentRank(status rpc.ConfirmationStatusType) int {
	switch status {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	default:
		return 0
	}
}

func reachedCommitment(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	return commitmentRank(status) >= commitmentRank(rpc.ConfirmationStatusType(want)) && commitmentRank(status) > 0
}
