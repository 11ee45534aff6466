// Package account translates chain responses into display-ready balances,
// token holdings and transaction summaries, and owns transfer construction.
package account

import (
	"cmp"
	"context"
	"log/slog"
	"math/big"
	"slices"
	"time"

	"github.com/brojonat/sollink/service/apperr"
	"github.com/brojonat/sollink/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 1000

	detailConcurrency = 8

	// NativeMint identifies the native SOL entry in a token list.
	NativeMint     = "So11111111111111111111111111111111111111112"
	NativeSymbol   = "SOL"
	NativeDecimals = 9
)

// ChainClient is the subset of the Solana client the service needs.
type ChainClient interface {
	GetBalance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	GetSignatures(ctx context.Context, address solanago.PublicKey, limit int) ([]*rpc.TransactionSignature, error)
	GetLatestBlockhash(ctx context.Context) (solanago.Hash, error)
	GetTokenAccounts(ctx context.Context, owner solanago.PublicKey) ([]solana.TokenAccount, error)
	GetTransaction(ctx context.Context, signature solanago.Signature) (*solana.Transaction, error)
	SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	ConfirmTransaction(ctx context.Context, signature solanago.Signature, commitment rpc.CommitmentType) error
}

// Balance is the native balance of an account.
type Balance struct {
	Lamports uint64          `json:"lamports"`
	SOL      decimal.Decimal `json:"sol"`
}

// TokenBalance is one held token account. Symbol is nil for unknown mints.
type TokenBalance struct {
	Symbol   *string         `json:"symbol"`
	Mint     string          `json:"mint"`
	Amount   decimal.Decimal `json:"amount"`
	Decimals uint8           `json:"decimals"`
}

// Transaction is a history entry built from the signature list. Amount and
// Recipient stay nil unless Detailed is set. Mint is nil for native SOL
// transfers; for token transfers Recipient is the destination token account.
type Transaction struct {
	ID        string           `json:"id"`
	Signature string           `json:"signature"`
	Timestamp int64            `json:"timestamp"` // epoch milliseconds
	Slot      uint64           `json:"slot"`
	Amount    *decimal.Decimal `json:"amount"`
	Recipient *string          `json:"recipient"`
	Mint      *string          `json:"mint,omitempty"`
	Symbol    *string          `json:"symbol,omitempty"`
	Err       *string          `json:"err,omitempty"`
	Detailed  bool             `json:"detailed"`
}

// HistoryOptions controls FetchTransactionHistory.
type HistoryOptions struct {
	Limit    int
	Detailed bool // fetch each transaction to resolve amount and recipient
}

// Service is the account data service.
type Service struct {
	chain   ChainClient
	symbols map[string]string
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an account data service. symbols maps mint addresses to
// display symbols; it may be nil.
func NewService(chain ChainClient, symbols map[string]string, logger *slog.Logger) *Service {
	return &Service{
		chain:   chain,
		symbols: symbols,
		logger:  logger,
		now:     time.Now,
	}
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return uint64Decimal(lamports).Shift(-NativeDecimals)
}

func uint64Decimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// FetchBalance returns the native balance of address.
func (s *Service) FetchBalance(ctx context.Context, address solanago.PublicKey) (Balance, error) {
	lamports, err := s.chain.GetBalance(ctx, address)
	if err != nil {
		return Balance{}, apperr.Wrap(apperr.NetworkFailure, "Failed to fetch balance.", err)
	}
	return Balance{Lamports: lamports, SOL: LamportsToSOL(lamports)}, nil
}

// FetchTokenBalances returns the native SOL entry followed by every SPL token
// account owned by address.
func (s *Service) FetchTokenBalances(ctx context.Context, address solanago.PublicKey) ([]TokenBalance, error) {
	lamports, err := s.chain.GetBalance(ctx, address)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkFailure, "Failed to fetch token balances.", err)
	}

	accounts, err := s.chain.GetTokenAccounts(ctx, address)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkFailure, "Failed to fetch token balances.", err)
	}

	native := NativeSymbol
	balances := make([]TokenBalance, 0, len(accounts)+1)
	balances = append(balances, TokenBalance{
		Symbol:   &native,
		Mint:     NativeMint,
		Amount:   LamportsToSOL(lamports),
		Decimals: NativeDecimals,
	})

	for _, acct := range accounts {
		raw, err := decimal.NewFromString(acct.Amount)
		if err != nil {
			return nil, apperr.Wrap(apperr.NetworkFailure, "Failed to fetch token balances.", err)
		}
		balances = append(balances, TokenBalance{
			Symbol:   s.symbolFor(acct.Mint),
			Mint:     acct.Mint,
			Amount:   raw.Shift(-int32(acct.Decimals)),
			Decimals: acct.Decimals,
		})
	}

	s.logger.DebugContext(ctx, "fetched token balances",
		"address", address.String(),
		"count", len(balances),
	)
	return balances, nil
}

func (s *Service) symbolFor(mint string) *string {
	symbol, ok := s.symbols[mint]
	if !ok {
		return nil
	}
	return &symbol
}

// FetchTransactionHistory lists recent transactions for address, newest first.
// Entries with equal timestamps are ordered by signature.
func (s *Service) FetchTransactionHistory(ctx context.Context, address solanago.PublicKey, opts HistoryOptions) ([]Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	signatures, err := s.chain.GetSignatures(ctx, address, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkFailure, "Failed to fetch transaction history.", err)
	}

	fetchedAt := s.now().UnixMilli()
	history := make([]Transaction, 0, len(signatures))
	sigs := make([]solanago.Signature, 0, len(signatures))
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		txn := Transaction{
			ID:        sig.Signature.String(),
			Signature: sig.Signature.String(),
			Timestamp: fetchedAt,
			Slot:      sig.Slot,
		}
		if sig.BlockTime != nil {
			txn.Timestamp = sig.BlockTime.Time().UnixMilli()
		}
		if sig.Err != nil {
			msg := "transaction failed"
			txn.Err = &msg
		}
		history = append(history, txn)
		sigs = append(sigs, sig.Signature)
	}

	if opts.Detailed {
		p := pool.New().WithMaxGoroutines(detailConcurrency)
		for i := range history {
			txn := &history[i]
			signature := sigs[i]
			p.Go(func() {
				s.resolveDetail(ctx, signature, txn)
			})
		}
		p.Wait()
	}

	SortHistory(history)
	return history, nil
}

// resolveDetail fills Amount and Recipient from the full transaction. Only a
// native transfer, or a token transfer whose mint and decimals are known, is
// resolved; anything else is left as a summary.
func (s *Service) resolveDetail(ctx context.Context, signature solanago.Signature, txn *Transaction) {
	detail, err := s.chain.GetTransaction(ctx, signature)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve transaction detail, using summary",
			"signature", signature.String(),
			"error", err,
		)
		return
	}

	var amount decimal.Decimal
	switch {
	case detail.Kind == solana.TransferNative:
		amount = LamportsToSOL(detail.Amount)
	case detail.Kind == solana.TransferToken && detail.TokenMint != nil && detail.Decimals != nil:
		amount = uint64Decimal(detail.Amount).Shift(-int32(*detail.Decimals))
		txn.Mint = detail.TokenMint
		txn.Symbol = s.symbolFor(*detail.TokenMint)
	default:
		s.logger.DebugContext(ctx, "no resolvable transfer, using summary",
			"signature", signature.String(),
			"kind", detail.Kind.String(),
		)
		return
	}
	txn.Amount = &amount
	txn.Recipient = detail.ToAddress
	txn.Detailed = true
}

// SortHistory orders entries newest first, breaking ties by signature.
func SortHistory(history []Transaction) {
	slices.SortStableFunc(history, func(a, b Transaction) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Signature, b.Signature)
	})
}
