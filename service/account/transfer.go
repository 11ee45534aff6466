package account

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/brojonat/sollink/service/apperr"
	"github.com/brojonat/sollink/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var maxLamports = decimal.RequireFromString(strconv.FormatUint(math.MaxUint64, 10))

// ParseAmount parses a positive SOL amount and returns it with its lamport value.
func ParseAmount(s string) (decimal.Decimal, uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, 0, apperr.New(apperr.InvalidAmount, "Amount is required.")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, 0, apperr.Wrap(apperr.InvalidAmount, "Amount must be a number.", err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, 0, apperr.New(apperr.InvalidAmount, "Amount must be greater than zero.")
	}

	lamports := amount.Shift(NativeDecimals)
	if !lamports.Equal(lamports.Truncate(0)) {
		return decimal.Zero, 0, apperr.New(apperr.InvalidAmount, "Amount has more than 9 decimal places.")
	}
	if lamports.GreaterThan(maxLamports) {
		return decimal.Zero, 0, apperr.New(apperr.InvalidAmount, "Amount is too large.")
	}

	return amount, lamports.BigInt().Uint64(), nil
}

// ParseRecipient parses a base58 recipient address.
func ParseRecipient(s string) (solanago.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solanago.PublicKey{}, apperr.New(apperr.InvalidRecipient, "Recipient address is required.")
	}
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return solanago.PublicKey{}, apperr.Wrap(apperr.InvalidRecipient, "", err)
	}
	return pk, nil
}

// Transfer is a validated native SOL transfer.
type Transfer struct {
	From     solanago.PublicKey
	To       solanago.PublicKey
	Amount   decimal.Decimal
	Lamports uint64
}

// ValidateTransfer checks recipient, amount and wallet readiness, in that
// order, without touching the network.
func ValidateTransfer(w wallet.Wallet, recipient, amount string) (Transfer, error) {
	to, err := ParseRecipient(recipient)
	if err != nil {
		return Transfer{}, err
	}
	value, lamports, err := ParseAmount(amount)
	if err != nil {
		return Transfer{}, err
	}
	if w == nil || !w.Connected() {
		return Transfer{}, wallet.ErrNotConnected
	}
	if !wallet.CanSign(w) {
		return Transfer{}, wallet.ErrCannotSign
	}
	return Transfer{
		From:     w.PublicKey(),
		To:       to,
		Amount:   value,
		Lamports: lamports,
	}, nil
}

// BuildTransfer creates an unsigned transfer with a fresh blockhash and the
// sender as fee payer.
func (s *Service) BuildTransfer(ctx context.Context, t Transfer) (*solanago.Transaction, error) {
	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkFailure, "Failed to fetch recent blockhash.", err)
	}

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{
			system.NewTransferInstruction(t.Lamports, t.From, t.To).Build(),
		},
		blockhash,
		solanago.TransactionPayer(t.From),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unknown, "Failed to build transaction.", err)
	}
	return tx, nil
}

// Submit broadcasts a signed transaction.
func (s *Service) Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	sig, err := s.chain.SendTransaction(ctx, tx)
	if err != nil {
		return solanago.Signature{}, apperr.Classify(err)
	}
	return sig, nil
}

// Confirm waits until signature reaches commitment.
func (s *Service) Confirm(ctx context.Context, signature solanago.Signature, commitment rpc.CommitmentType) error {
	if err := s.chain.ConfirmTransaction(ctx, signature, commitment); err != nil {
		return apperr.Classify(err)
	}
	return nil
}

// SubmitTransfer validates, builds, signs and submits a transfer from w.
// It does not wait for confirmation.
func (s *Service) SubmitTransfer(ctx context.Context, w wallet.Wallet, recipient, amount string) (solanago.Signature, error) {
	t, err := ValidateTransfer(w, recipient, amount)
	if err != nil {
		return solanago.Signature{}, err
	}

	tx, err := s.BuildTransfer(ctx, t)
	if err != nil {
		return solanago.Signature{}, err
	}

	sig, err := wallet.SendTransaction(ctx, w, tx, s.chain)
	if err != nil {
		return solanago.Signature{}, apperr.Classify(err)
	}

	s.logger.InfoContext(ctx, "transfer submitted",
		"from", t.From.String(),
		"to", t.To.String(),
		"lamports", t.Lamports,
		"signature", sig.String(),
	)
	return sig, nil
}
