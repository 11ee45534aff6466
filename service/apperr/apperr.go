package apperr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// Kind classifies a failure surfaced to the dashboard user.
type Kind string

const (
	InvalidRecipient Kind = "InvalidRecipient"
	InvalidAmount    Kind = "InvalidAmount"
	WalletNotReady   Kind = "WalletNotReady"
	SimulationFailed Kind = "SimulationFailed"
	UserRejected     Kind = "UserRejected"
	NetworkFailure   Kind = "NetworkFailure"
	Unknown          Kind = "Unknown"
)

// Error is a classified failure. Message is safe to show to a user; Err keeps
// the underlying cause for logs and errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, apperr.New(apperr.InvalidAmount, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = DefaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a classified error carrying err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	if message == "" {
		message = DefaultMessage(kind)
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or Unknown when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// DefaultMessage is the user-facing text for each kind.
func DefaultMessage(kind Kind) string {
	switch kind {
	case InvalidRecipient:
		return "Invalid recipient address."
	case InvalidAmount:
		return "Invalid amount."
	case WalletNotReady:
		return "Please connect a wallet that can sign transactions."
	case SimulationFailed:
		return "Transaction simulation failed. Check balance or network status."
	case UserRejected:
		return "Transaction cancelled by user."
	case NetworkFailure:
		return "Network request failed."
	default:
		return "Transaction failed."
	}
}

// ErrUserRejected is returned by signers when the user declines to sign.
var ErrUserRejected = errors.New("User rejected the request")

// substring table checked in order; first match wins
var knownMessages = []struct {
	needle string
	kind   Kind
}{
	{"invalid public key input", InvalidRecipient},
	{"invalid base58", InvalidRecipient},
	{"user rejected", UserRejected},
	{"transaction simulation failed", SimulationFailed},
	{"insufficient funds", SimulationFailed},
	{"insufficient lamports", SimulationFailed},
	{"attempt to debit an account but found no record of a prior credit", SimulationFailed},
	{"blockhash not found", SimulationFailed},
	{"connection refused", NetworkFailure},
	{"no such host", NetworkFailure},
	{"429", NetworkFailure},
	{"too many requests", NetworkFailure},
}

// Classify maps an adapter error into the taxonomy. Already classified
// errors are returned unchanged; nil stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, ErrUserRejected) {
		return Wrap(UserRejected, "", err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Wrap(NetworkFailure, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(NetworkFailure, "Request timed out.", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(NetworkFailure, "", err)
	}

	msg := strings.ToLower(err.Error())
	for _, km := range knownMessages {
		if strings.Contains(msg, km.needle) {
			return Wrap(km.kind, "", err)
		}
	}

	return Wrap(Unknown, "", err)
}
