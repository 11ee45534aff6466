package dashboard

import (
	"errors"
	"time"

	"github.com/brojonat/sollink/service/account"
	"github.com/brojonat/sollink/service/apperr"
	"github.com/google/uuid"
)

// Status is the tag of a per-category State.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// ErrorInfo is a classified error as shown to the user.
type ErrorInfo struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func errorInfo(err error) *ErrorInfo {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Classify(err)
	}
	return &ErrorInfo{Kind: e.Kind, Message: e.Message}
}

// State is one data category: Idle, Loading, Loaded(Data) or Failed(Error).
// Data is only meaningful when Loaded; Error only when Failed.
type State[T any] struct {
	Status    Status     `json:"status"`
	Data      T          `json:"data"`
	Error     *ErrorInfo `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func idle[T any]() State[T] {
	return State[T]{Status: StatusIdle}
}

func loading[T any]() State[T] {
	return State[T]{Status: StatusLoading, UpdatedAt: time.Now()}
}

func loaded[T any](data T) State[T] {
	return State[T]{Status: StatusLoaded, Data: data, UpdatedAt: time.Now()}
}

func failed[T any](err error) State[T] {
	return State[T]{Status: StatusFailed, Error: errorInfo(err), UpdatedAt: time.Now()}
}

// SendPhase is the position of the send state machine.
type SendPhase string

const (
	PhaseIdle                 SendPhase = "idle"
	PhaseValidating           SendPhase = "validating"
	PhaseBuilding             SendPhase = "building"
	PhaseAwaitingSignature    SendPhase = "awaiting_signature"
	PhaseSubmitting           SendPhase = "submitting"
	PhaseAwaitingConfirmation SendPhase = "awaiting_confirmation"
	PhaseConfirmed            SendPhase = "confirmed"
	PhaseFailed               SendPhase = "failed"
)

// SendRequest is the transient input of one send. It is cleared when the
// machine returns to Idle.
type SendRequest struct {
	ID        uuid.UUID `json:"id"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
}

// SendOutcome is the result of the last completed send.
type SendOutcome struct {
	RequestID   uuid.UUID  `json:"request_id"`
	Phase       SendPhase  `json:"phase"` // Confirmed or Failed
	Signature   string     `json:"signature,omitempty"`
	ExplorerURL string     `json:"explorer_url,omitempty"`
	Error       *ErrorInfo `json:"error,omitempty"`
	At          time.Time  `json:"at"`
}

// SendState is the send machine as rendered.
type SendState struct {
	Phase   SendPhase    `json:"phase"`
	Request *SendRequest `json:"request,omitempty"`
	Last    *SendOutcome `json:"last,omitempty"`
}

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	Address   string                        `json:"address"`
	Connected bool                          `json:"connected"`
	CanSign   bool                          `json:"can_sign"`
	Network   string                        `json:"network"`
	Balance   State[account.Balance]        `json:"balance"`
	Tokens    State[[]account.TokenBalance] `json:"tokens"`
	History   State[[]account.Transaction]  `json:"history"`
	Send      SendState                     `json:"send"`
}
