package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/brojonat/sollink/service/apperr"
	"github.com/brojonat/sollink/service/dashboard"
	"github.com/brojonat/sollink/service/wallet"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // Solana addresses are 32-44 chars, give buffer
	maxAmountLength    = 64
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// Dashboard is the controller surface the HTTP handlers drive.
type Dashboard interface {
	Connect(ctx context.Context, w wallet.Wallet) (dashboard.Snapshot, error)
	Disconnect()
	Refresh(ctx context.Context) (dashboard.Snapshot, error)
	Send(ctx context.Context, recipient, amount string) (dashboard.SendOutcome, error)
	Snapshot() dashboard.Snapshot
}

type connectRequest struct {
	Address string `json:"address"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Kind    apperr.Kind            `json:"kind,omitempty"`
	Outcome *dashboard.SendOutcome `json:"outcome,omitempty"`
}

// handleConnect returns a handler that connects a wallet to the dashboard.
// POST /api/v1/connect {"address": "..."}
// An empty address, or the address of the configured keypair, connects the
// keypair wallet. Any other address is connected watch-only.
func handleConnect(dash Dashboard, keypair wallet.Wallet, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req connectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Address = strings.TrimSpace(req.Address)

		var target wallet.Wallet
		switch {
		case keypair != nil && (req.Address == "" || req.Address == keypair.PublicKey().String()):
			target = keypair
		case req.Address == "":
			writeError(w, "address is required: no keypair wallet is configured", http.StatusBadRequest)
			return
		default:
			if err := validateAddress(req.Address); err != nil {
				logger.Debug("invalid address", "address", req.Address, "error", err)
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			watch, err := wallet.NewWatch(req.Address)
			if err != nil {
				writeAppError(w, err, nil)
				return
			}
			target = watch
		}

		snap, err := dash.Connect(r.Context(), target)
		if err != nil {
			logger.Error("failed to connect wallet", "address", req.Address, "error", err)
			writeAppError(w, err, nil)
			return
		}

		logger.Info("wallet connected via API", "address", snap.Address, "can_sign", snap.CanSign)
		writeJSON(w, snap, http.StatusOK)
	})
}

// handleDisconnect returns a handler that disconnects the current wallet.
// POST /api/v1/disconnect
func handleDisconnect(dash Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dash.Disconnect()
		logger.Info("wallet disconnected via API")
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleGetDashboard returns a handler that serves the current snapshot.
// GET /api/v1/dashboard
func handleGetDashboard(dash Dashboard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, dash.Snapshot(), http.StatusOK)
	})
}

// handleRefresh returns a handler that re-fetches every category.
// POST /api/v1/refresh
// Per-category failures are reported inside the snapshot, not as an HTTP error.
func handleRefresh(dash Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := dash.Refresh(r.Context())
		if err != nil {
			logger.Debug("refresh rejected", "error", err)
			writeAppError(w, err, nil)
			return
		}
		writeJSON(w, snap, http.StatusOK)
	})
}

// handleTransfer returns a handler that runs the send flow.
// POST /api/v1/transfers {"recipient": "...", "amount": "0.5"}
// The request blocks until the transfer is confirmed or fails.
func handleTransfer(dash Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Recipient) > maxAddressLength {
			writeError(w, fmt.Sprintf("recipient too long: maximum length is %d characters", maxAddressLength), http.StatusBadRequest)
			return
		}
		if len(req.Amount) > maxAmountLength {
			writeError(w, fmt.Sprintf("amount too long: maximum length is %d characters", maxAmountLength), http.StatusBadRequest)
			return
		}

		outcome, err := dash.Send(r.Context(), req.Recipient, req.Amount)
		if errors.Is(err, dashboard.ErrSendInFlight) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			logger.Info("transfer failed", "recipient", req.Recipient, "kind", apperr.KindOf(err), "error", err)
			writeAppError(w, err, &outcome)
			return
		}

		logger.Info("transfer confirmed", "recipient", req.Recipient, "signature", outcome.Signature)
		writeJSON(w, outcome, http.StatusOK)
	})
}

// decodeBody decodes a size-limited JSON body into v. It writes the error
// response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// statusForKind maps an error kind to the HTTP status returned for it.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidRecipient, apperr.InvalidAmount:
		return http.StatusBadRequest
	case apperr.WalletNotReady:
		return http.StatusConflict
	case apperr.UserRejected:
		return http.StatusForbidden
	case apperr.SimulationFailed:
		return http.StatusUnprocessableEntity
	case apperr.NetworkFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, errorResponse{Error: message}, statusCode)
}

// writeAppError writes a classified error as {error, kind}.
func writeAppError(w http.ResponseWriter, err error, outcome *dashboard.SendOutcome) {
	if errors.Is(err, dashboard.ErrClosed) {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Classify(err)
	}
	writeJSON(w, errorResponse{Error: e.Message, Kind: e.Kind, Outcome: outcome}, statusForKind(e.Kind))
}

// validateAddress validates a wallet address for format before it is parsed.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
