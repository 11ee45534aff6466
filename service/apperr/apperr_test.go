package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid public key", errors.New("Invalid public key input"), InvalidRecipient},
		{"simulation failed", errors.New("(*jsonrpc.RPCError)(0xc000){Code:-32002, Message:\"Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.\"}"), SimulationFailed},
		{"user rejected text", errors.New("WalletSignTransactionError: User rejected the request."), UserRejected},
		{"user rejected sentinel", fmt.Errorf("sign: %w", ErrUserRejected), UserRejected},
		{"deadline", fmt.Errorf("rpc: %w", context.DeadlineExceeded), NetworkFailure},
		{"rate limited", errors.New("HTTP 429 Too Many Requests"), NetworkFailure},
		{"unrecognized", errors.New("something odd happened"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.NotEmpty(t, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_KeepsClassifiedErrors(t *testing.T) {
	orig := New(InvalidAmount, "")
	wrapped := fmt.Errorf("send: %w", orig)

	got := Classify(wrapped)
	assert.Same(t, orig, got)
	assert.Equal(t, "Invalid amount.", got.Message)
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("validate: %w", Wrap(InvalidRecipient, "", errors.New("bad")))

	assert.True(t, errors.Is(err, New(InvalidRecipient, "")))
	assert.False(t, errors.Is(err, New(InvalidAmount, "")))
	assert.Equal(t, InvalidRecipient, KindOf(err))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
}
