package account

import (
	"context"
	"errors"
	"testing"

	"github.com/brojonat/sollink/service/apperr"
	"github.com/brojonat/sollink/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rejectingWallet is connected and signing-capable but declines every request.
type rejectingWallet struct {
	key solanago.PublicKey
}

func (w *rejectingWallet) PublicKey() solanago.PublicKey { return w.key }
func (w *rejectingWallet) Connected() bool               { return true }
func (w *rejectingWallet) SignTransaction(ctx context.Context, tx *solanago.Transaction) error {
	return errors.New("User rejected the request.")
}

func newKeypairWallet(t *testing.T) *wallet.Keypair {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.NewKeypair(key)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		lamports uint64
		wantErr  bool
	}{
		{"1", 1_000_000_000, false},
		{"1.5", 1_500_000_000, false},
		{" 0.000000001 ", 1, false},
		{"18446744073.709551615", 18_446_744_073_709_551_615, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"0.0000000001", 0, true},
		{"18446744073.709551616", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, lamports, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.InvalidAmount, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lamports, lamports)
		})
	}
}

func TestParseRecipient(t *testing.T) {
	pk, err := ParseRecipient(testAddress)
	require.NoError(t, err)
	assert.Equal(t, testAddress, pk.String())

	for _, bad := range []string{"", "not-an-address", "0OIl"} {
		_, err := ParseRecipient(bad)
		require.Error(t, err, bad)
		assert.Equal(t, apperr.InvalidRecipient, apperr.KindOf(err), bad)
	}
}

func TestValidateTransfer(t *testing.T) {
	signer := newKeypairWallet(t)
	watch, err := wallet.NewWatch(testAddress)
	require.NoError(t, err)

	tests := []struct {
		name      string
		wallet    wallet.Wallet
		recipient string
		amount    string
		wantKind  apperr.Kind
	}{
		{"bad recipient checked first", nil, "not-an-address", "0", apperr.InvalidRecipient},
		{"bad amount", signer, testAddress, "abc", apperr.InvalidAmount},
		{"no wallet", nil, testAddress, "1", apperr.WalletNotReady},
		{"watch-only wallet", watch, testAddress, "1", apperr.WalletNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateTransfer(tt.wallet, tt.recipient, tt.amount)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}

	transfer, err := ValidateTransfer(signer, testAddress, "0.25")
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), transfer.From)
	assert.Equal(t, uint64(250_000_000), transfer.Lamports)
}

func TestSubmitTransfer(t *testing.T) {
	w := newKeypairWallet(t)
	chain := &mockChain{sendSig: solanago.Signature{1, 2, 3}}

	sig, err := newTestService(chain).SubmitTransfer(context.Background(), w, testAddress, "0.5")

	require.NoError(t, err)
	assert.Equal(t, chain.sendSig, sig)
	assert.Equal(t, int32(1), chain.blockhashCalls.Load())
	assert.Equal(t, int32(1), chain.sendCalls.Load())
}

func TestSubmitTransfer_ZeroAmountMakesNoNetworkCall(t *testing.T) {
	chain := &mockChain{}

	_, err := newTestService(chain).SubmitTransfer(context.Background(), newKeypairWallet(t), testAddress, "0")

	require.Error(t, err)
	assert.Equal(t, apperr.InvalidAmount, apperr.KindOf(err))
	assert.Zero(t, chain.blockhashCalls.Load())
	assert.Zero(t, chain.sendCalls.Load())
}

func TestSubmitTransfer_MalformedRecipientBeforeBlockhash(t *testing.T) {
	chain := &mockChain{}

	_, err := newTestService(chain).SubmitTransfer(context.Background(), newKeypairWallet(t), "not-an-address", "1")

	require.Error(t, err)
	assert.Equal(t, apperr.InvalidRecipient, apperr.KindOf(err))
	assert.Zero(t, chain.blockhashCalls.Load())
}

func TestSubmitTransfer_UserRejected(t *testing.T) {
	chain := &mockChain{}
	w := &rejectingWallet{key: solanago.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")}

	_, err := newTestService(chain).SubmitTransfer(context.Background(), w, testAddress, "1")

	require.Error(t, err)
	assert.Equal(t, apperr.UserRejected, apperr.KindOf(err))
	assert.Zero(t, chain.sendCalls.Load())
}

func TestSubmitTransfer_SimulationFailed(t *testing.T) {
	chain := &mockChain{sendErr: errors.New("Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.")}

	_, err := newTestService(chain).SubmitTransfer(context.Background(), newKeypairWallet(t), testAddress, "1")

	require.Error(t, err)
	assert.Equal(t, apperr.SimulationFailed, apperr.KindOf(err))
}

func TestConfirm_ClassifiesTimeout(t *testing.T) {
	chain := &mockChain{confirmErr: context.DeadlineExceeded}

	err := newTestService(chain).Confirm(context.Background(), solanago.Signature{}, "confirmed")

	require.Error(t, err)
	assert.Equal(t, apperr.NetworkFailure, apperr.KindOf(err))
}
