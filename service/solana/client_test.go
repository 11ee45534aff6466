package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/sollink/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	mu sync.Mutex

	balance       uint64
	signatures    []*rpc.TransactionSignature
	blockhash     solana.Hash
	tokenAccounts map[solana.PublicKey]*rpc.GetTokenAccountsResult
	transactions  map[string]*rpc.GetTransactionResult
	sendSignature solana.Signature
	statuses      []*rpc.SignatureStatusesResult // returned one per poll, last one repeats

	err       error
	sendErr   error
	statusErr error

	lastSignaturesOpts *rpc.GetSignaturesForAddressOpts
	statusPolls        int
}

func (m *mockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &rpc.GetBalanceResult{Value: m.balance}, nil
}

func (m *mockRPCClient) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	m.mu.Lock()
	m.lastSignaturesOpts = opts
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.signatures, nil
}

func (m *mockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: m.blockhash}}, nil
}

func (m *mockRPCClient) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if conf == nil || conf.ProgramId == nil {
		return nil, errors.New("program id required")
	}
	if result, ok := m.tokenAccounts[*conf.ProgramId]; ok {
		return result, nil
	}
	return &rpc.GetTokenAccountsResult{}, nil
}

func (m *mockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.transactions[signature.String()], nil
}

func (m *mockRPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	return m.sendSignature, nil
}

func (m *mockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusPolls++
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if len(m.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	idx := min(m.statusPolls-1, len(m.statuses)-1)
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{m.statuses[idx]}}, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test", nil, logger).WithPollInterval(time.Millisecond)
}

func TestGetBalance(t *testing.T) {
	client := newTestClient(&mockRPCClient{balance: 1_500_000_000})

	lamports, err := client.GetBalance(context.Background(), testSender)

	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), lamports)
}

func TestGetBalance_Error(t *testing.T) {
	client := newTestClient(&mockRPCClient{err: errors.New("connection refused")})

	_, err := client.GetBalance(context.Background(), testSender)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetSignatures_PassesLimit(t *testing.T) {
	now := solana.UnixTimeSeconds(time.Now().Unix())
	mock := &mockRPCClient{
		signatures: []*rpc.TransactionSignature{
			{Signature: testSig, Slot: 100, BlockTime: &now},
		},
	}
	client := newTestClient(mock)

	sigs, err := client.GetSignatures(context.Background(), testSender, 25)

	require.NoError(t, err)
	require.Len(t, sigs, 1)
	require.NotNil(t, mock.lastSignaturesOpts)
	assert.Equal(t, 25, *mock.lastSignaturesOpts.Limit)
	// processed is not accepted for signature queries
	assert.Equal(t, rpc.CommitmentConfirmed, mock.lastSignaturesOpts.Commitment)
}

func TestGetLatestBlockhash(t *testing.T) {
	hash := solana.Hash(testOther)
	client := newTestClient(&mockRPCClient{blockhash: hash})

	got, err := client.GetLatestBlockhash(context.Background())

	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestGetTokenAccounts_QueriesBothPrograms(t *testing.T) {
	mock := &mockRPCClient{
		tokenAccounts: map[solana.PublicKey]*rpc.GetTokenAccountsResult{
			TokenProgramID:     decodeTokenAccounts(t, tokenAccountsFixture),
			Token2022ProgramID: decodeTokenAccounts(t, tokenAccountsFixture),
		},
	}
	client := newTestClient(mock)

	accounts, err := client.GetTokenAccounts(context.Background(), testSender)

	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestGetTransaction(t *testing.T) {
	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{testSender, testOther, solana.SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: systemTransferData(250_000_000)},
			},
		},
	}
	mock := &mockRPCClient{
		transactions: map[string]*rpc.GetTransactionResult{
			testSig.String(): {Slot: 7, Transaction: makeTransactionEnvelope(t, tx)},
		},
	}
	client := newTestClient(mock)

	txn, err := client.GetTransaction(context.Background(), testSig)

	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), txn.Amount)
	assert.Equal(t, testOther.String(), *txn.ToAddress)
}

func TestSendTransaction_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	mock := &mockRPCClient{sendSignature: testSig}
	client := NewClient(mock, "test", m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sig, err := client.SendTransaction(context.Background(), &solana.Transaction{})

	require.NoError(t, err)
	assert.Equal(t, testSig, sig)
}

func TestConfirmTransaction(t *testing.T) {
	t.Run("waits until commitment is reached", func(t *testing.T) {
		mock := &mockRPCClient{
			statuses: []*rpc.SignatureStatusesResult{
				nil,
				{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
				{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			},
		}
		client := newTestClient(mock)

		err := client.ConfirmTransaction(context.Background(), testSig, rpc.CommitmentConfirmed)

		require.NoError(t, err)
		assert.Equal(t, 3, mock.statusPolls)
	})

	t.Run("processed is satisfied by finalized", func(t *testing.T) {
		mock := &mockRPCClient{
			statuses: []*rpc.SignatureStatusesResult{
				{ConfirmationStatus: rpc.ConfirmationStatusFinalized},
			},
		}
		client := newTestClient(mock)

		require.NoError(t, client.ConfirmTransaction(context.Background(), testSig, rpc.CommitmentProcessed))
	})

	t.Run("execution error fails", func(t *testing.T) {
		mock := &mockRPCClient{
			statuses: []*rpc.SignatureStatusesResult{
				{ConfirmationStatus: rpc.ConfirmationStatusProcessed, Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
			},
		}
		client := newTestClient(mock)

		err := client.ConfirmTransaction(context.Background(), testSig, rpc.CommitmentConfirmed)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransactionFailed)
	})

	t.Run("context deadline stops polling", func(t *testing.T) {
		mock := &mockRPCClient{statusErr: errors.New("503 service unavailable")}
		client := newTestClient(mock)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := client.ConfirmTransaction(ctx, testSig, rpc.CommitmentConfirmed)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestWithRateLimit(t *testing.T) {
	client := newTestClient(&mockRPCClient{}).WithRateLimit(0)
	assert.Nil(t, client.limiter)

	client.WithRateLimit(2.5)
	require.NotNil(t, client.limiter)
	assert.Equal(t, 2, client.limiter.Burst())

	// A cancelled context fails fast when the bucket is empty.
	client.WithRateLimit(0.001)
	_, _ = client.GetBalance(context.Background(), testSender)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetBalance(ctx, testSender)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
