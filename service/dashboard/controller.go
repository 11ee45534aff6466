// Package dashboard holds the wallet dashboard state machines: one
// Idle/Loading/Loaded/Failed state per data category plus the send flow.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/sollink/service/account"
	"github.com/brojonat/sollink/service/apperr"
	"github.com/brojonat/sollink/service/metrics"
	"github.com/brojonat/sollink/service/view"
	"github.com/brojonat/sollink/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

var (
	// ErrSendInFlight is returned when Send is called while a send is running.
	ErrSendInFlight = errors.New("a transfer is already in progress")

	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("dashboard is closed")
)

// Fetch categories, also used as metric labels.
const (
	CategoryBalance = "balance"
	CategoryTokens  = "tokens"
	CategoryHistory = "history"
)

// AccountService is the account data the controller consumes.
type AccountService interface {
	FetchBalance(ctx context.Context, address solanago.PublicKey) (account.Balance, error)
	FetchTokenBalances(ctx context.Context, address solanago.PublicKey) ([]account.TokenBalance, error)
	FetchTransactionHistory(ctx context.Context, address solanago.PublicKey, opts account.HistoryOptions) ([]account.Transaction, error)
	BuildTransfer(ctx context.Context, t account.Transfer) (*solanago.Transaction, error)
	Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	Confirm(ctx context.Context, signature solanago.Signature, commitment rpc.CommitmentType) error
}

// Options configures a Controller.
type Options struct {
	Accounts AccountService
	Notifier Notifier         // nil drops notifications
	Metrics  *metrics.Metrics // nil disables metrics
	Logger   *slog.Logger

	Network         string // cluster name, used for explorer links
	ExplorerHost    string
	Commitment      rpc.CommitmentType
	HistoryLimit    int
	DetailedHistory bool
	FetchTimeout    time.Duration
	ConfirmTimeout  time.Duration

	// OnSendPhase, when set, observes every send phase transition.
	OnSendPhase func(SendPhase)
}

// Controller owns all dashboard state. It is safe for concurrent use.
type Controller struct {
	opts Options

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.RWMutex
	wallet     wallet.Wallet
	generation uint64
	closed     bool
	balance    State[account.Balance]
	tokens     State[[]account.TokenBalance]
	history    State[[]account.Transaction]
	send       SendState

	sending atomic.Bool
}

// New creates a controller with no wallet connected.
func New(opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentProcessed
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = account.DefaultHistoryLimit
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:    opts,
		baseCtx: ctx,
		cancel:  cancel,
		balance: idle[account.Balance](),
		tokens:  idle[[]account.TokenBalance](),
		history: idle[[]account.Transaction](),
		send:    SendState{Phase: PhaseIdle},
	}
}

// Connect replaces the connected wallet and fetches all categories.
func (c *Controller) Connect(ctx context.Context, w wallet.Wallet) (Snapshot, error) {
	if w == nil {
		return Snapshot{}, wallet.ErrNotConnected
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	c.wallet = w
	c.generation++
	gen := c.generation
	c.resetLocked()
	c.mu.Unlock()

	address := w.PublicKey().String()
	c.opts.Logger.InfoContext(ctx, "wallet connected",
		"address", address,
		"can_sign", wallet.CanSign(w),
	)
	c.notify(ctx, Notification{
		Address: address,
		Level:   LevelInfo,
		Title:   "Wallet connected",
		Message: view.FormatAddress(address),
	})

	c.fetch(ctx, gen, w, true, true, true)
	return c.Snapshot(), nil
}

// Disconnect drops the wallet, resets every category to Idle and discards
// results still in flight for the previous connection.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = nil
	c.generation++
	c.resetLocked()
	c.send = SendState{Phase: PhaseIdle}
}

func (c *Controller) resetLocked() {
	c.balance = idle[account.Balance]()
	c.tokens = idle[[]account.TokenBalance]()
	c.history = idle[[]account.Transaction]()
}

// Refresh re-fetches all three categories for the connected wallet.
func (c *Controller) Refresh(ctx context.Context) (Snapshot, error) {
	w, gen, err := c.current()
	if err != nil {
		return Snapshot{}, err
	}

	failures := c.fetch(ctx, gen, w, true, true, true)
	if failures == 0 {
		c.notify(ctx, Notification{
			Address: w.PublicKey().String(),
			Level:   LevelInfo,
			Title:   "Dashboard refreshed",
		})
	}
	return c.Snapshot(), nil
}

// Close stops all state mutation and cancels in-flight work.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Network: c.opts.Network,
		Balance: c.balance,
		Tokens:  c.tokens,
		History: c.history,
		Send:    c.send,
	}
	snap.Tokens.Data = slices.Clone(c.tokens.Data)
	snap.History.Data = slices.Clone(c.history.Data)
	if c.send.Request != nil {
		req := *c.send.Request
		snap.Send.Request = &req
	}
	if c.send.Last != nil {
		last := *c.send.Last
		snap.Send.Last = &last
	}
	if c.wallet != nil {
		snap.Address = c.wallet.PublicKey().String()
		snap.Connected = c.wallet.Connected()
		snap.CanSign = wallet.CanSign(c.wallet)
	}
	return snap
}

// Wallet returns the connected wallet, or nil.
func (c *Controller) Wallet() wallet.Wallet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wallet
}

func (c *Controller) current() (wallet.Wallet, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, 0, ErrClosed
	}
	if c.wallet == nil {
		return nil, 0, wallet.ErrNotConnected
	}
	return c.wallet, c.generation, nil
}

// update applies fn under the lock unless the controller was closed or the
// wallet changed since gen was taken.
func (c *Controller) update(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return false
	}
	fn()
	return true
}

// operationContext derives a context that is cancelled by the caller, by
// Close, or after timeout.
func (c *Controller) operationContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	stop := context.AfterFunc(c.baseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fetch runs the selected categories concurrently and waits for all of them.
// It returns the number of categories that failed.
func (c *Controller) fetch(ctx context.Context, gen uint64, w wallet.Wallet, balance, tokens, history bool) int {
	address := w.PublicKey()
	var failures atomic.Int32
	var wg conc.WaitGroup

	if balance {
		wg.Go(func() {
			if !runFetch(c, ctx, gen, CategoryBalance, &c.balance, func(ctx context.Context) (account.Balance, error) {
				return c.opts.Accounts.FetchBalance(ctx, address)
			}) {
				failures.Add(1)
			}
		})
	}
	if tokens {
		wg.Go(func() {
			if !runFetch(c, ctx, gen, CategoryTokens, &c.tokens, func(ctx context.Context) ([]account.TokenBalance, error) {
				return c.opts.Accounts.FetchTokenBalances(ctx, address)
			}) {
				failures.Add(1)
			}
		})
	}
	if history {
		wg.Go(func() {
			if !runFetch(c, ctx, gen, CategoryHistory, &c.history, func(ctx context.Context) ([]account.Transaction, error) {
				return c.opts.Accounts.FetchTransactionHistory(ctx, address, account.HistoryOptions{
					Limit:    c.opts.HistoryLimit,
					Detailed: c.opts.DetailedHistory,
				})
			}) {
				failures.Add(1)
			}
		})
	}

	wg.Wait()
	return int(failures.Load())
}

// runFetch drives one category through Loading to Loaded or Failed. slot is
// only touched under c.mu. A panic in fn becomes an Unknown failure.
func runFetch[T any](c *Controller, ctx context.Context, gen uint64, category string, slot *State[T], fn func(context.Context) (T, error)) bool {
	if !c.update(gen, func() { *slot = loading[T]() }) {
		return true
	}

	ctx, cancel := c.operationContext(ctx, c.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	var data T
	var err error
	var pc panics.Catcher
	pc.Try(func() {
		data, err = fn(ctx)
	})
	if r := pc.Recovered(); r != nil {
		err = apperr.Wrap(apperr.Unknown, "", r.AsError())
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordFetch(category, status, time.Since(start).Seconds())
	}

	if err == nil {
		c.update(gen, func() { *slot = loaded(data) })
		return true
	}

	classified := apperr.Classify(err)
	applied := c.update(gen, func() { *slot = failed[T](classified) })
	if !applied {
		return true
	}

	c.opts.Logger.ErrorContext(ctx, "dashboard fetch failed",
		"category", category,
		"kind", classified.Kind,
		"error", err,
	)
	c.notify(ctx, Notification{
		Level:   LevelError,
		Title:   fmt.Sprintf("Failed to load %s", category),
		Message: classified.Message,
		Kind:    classified.Kind,
	})
	return false
}

// Send runs the full send flow for the connected wallet. It returns
// ErrSendInFlight without touching the chain when a send is already running.
// A failed send returns the outcome together with the classified error.
func (c *Controller) Send(ctx context.Context, recipient, amount string) (SendOutcome, error) {
	if !c.sending.CompareAndSwap(false, true) {
		return SendOutcome{}, ErrSendInFlight
	}
	defer c.sending.Store(false)

	c.mu.RLock()
	closed, w, gen := c.closed, c.wallet, c.generation
	c.mu.RUnlock()
	if closed {
		return SendOutcome{}, ErrClosed
	}

	req := SendRequest{ID: uuid.New(), Recipient: recipient, Amount: amount}
	c.setPhase(gen, PhaseValidating, &req)

	transfer, err := account.ValidateTransfer(w, recipient, amount)
	if err != nil {
		return c.finishSend(ctx, gen, req, "", err)
	}

	c.setPhase(gen, PhaseBuilding, &req)
	ctx, cancel := c.operationContext(ctx, c.opts.FetchTimeout+c.opts.ConfirmTimeout)
	defer cancel()

	tx, err := c.opts.Accounts.BuildTransfer(ctx, transfer)
	if err != nil {
		return c.finishSend(ctx, gen, req, "", err)
	}

	c.setPhase(gen, PhaseAwaitingSignature, &req)
	signer, ok := w.(wallet.Signer)
	if !ok {
		return c.finishSend(ctx, gen, req, "", wallet.ErrCannotSign)
	}
	if err := signer.SignTransaction(ctx, tx); err != nil {
		return c.finishSend(ctx, gen, req, "", err)
	}

	c.setPhase(gen, PhaseSubmitting, &req)
	sig, err := c.opts.Accounts.Submit(ctx, tx)
	if err != nil {
		return c.finishSend(ctx, gen, req, "", err)
	}

	c.notify(ctx, Notification{
		Address:     transfer.From.String(),
		Level:       LevelInfo,
		Title:       "Transaction submitted",
		Message:     view.ShortSignature(sig.String()),
		Signature:   sig.String(),
		ExplorerURL: c.explorerURL(sig.String()),
	})

	c.setPhase(gen, PhaseAwaitingConfirmation, &req)
	confirmCtx, confirmCancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer confirmCancel()
	if err := c.opts.Accounts.Confirm(confirmCtx, sig, c.opts.Commitment); err != nil {
		return c.finishSend(ctx, gen, req, sig.String(), err)
	}

	outcome, err := c.finishSend(ctx, gen, req, sig.String(), nil)
	if err == nil {
		c.fetch(ctx, gen, w, true, false, true)
	}
	return outcome, err
}

func (c *Controller) setPhase(gen uint64, phase SendPhase, req *SendRequest) {
	applied := c.update(gen, func() {
		c.send.Phase = phase
		c.send.Request = req
	})
	if applied && c.opts.OnSendPhase != nil {
		c.opts.OnSendPhase(phase)
	}
}

// finishSend records the terminal phase, then returns the machine to Idle.
func (c *Controller) finishSend(ctx context.Context, gen uint64, req SendRequest, signature string, sendErr error) (SendOutcome, error) {
	outcome := SendOutcome{
		RequestID: req.ID,
		Phase:     PhaseConfirmed,
		Signature: signature,
		At:        time.Now(),
	}
	if signature != "" {
		outcome.ExplorerURL = c.explorerURL(signature)
	}

	var classified *apperr.Error
	if sendErr != nil {
		classified = apperr.Classify(sendErr)
		outcome.Phase = PhaseFailed
		outcome.Error = &ErrorInfo{Kind: classified.Kind, Message: classified.Message}
	}

	c.setPhase(gen, outcome.Phase, &req)
	c.update(gen, func() {
		c.send = SendState{Phase: PhaseIdle, Last: &outcome}
	})
	if c.opts.OnSendPhase != nil {
		c.opts.OnSendPhase(PhaseIdle)
	}

	address := ""
	if w := c.Wallet(); w != nil {
		address = w.PublicKey().String()
	}

	if classified != nil {
		if c.opts.Metrics != nil {
			c.opts.Metrics.RecordTransfer(string(classified.Kind))
		}
		c.opts.Logger.ErrorContext(ctx, "transfer failed",
			"request_id", req.ID.String(),
			"kind", classified.Kind,
			"signature", signature,
			"error", sendErr,
		)
		c.notify(ctx, Notification{
			Address:     address,
			Level:       LevelError,
			Title:       "Transaction failed",
			Message:     classified.Message,
			Kind:        classified.Kind,
			Signature:   signature,
			ExplorerURL: outcome.ExplorerURL,
		})
		return outcome, classified
	}

	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordTransfer("confirmed")
	}
	c.opts.Logger.InfoContext(ctx, "transfer confirmed",
		"request_id", req.ID.String(),
		"signature", signature,
	)
	c.notify(ctx, Notification{
		Address:     address,
		Level:       LevelSuccess,
		Title:       "Transaction confirmed",
		Message:     view.ShortSignature(signature),
		Signature:   signature,
		ExplorerURL: outcome.ExplorerURL,
	})
	return outcome, nil
}

func (c *Controller) explorerURL(signature string) string {
	return view.ExplorerURL(c.opts.ExplorerHost, signature, c.opts.Network)
}

func (c *Controller) notify(ctx context.Context, n Notification) {
	if n.Address == "" {
		if w := c.Wallet(); w != nil {
			n.Address = w.PublicKey().String()
		}
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	// notifications outlive the request context
	if err := c.opts.Notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		c.opts.Logger.WarnContext(ctx, "failed to deliver notification",
			"title", n.Title,
			"error", err,
		)
	}
}
