// Package wallet is the signing boundary of the dashboard. A Wallet exposes
// the connected public key; wallets that can sign also implement Signer.
package wallet

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/brojonat/sollink/service/apperr"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrNotConnected = apperr.New(apperr.WalletNotReady, "Wallet not connected.")
	ErrCannotSign   = apperr.New(apperr.WalletNotReady, "Connected wallet cannot sign transactions.")
)

// Wallet is the connection context handed to the dashboard.
type Wallet interface {
	PublicKey() solana.PublicKey
	Connected() bool
}

// Signer is the optional signing capability of a Wallet.
type Signer interface {
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Submitter broadcasts a signed transaction.
type Submitter interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// CanSign reports whether w is connected and signing-capable.
func CanSign(w Wallet) bool {
	if w == nil || !w.Connected() {
		return false
	}
	_, ok := w.(Signer)
	return ok
}

// SendTransaction signs tx with w and submits it.
func SendTransaction(ctx context.Context, w Wallet, tx *solana.Transaction, submitter Submitter) (solana.Signature, error) {
	if w == nil || !w.Connected() {
		return solana.Signature{}, ErrNotConnected
	}
	signer, ok := w.(Signer)
	if !ok {
		return solana.Signature{}, ErrCannotSign
	}
	if err := signer.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, err
	}
	return submitter.SendTransaction(ctx, tx)
}

// Keypair is a local signer backed by a Solana CLI keypair.
type Keypair struct {
	key          solana.PrivateKey
	disconnected atomic.Bool
}

// LoadKeypair reads a keypair file produced by `solana-keygen new`.
func LoadKeypair(path string) (*Keypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypair(key), nil
}

func NewKeypair(key solana.PrivateKey) *Keypair {
	return &Keypair{key: key}
}

func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

func (k *Keypair) Connected() bool {
	return !k.disconnected.Load()
}

// Disconnect makes the wallet refuse further signing.
func (k *Keypair) Disconnect() {
	k.disconnected.Store(true)
}

// SignTransaction adds this key's signature to tx.
func (k *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if !k.Connected() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pub := k.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// Watch is an address-only wallet. It can display data but never sign.
type Watch struct {
	address solana.PublicKey
}

// NewWatch parses a base58 address into a watch-only wallet.
func NewWatch(address string) (*Watch, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidRecipient, "Invalid wallet address.", err)
	}
	return &Watch{address: pk}, nil
}

func (w *Watch) PublicKey() solana.PublicKey {
	return w.address
}

func (w *Watch) Connected() bool {
	return true
}
