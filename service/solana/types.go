package solana

import (
	"time"
)

// TransferKind tells what parseTransactionFromResult recognized.
type TransferKind int

const (
	TransferNone   TransferKind = iota // no System or SPL transfer instruction
	TransferNative                     // System Program transfer, Amount in lamports
	TransferToken                      // SPL Transfer or TransferChecked, Amount in base units
)

func (k TransferKind) String() string {
	switch k {
	case TransferNative:
		return "native"
	case TransferToken:
		return "token"
	default:
		return "none"
	}
}

// Transaction is a transfer resolved from a full transaction fetch.
// This is our domain model, independent of the RPC response format.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Kind        TransferKind
	Amount      uint64  // lamports for SOL, base units for SPL tokens
	TokenMint   *string // only known for TransferChecked
	Decimals    *uint8  // only known for TransferChecked
	FromAddress *string // source wallet (sender), nil if cannot be determined
	ToAddress   *string // recipient wallet, or destination token account for SPL transfers
	Err         *string // nil if transaction succeeded, contains error message if failed
}

// TokenAccount is one SPL token account held by an owner, decoded from a
// jsonParsed getTokenAccountsByOwner response.
type TokenAccount struct {
	Address  string
	Mint     string
	Program  string // "spl-token" or "spl-token-2022"
	Amount   string // raw integer amount in base units
	Decimals uint8
}
