package solana

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.TokenProgramID

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// Token Program instruction types
const (
	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

// parseTransactionFromResult extracts the first transfer found in a full
// GetTransactionResult. Transactions with no recognizable transfer come back
// with Kind TransferNone and no amount or addresses.
func parseTransactionFromResult(signature solana.Signature, result *rpc.GetTransactionResult) (*Transaction, error) {
	if result == nil || result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s not available", signature)
	}

	txn := &Transaction{
		Signature: signature.String(),
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		txn.BlockTime = result.BlockTime.Time()
	}
	if result.Meta != nil && result.Meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", result.Meta.Err)
		txn.Err = &errMsg
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	accountKeys := tx.Message.AccountKeys
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		switch {
		case programID.Equals(solana.SystemProgramID):
			amount, from, to, err := parseSystemTransfer(instruction, accountKeys)
			if err != nil {
				continue
			}
			txn.Kind = TransferNative
			txn.Amount = amount
			txn.FromAddress = keyString(from)
			txn.ToAddress = keyString(to)
			return txn, nil

		case programID.Equals(TokenProgramID) || programID.Equals(Token2022ProgramID):
			transfer, err := parseTokenTransfer(instruction, accountKeys)
			if err != nil {
				continue
			}
			txn.Kind = TransferToken
			txn.Amount = transfer.amount
			txn.Decimals = transfer.decimals
			txn.TokenMint = keyString(transfer.mint)
			txn.FromAddress = keyString(transfer.authority)
			txn.ToAddress = keyString(transfer.destination)
			return txn, nil
		}
	}

	return txn, nil
}

// parseSystemTransfer extracts amount, source and destination from a System Program Transfer.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (uint64, *solana.PublicKey, *solana.PublicKey, error) {
	// [0..4]  = instruction type (u32, 2 = Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return 0, nil, nil, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return 0, nil, nil, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	amount := binary.LittleEndian.Uint64(instruction.Data[4:12])

	// accounts: [from, to]
	return amount, accountAt(instruction, accountKeys, 0), accountAt(instruction, accountKeys, 1), nil
}

type tokenTransfer struct {
	amount      uint64
	decimals    *uint8
	mint        *solana.PublicKey
	destination *solana.PublicKey
	authority   *solana.PublicKey
}

// parseTokenTransfer handles SPL Transfer and TransferChecked.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*tokenTransfer, error) {
	if len(instruction.Data) == 0 {
		return nil, fmt.Errorf("empty instruction data")
	}

	switch instruction.Data[0] {
	case TokenProgramTransferInstruction:
		// [0] type, [1..9] amount
		// accounts: [source, destination, authority]
		if len(instruction.Data) < 9 {
			return nil, fmt.Errorf("transfer instruction data too short")
		}
		return &tokenTransfer{
			amount:      binary.LittleEndian.Uint64(instruction.Data[1:9]),
			destination: accountAt(instruction, accountKeys, 1),
			authority:   accountAt(instruction, accountKeys, 2),
		}, nil

	case TokenProgramTransferCheckedInstruction:
		// [0] type, [1..9] amount, [9] decimals
		// accounts: [source, mint, destination, authority, ...]
		if len(instruction.Data) < 10 {
			return nil, fmt.Errorf("transferChecked instruction data too short")
		}
		if len(instruction.Accounts) < 4 {
			return nil, fmt.Errorf("transferChecked missing accounts")
		}
		mint := accountAt(instruction, accountKeys, 1)
		if mint == nil {
			return nil, fmt.Errorf("mint account index out of bounds")
		}
		decimals := instruction.Data[9]
		return &tokenTransfer{
			amount:      binary.LittleEndian.Uint64(instruction.Data[1:9]),
			decimals:    &decimals,
			mint:        mint,
			destination: accountAt(instruction, accountKeys, 2),
			authority:   accountAt(instruction, accountKeys, 3),
		}, nil

	default:
		return nil, fmt.Errorf("unknown token instruction type: %d", instruction.Data[0])
	}
}

func accountAt(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey, pos int) *solana.PublicKey {
	if pos >= len(instruction.Accounts) {
		return nil
	}
	idx := int(instruction.Accounts[pos])
	if idx >= len(accountKeys) {
		return nil
	}
	key := accountKeys[idx]
	return &key
}

func keyString(key *solana.PublicKey) *string {
	if key == nil {
		return nil
	}
	s := key.String()
	return &s
}

// parsedTokenAccount mirrors the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Program string `json:"program"`
	Parsed  struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
		Type string `json:"type"`
	} `json:"parsed"`
}

// parseTokenAccounts decodes a jsonParsed getTokenAccountsByOwner response.
func parseTokenAccounts(result *rpc.GetTokenAccountsResult) ([]TokenAccount, error) {
	if result == nil {
		return nil, nil
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		if v == nil || v.Account.Data == nil {
			continue
		}
		raw := v.Account.Data.GetRawJSON()
		if len(raw) == 0 {
			return nil, fmt.Errorf("token account %s: response is not jsonParsed", v.Pubkey)
		}

		var parsed parsedTokenAccount
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("token account %s: %w", v.Pubkey, err)
		}
		info := parsed.Parsed.Info
		if info.Mint == "" {
			return nil, fmt.Errorf("token account %s: missing mint", v.Pubkey)
		}
		if _, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64); err != nil {
			return nil, fmt.Errorf("token account %s: invalid amount %q", v.Pubkey, info.TokenAmount.Amount)
		}

		accounts = append(accounts, TokenAccount{
			Address:  v.Pubkey.String(),
			Mint:     info.Mint,
			Program:  parsed.Program,
			Amount:   info.TokenAmount.Amount,
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}
