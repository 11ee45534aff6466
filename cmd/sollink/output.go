package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/sollink/service/account"
	"github.com/brojonat/sollink/service/dashboard"
	"github.com/brojonat/sollink/service/view"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printBalance(w io.Writer, address string, b account.Balance) {
	fmt.Fprintf(w, "Wallet:  %s\n", view.FormatAddress(address))
	fmt.Fprintf(w, "Balance: %s SOL\n", view.FormatSOL(b.SOL))
}

func printTokens(w io.Writer, tokens []account.TokenBalance) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, "No tokens.")
		return
	}
	fmt.Fprintf(w, "%-14s %20s\n", "TOKEN", "AMOUNT")
	for _, t := range tokens {
		fmt.Fprintf(w, "%-14s %20s\n", view.TokenLabel(t.Symbol, t.Mint), view.FormatTokenAmount(t.Amount))
	}
}

func printHistory(w io.Writer, history []account.Transaction, now time.Time) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	fmt.Fprintf(w, "%-23s  %-16s  %-12s  %s\n", "SIGNATURE", "WHEN", "AMOUNT", "RECIPIENT")
	for _, tx := range history {
		sig := view.ShortSignature(tx.Signature)
		if tx.Err != nil {
			sig += " ✗"
		}
		fmt.Fprintf(w, "%-23s  %-16s  %-12s  %s\n",
			sig,
			view.RelativeTime(tx.Timestamp, now),
			view.FormatHistoryAmount(tx.Amount, tx.Symbol, tx.Mint),
			view.FormatOptionalAddress(tx.Recipient),
		)
	}
}

func printOutcome(w io.Writer, o dashboard.SendOutcome) {
	switch o.Phase {
	case dashboard.PhaseConfirmed:
		fmt.Fprintf(w, "✓ Transaction confirmed\n")
	default:
		fmt.Fprintf(w, "✗ Transaction failed\n")
	}
	if o.Signature != "" {
		fmt.Fprintf(w, "  Signature: %s\n", o.Signature)
	}
	if o.ExplorerURL != "" {
		fmt.Fprintf(w, "  Explorer:  %s\n", o.ExplorerURL)
	}
	if o.Error != nil {
		fmt.Fprintf(w, "  Error:     %s (%s)\n", o.Error.Message, o.Error.Kind)
	}
}

func printSnapshot(w io.Writer, snap dashboard.Snapshot, now time.Time) {
	if !snap.Connected {
		fmt.Fprintf(w, "No wallet connected (%s)\n", snap.Network)
		return
	}

	mode := "signer"
	if !snap.CanSign {
		mode = "watch-only"
	}
	fmt.Fprintf(w, "Wallet:  %s (%s, %s)\n", view.FormatAddress(snap.Address), mode, snap.Network)

	switch snap.Balance.Status {
	case dashboard.StatusLoaded:
		fmt.Fprintf(w, "Balance: %s SOL\n", view.FormatSOL(snap.Balance.Data.SOL))
	case dashboard.StatusFailed:
		fmt.Fprintf(w, "Balance: %s\n", snap.Balance.Error.Message)
	default:
		fmt.Fprintf(w, "Balance: %s\n", snap.Balance.Status)
	}

	fmt.Fprintln(w)
	switch snap.Tokens.Status {
	case dashboard.StatusLoaded:
		printTokens(w, snap.Tokens.Data)
	case dashboard.StatusFailed:
		fmt.Fprintf(w, "Tokens: %s\n", snap.Tokens.Error.Message)
	default:
		fmt.Fprintf(w, "Tokens: %s\n", snap.Tokens.Status)
	}

	fmt.Fprintln(w)
	switch snap.History.Status {
	case dashboard.StatusLoaded:
		printHistory(w, snap.History.Data, now)
	case dashboard.StatusFailed:
		fmt.Fprintf(w, "History: %s\n", snap.History.Error.Message)
	default:
		fmt.Fprintf(w, "History: %s\n", snap.History.Status)
	}

	if snap.Send.Last != nil {
		fmt.Fprintln(w)
		printOutcome(w, *snap.Send.Last)
	}
}
