package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/sollink/service/account"
	"github.com/brojonat/sollink/service/config"
	"github.com/brojonat/sollink/service/dashboard"
	"github.com/brojonat/sollink/service/solana"
	"github.com/brojonat/sollink/service/wallet"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Query and use a wallet directly against Solana RPC",
		Subcommands: []*cli.Command{
			walletBalanceCommand(),
			walletTokensCommand(),
			walletHistoryCommand(),
			walletSendCommand(),
		},
	}
}

// chainEnv is the wiring shared by the wallet commands.
type chainEnv struct {
	cfg      *config.Config
	accounts *account.Service
	logger   *slog.Logger
}

func newChainEnv(c *cli.Context) (*chainEnv, error) {
	logger := newLogger(c)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if u := c.String("rpc-url"); u != "" {
		cfg.SolanaRPCURL = u
	}

	endpoint, err := solana.SelectRandomEndpoint(cfg.RPCEndpoints())
	if err != nil {
		return nil, err
	}
	chain := solana.NewClient(solana.NewRPCClient(endpoint), endpoint, nil, logger).
		WithCommitment(cfg.Commitment).
		WithRateLimit(cfg.RPCRateLimit)

	return &chainEnv{
		cfg:      cfg,
		accounts: account.NewService(chain, cfg.TokenSymbols(), logger),
		logger:   logger,
	}, nil
}

// resolveWallet returns a watch-only wallet for the first argument, or the
// --keypair wallet when no argument is given.
func resolveWallet(c *cli.Context) (wallet.Wallet, error) {
	if c.NArg() > 0 {
		return wallet.NewWatch(c.Args().Get(0))
	}
	if path := c.String("keypair"); path != "" {
		return wallet.LoadKeypair(path)
	}
	return nil, fmt.Errorf("wallet address is required (or set --keypair)")
}

func walletBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the native SOL balance",
		ArgsUsage: "[WALLET_ADDRESS]",
		Action: func(c *cli.Context) error {
			w, err := resolveWallet(c)
			if err != nil {
				return err
			}
			env, err := newChainEnv(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), env.cfg.FetchTimeout)
			defer cancel()

			balance, err := env.accounts.FetchBalance(ctx, w.PublicKey())
			if err != nil {
				return fmt.Errorf("failed to fetch balance: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, balance)
			}
			printBalance(c.App.Writer, w.PublicKey().String(), balance)
			return nil
		},
	}
}

func walletTokensCommand() *cli.Command {
	return &cli.Command{
		Name:      "tokens",
		Usage:     "List token balances (SOL first)",
		ArgsUsage: "[WALLET_ADDRESS]",
		Action: func(c *cli.Context) error {
			w, err := resolveWallet(c)
			if err != nil {
				return err
			}
			env, err := newChainEnv(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), env.cfg.FetchTimeout)
			defer cancel()

			tokens, err := env.accounts.FetchTokenBalances(ctx, w.PublicKey())
			if err != nil {
				return fmt.Errorf("failed to fetch token balances: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, tokens)
			}
			printTokens(c.App.Writer, tokens)
			return nil
		},
	}
}

func walletHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Aliases:   []string{"txns"},
		Usage:     "List recent transactions",
		ArgsUsage: "[WALLET_ADDRESS]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of signatures to fetch (1-1000)",
				Value:   account.DefaultHistoryLimit,
			},
			&cli.BoolFlag{
				Name:  "detailed",
				Usage: "Fetch each transaction to fill in amount and recipient",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Usage:   "jq filter over each JSON entry that must evaluate to true (can be specified multiple times, all must match)",
				Aliases: []string{"jq"},
			},
		},
		Action: func(c *cli.Context) error {
			w, err := resolveWallet(c)
			if err != nil {
				return err
			}

			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			env, err := newChainEnv(c)
			if err != nil {
				return err
			}

			timeout := env.cfg.FetchTimeout
			if c.Bool("detailed") {
				timeout *= 4
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			history, err := env.accounts.FetchTransactionHistory(ctx, w.PublicKey(), account.HistoryOptions{
				Limit:    c.Int("limit"),
				Detailed: c.Bool("detailed"),
			})
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}

			history, err = filterHistory(history, filters, env.logger)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, history)
			}
			printHistory(c.App.Writer, history, time.Now())
			return nil
		},
	}
}

func walletSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send SOL from the --keypair wallet and wait for confirmation",
		ArgsUsage: "RECIPIENT AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("recipient and amount are required")
			}
			if c.String("keypair") == "" {
				return fmt.Errorf("--keypair is required to send")
			}
			kp, err := wallet.LoadKeypair(c.String("keypair"))
			if err != nil {
				return err
			}
			env, err := newChainEnv(c)
			if err != nil {
				return err
			}

			jsonOutput := c.Bool("json")
			dash := dashboard.New(dashboard.Options{
				Accounts:       env.accounts,
				Logger:         env.logger,
				Network:        env.cfg.Network,
				ExplorerHost:   env.cfg.ExplorerHost,
				Commitment:     env.cfg.Commitment,
				HistoryLimit:   env.cfg.HistoryLimit,
				FetchTimeout:   env.cfg.FetchTimeout,
				ConfirmTimeout: env.cfg.ConfirmTimeout,
				OnSendPhase: func(phase dashboard.SendPhase) {
					if !jsonOutput {
						fmt.Fprintf(c.App.ErrWriter, "  … %s\n", phase)
					}
				},
			})
			defer dash.Close()

			if _, err := dash.Connect(context.Background(), kp); err != nil {
				return err
			}

			outcome, sendErr := dash.Send(context.Background(), c.Args().Get(0), c.Args().Get(1))
			if jsonOutput {
				if err := printJSON(c.App.Writer, outcome); err != nil {
					return err
				}
			} else {
				printOutcome(c.App.Writer, outcome)
			}
			return sendErr
		},
	}
}

func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// filterHistory keeps the entries for which every filter is truthy. Each
// entry is run through the filters in its JSON form.
func filterHistory(history []account.Transaction, filters []*gojq.Code, logger *slog.Logger) ([]account.Transaction, error) {
	if len(filters) == 0 {
		return history, nil
	}

	kept := make([]account.Transaction, 0, len(history))
	for _, tx := range history {
		data, err := json.Marshal(tx)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction: %w", err)
		}
		var entry any
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		if matchesAll(entry, filters, logger) {
			kept = append(kept, tx)
		}
	}
	return kept, nil
}

func matchesAll(entry any, filters []*gojq.Code, logger *slog.Logger) bool {
	for _, code := range filters {
		iter := code.Run(entry)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if err, isErr := v.(error); isErr {
			logger.Debug("jq filter error", "error", err)
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
