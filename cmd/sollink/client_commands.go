package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/brojonat/sollink/client"
	"github.com/brojonat/sollink/service/dashboard"
	natspkg "github.com/brojonat/sollink/service/nats"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for a running sollink server",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   2 * time.Minute,
				Usage:   "Request timeout (sends wait for confirmation)",
			},
		},
		Subcommands: []*cli.Command{
			clientDashboardCommand(),
			clientConnectCommand(),
			clientDisconnectCommand(),
			clientRefreshCommand(),
			clientSendCommand(),
			clientWatchCommand(),
		},
	}
}

func newAPIClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: c.Duration("timeout")}, newLogger(c))
}

func outputSnapshot(c *cli.Context, snap *dashboard.Snapshot) error {
	if c.Bool("json") {
		return printJSON(c.App.Writer, snap)
	}
	printSnapshot(c.App.Writer, *snap, time.Now())
	return nil
}

func clientDashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Show the server's dashboard snapshot",
		Action: func(c *cli.Context) error {
			snap, err := newAPIClient(c).Dashboard(context.Background())
			if err != nil {
				return err
			}
			return outputSnapshot(c, snap)
		},
	}
}

func clientConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Connect a wallet (no address connects the server's keypair)",
		ArgsUsage: "[WALLET_ADDRESS]",
		Action: func(c *cli.Context) error {
			snap, err := newAPIClient(c).Connect(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
			}
			return outputSnapshot(c, snap)
		},
	}
}

func clientDisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Disconnect the current wallet",
		Action: func(c *cli.Context) error {
			if err := newAPIClient(c).Disconnect(context.Background()); err != nil {
				return err
			}
			if !c.Bool("json") {
				fmt.Fprintln(c.App.Writer, "✓ Wallet disconnected")
			}
			return nil
		},
	}
}

func clientRefreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Re-fetch balance, tokens and history",
		Action: func(c *cli.Context) error {
			snap, err := newAPIClient(c).Refresh(context.Background())
			if err != nil {
				return err
			}
			return outputSnapshot(c, snap)
		},
	}
}

func clientSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send SOL from the server's connected wallet",
		ArgsUsage: "RECIPIENT AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("recipient and amount are required")
			}

			outcome, err := newAPIClient(c).Send(context.Background(), c.Args().Get(0), c.Args().Get(1))
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Outcome != nil {
				outcome = apiErr.Outcome
			}
			if outcome != nil {
				if c.Bool("json") {
					if perr := printJSON(c.App.Writer, outcome); perr != nil {
						return perr
					}
				} else {
					printOutcome(c.App.Writer, *outcome)
				}
			}
			return err
		},
	}
}

func clientWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream dashboard notifications until interrupted",
		ArgsUsage: "[WALLET_ADDRESS]",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			jsonOutput := c.Bool("json")
			err := newAPIClient(c).StreamNotifications(ctx, c.Args().Get(0), func(n *natspkg.NotificationEvent) bool {
				if jsonOutput {
					printJSON(c.App.Writer, n)
					return true
				}
				fmt.Fprintf(c.App.Writer, "[%s] %s: %s", n.Level, n.Title, n.Message)
				if n.ExplorerURL != "" {
					fmt.Fprintf(c.App.Writer, " (%s)", n.ExplorerURL)
				}
				fmt.Fprintln(c.App.Writer)
				return true
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
