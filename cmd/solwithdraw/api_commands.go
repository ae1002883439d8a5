package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwithdraw/client"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/urfave/cli/v2"
)

func apiCommands() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Withdrawal server HTTP API commands",
		Subcommands: []*cli.Command{
			apiWithdrawCommand(),
			apiGetCommand(),
			apiListCommand(),
			apiBalanceCommand(),
			apiCreditCommand(),
			apiWatchCommand(),
		},
	}
}

func newAPIClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, nil, cliLogger(c)), nil
}

func apiWithdrawCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "Sender address", Required: true},
		&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
		&cli.StringFlag{Name: "memo", Usage: "Optional memo"},
		&cli.StringFlag{Name: "id", Usage: "Withdrawal id (assigned by the server when unset)"},
		&cli.BoolFlag{
			Name:  "background",
			Usage: "Queue the withdrawal as a background job instead of waiting",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "With --background, follow the job's events until it ends",
		},
	}
	flags = append(flags, amountFlags()...)

	return &cli.Command{
		Name:  "withdraw",
		Usage: "Request a withdrawal from the server",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			req := client.WithdrawRequest{
				ID:   c.String("id"),
				From: c.String("from"),
				To:   c.String("to"),
				Memo: c.String("memo"),
			}
			// The server does the exact conversion; pass SOL through as given.
			if amount := c.String("amount"); amount != "" {
				if c.Uint64("lamports") != 0 {
					return fmt.Errorf("set only one of --amount and --lamports")
				}
				req.AmountSOL = amount
			} else if req.Lamports = c.Uint64("lamports"); req.Lamports == 0 {
				return fmt.Errorf("--amount or --lamports is required")
			}

			if !c.Bool("background") {
				result, err := cl.Withdraw(c.Context, req)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return printJSON(c.App.Writer, result)
				}
				printAPIResult(c.App.Writer, result)
				if result.Outcome == "failed" {
					return fmt.Errorf("withdrawal failed: %s", result.Reason)
				}
				return nil
			}

			req.Mode = "background"
			accepted, err := cl.WithdrawAsync(c.Context, req)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				if err := printJSON(c.App.Writer, accepted); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(c.App.Writer, "✓ Withdrawal %s queued\n", accepted.WithdrawalID)
				fmt.Fprintf(c.App.Writer, "  Workflow: %s (run %s)\n", accepted.WorkflowID, accepted.RunID)
			}
			if !c.Bool("watch") {
				return nil
			}
			return watchWithdrawal(c, cl, accepted.WithdrawalID, true)
		},
	}
}

func apiGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a withdrawal record",
		ArgsUsage: "WITHDRAWAL_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("withdrawal id is required")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			w, err := cl.Get(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, w)
			}
			printWithdrawal(c.App.Writer, w)
			return nil
		},
	}
}

func apiListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recent withdrawals",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Usage: "Only withdrawals from this sender"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of withdrawals", Value: 20},
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			list, err := cl.List(c.Context, c.String("address"), c.Int("limit"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(c.App.Writer, "No withdrawals found")
				return nil
			}
			for _, w := range list {
				fmt.Fprintf(c.App.Writer, "%-36s  %-10s  %14s SOL  %s\n",
					w.ID, w.Status, solana.LamportsToSOL(w.Lamports), w.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

func apiBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show an address's ledger balance",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			address, err := requireAddressArg(c)
			if err != nil {
				return err
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			b, err := cl.Balance(c.Context, address)
			if err != nil {
				return err
			}
			return printBalance(c, b)
		},
	}
}

func apiCreditCommand() *cli.Command {
	return &cli.Command{
		Name:      "credit",
		Usage:     "Add funds to an address's ledger balance",
		ArgsUsage: "ADDRESS",
		Flags:     amountFlags(),
		Action: func(c *cli.Context) error {
			address, err := requireAddressArg(c)
			if err != nil {
				return err
			}
			lamports, err := amountLamports(c)
			if err != nil {
				return err
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			b, err := cl.Credit(c.Context, address, lamports)
			if err != nil {
				return err
			}
			return printBalance(c, b)
		},
	}
}

func apiWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a withdrawal's events over server-sent events",
		ArgsUsage: "WITHDRAWAL_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Include events published before connecting",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("withdrawal id is required")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			return watchWithdrawal(c, cl, c.Args().Get(0), c.Bool("replay"))
		},
	}
}

func watchWithdrawal(c *cli.Context, cl *client.Client, id string, replay bool) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	last, err := cl.Watch(ctx, id, replay, func(e *client.StatusEvent) {
		if c.Bool("json") {
			printJSON(c.App.Writer, e)
			return
		}
		line := fmt.Sprintf("→ %s (%s)", e.Stage, e.Status)
		if e.Message != "" {
			line += ": " + e.Message
		}
		fmt.Fprintln(c.App.Writer, line)
	})
	if err != nil {
		return err
	}
	if last.Outcome == "failed" || last.Stage == "failed" {
		return fmt.Errorf("withdrawal failed: %s", last.Reason)
	}
	return nil
}

func printAPIResult(w io.Writer, r *client.Result) {
	switch r.Outcome {
	case "completed":
		fmt.Fprintf(w, "✓ Withdrawal %s completed\n", r.WithdrawalID)
	case "unconfirmed":
		fmt.Fprintf(w, "? Withdrawal %s submitted but not confirmed yet; check the explorer\n", r.WithdrawalID)
	default:
		fmt.Fprintf(w, "✗ Withdrawal %s failed: %s\n", r.WithdrawalID, r.Reason)
	}
	if r.Signature != "" {
		fmt.Fprintf(w, "  Signature: %s\n", r.Signature)
	}
	if r.ExplorerURL != "" {
		fmt.Fprintf(w, "  Explorer:  %s\n", r.ExplorerURL)
	}
}

func printWithdrawal(w io.Writer, wd *client.Withdrawal) {
	fmt.Fprintf(w, "Withdrawal: %s\n", wd.ID)
	fmt.Fprintf(w, "  Status:    %s\n", wd.Status)
	fmt.Fprintf(w, "  From:      %s\n", wd.From)
	fmt.Fprintf(w, "  To:        %s\n", wd.To)
	fmt.Fprintf(w, "  Amount:    %s SOL (%d lamports)\n", solana.LamportsToSOL(wd.Lamports), wd.Lamports)
	fmt.Fprintf(w, "  Network:   %s\n", wd.Network)
	if wd.Memo != "" {
		fmt.Fprintf(w, "  Memo:      %s\n", wd.Memo)
	}
	if wd.Signature != "" {
		fmt.Fprintf(w, "  Signature: %s\n", wd.Signature)
		fmt.Fprintf(w, "  Explorer:  %s\n", wd.ExplorerURL)
	}
	if wd.ConfirmationStatus != "" {
		fmt.Fprintf(w, "  Confirmation: %s\n", wd.ConfirmationStatus)
	}
	if wd.FailureReason != "" {
		fmt.Fprintf(w, "  Reason:    %s\n", wd.FailureReason)
	}
	fmt.Fprintf(w, "  Created:   %s\n", wd.CreatedAt.Local().Format(time.RFC3339))
	if wd.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", wd.CompletedAt.Local().Format(time.RFC3339))
	}
}

func printBalance(c *cli.Context, b *client.Balance) error {
	if c.Bool("json") {
		return printJSON(c.App.Writer, b)
	}
	fmt.Fprintf(c.App.Writer, "Address:   %s\n", b.Address)
	fmt.Fprintf(c.App.Writer, "Available: %s SOL\n", solana.LamportsToSOL(b.Available))
	fmt.Fprintf(c.App.Writer, "Reserved:  %s SOL\n", solana.LamportsToSOL(b.Reserved))
	return nil
}
