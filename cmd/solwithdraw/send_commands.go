package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwithdraw/service/keystore"
	"github.com/brojonat/solwithdraw/service/ledger"
	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func amountFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "amount",
			Usage: "Amount in SOL, e.g. 0.25",
		},
		&cli.Uint64Flag{
			Name:  "lamports",
			Usage: "Amount in lamports",
		},
	}
}

// amountLamports reads exactly one of --amount and --lamports.
func amountLamports(c *cli.Context) (uint64, error) {
	amount, lamports := c.String("amount"), c.Uint64("lamports")
	switch {
	case amount != "" && lamports != 0:
		return 0, fmt.Errorf("set only one of --amount and --lamports")
	case amount != "":
		v, err := solana.SOLToLamports(amount)
		if err != nil {
			return 0, fmt.Errorf("invalid amount: %w", err)
		}
		if v == 0 {
			return 0, fmt.Errorf("amount must be greater than zero")
		}
		return v, nil
	case lamports != 0:
		return lamports, nil
	default:
		return 0, fmt.Errorf("--amount or --lamports is required")
	}
}

func sendCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "Sender address; its key must be in the keystore or environment",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Recipient address",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "memo",
			Usage: "Optional memo attached to the transfer",
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "Withdrawal id (generated when unset)",
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "Where to load the signing key from: keystore or env",
			Value: "keystore",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for confirmation",
			Value: 30 * time.Second,
		},
	}
	flags = append(flags, amountFlags()...)
	flags = append(flags, keystoreFlags()...)

	return &cli.Command{
		Name:  "send",
		Usage: "Send SOL directly through an RPC node and wait for confirmation",
		Description: `Run one withdrawal locally: validate, check the on-chain balance, build,
sign, submit and confirm. Nothing is recorded on the server.

The key comes from the encrypted keystore by default, or from SOLANA_SECRET_KEY
with --key env.

Example:
  solwithdraw send --from SENDER --to RECIPIENT --amount 0.01 --memo "payout 42"`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			lamports, err := amountLamports(c)
			if err != nil {
				return err
			}
			logger := cliLogger(c)

			var keys withdrawal.KeyProvider
			switch c.String("key") {
			case "env":
				keys = keystore.EnvProvider{}
			case "keystore":
				store, err := openKeystore(c, false)
				if err != nil {
					return err
				}
				defer store.Close()
				keys = store
			default:
				return fmt.Errorf("unknown key source %q (want keystore or env)", c.String("key"))
			}

			chain, err := newChainClient(c)
			if err != nil {
				return err
			}

			var events withdrawal.EventPublisher
			if !c.Bool("json") {
				events = stagePrinter{w: c.App.ErrWriter}
			}
			book := ledger.NewMemory(0, logger)
			svc := withdrawal.NewService(chain, book, keys, events, nil, logger, withdrawal.Options{
				ConfirmTimeout: c.Duration("timeout"),
			})

			id := c.String("id")
			if id == "" {
				id = uuid.NewString()
			}
			req := withdrawal.Request{
				WithdrawalID: id,
				From:         c.String("from"),
				To:           c.String("to"),
				Lamports:     lamports,
				Memo:         c.String("memo"),
			}

			result, err := sendLocal(c.Context, chain, book, svc, req)
			if result == nil {
				return err
			}

			if c.Bool("json") {
				if perr := printJSON(c.App.Writer, result); perr != nil {
					return perr
				}
			} else {
				printResult(c.App.Writer, result)
			}
			if result.Outcome == withdrawal.OutcomeFailed {
				return fmt.Errorf("withdrawal failed: %s", result.Reason)
			}
			return nil
		},
	}
}

// sendLocal mirrors the sender's on-chain balance into the in-memory ledger
// so the reservation succeeds, then runs the pipeline inline.
func sendLocal(ctx context.Context, chain withdrawal.ChainClient, book *ledger.Memory, svc *withdrawal.Service, req withdrawal.Request) (*withdrawal.Result, error) {
	if _, err := solana.PublicKeyFromBase58(req.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	onChain, err := chain.GetBalance(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get sender balance: %w", err)
	}
	if _, err := book.Credit(ctx, req.From, onChain); err != nil {
		return nil, err
	}
	if _, err := book.CreateWithdrawal(ctx, withdrawal.CreateParams{
		ID:       req.WithdrawalID,
		From:     req.From,
		To:       req.To,
		Lamports: req.Lamports,
		Memo:     req.Memo,
		Network:  chain.Network(),
	}); err != nil {
		return nil, err
	}
	return svc.Process(ctx, req)
}

func printResult(w io.Writer, r *withdrawal.Result) {
	switch r.Outcome {
	case withdrawal.OutcomeCompleted:
		fmt.Fprintf(w, "✓ Withdrawal %s completed\n", r.WithdrawalID)
	case withdrawal.OutcomeUnconfirmed:
		fmt.Fprintf(w, "? Withdrawal %s submitted but not confirmed yet; check the explorer\n", r.WithdrawalID)
	default:
		fmt.Fprintf(w, "✗ Withdrawal %s failed: %s\n", r.WithdrawalID, r.Reason)
	}
	if r.Signature != "" {
		fmt.Fprintf(w, "  Signature:    %s\n", r.Signature)
	}
	if r.ConfirmationStatus != "" {
		fmt.Fprintf(w, "  Confirmation: %s\n", r.ConfirmationStatus)
	}
	if r.ExplorerURL != "" {
		fmt.Fprintf(w, "  Explorer:     %s\n", r.ExplorerURL)
	}
}

// stagePrinter reports pipeline progress on the terminal.
type stagePrinter struct {
	w io.Writer
}

func (p stagePrinter) PublishWithdrawalStatus(ctx context.Context, event *natspkg.WithdrawalStatusEvent) error {
	line := fmt.Sprintf("→ %s", event.Stage)
	if event.Message != "" {
		line += ": " + event.Message
	}
	fmt.Fprintln(p.w, line)
	return nil
}
