package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// eventsWatchCommand streams withdrawal status events from NATS.
func eventsWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream withdrawal status events",
		ArgsUsage: "[WITHDRAWAL_ID]",
		Description: `Subscribe to withdrawal status events published to NATS JetStream.
Events are published to the subject: withdrawals.{withdrawal_id}

With a withdrawal id the stream ends once the withdrawal completes or fails.
Every --jq filter is evaluated against the event JSON and must be truthy
for the event to be shown.

Example:
  solwithdraw events watch --jq '.stage == "failed"' --jq '.lamports > 1000000'`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Deliver retained events first",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter evaluated against each event (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Stop after this long (0 waits until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			logger := cliLogger(c)

			sub, err := natspkg.NewSubscriber(c.String("nats-url"), logger)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout := c.Duration("timeout"); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			id := c.Args().Get(0)
			events, err := sub.Subscribe(ctx, natspkg.SubscribeOptions{
				WithdrawalID: id,
				Replay:       c.Bool("replay"),
			})
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}

			if !c.Bool("json") {
				target := "all withdrawals"
				if id != "" {
					target = "withdrawal " + id
				}
				fmt.Fprintf(c.App.ErrWriter, "Watching %s (Ctrl+C to stop)\n\n", target)
			}

			for event := range events {
				if !matchJQ(filters, event, logger.Debug) {
					continue
				}
				if c.Bool("json") {
					data, err := json.Marshal(event)
					if err != nil {
						return fmt.Errorf("failed to marshal event: %w", err)
					}
					fmt.Fprintln(c.App.Writer, string(data))
				} else {
					printEvent(c.App.Writer, event)
				}
				if id != "" && (event.Stage == "completed" || event.Stage == "failed") {
					return nil
				}
			}
			return nil
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

// matchJQ reports whether every filter yields a truthy first result for
// the event. gojq needs plain JSON values, so the event goes through a
// marshal round trip first.
func matchJQ(codes []*gojq.Code, event *natspkg.WithdrawalStatusEvent, debug func(string, ...any)) bool {
	if len(codes) == 0 {
		return true
	}
	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	for _, code := range codes {
		v, ok := code.Run(doc).Next()
		if !ok {
			return false
		}
		if err, isErr := v.(error); isErr {
			debug("jq filter error", "error", err)
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy follows jq semantics: only false and null are falsy.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

func printEvent(w io.Writer, e *natspkg.WithdrawalStatusEvent) {
	fmt.Fprintf(w, "[%s] %s  %-16s %s\n",
		e.PublishedAt.Local().Format(time.TimeOnly), e.WithdrawalID, e.Stage, e.Status)
	fmt.Fprintf(w, "  %s -> %s  %s SOL\n", e.From, e.To, solana.LamportsToSOL(e.Lamports))
	if e.Message != "" {
		fmt.Fprintf(w, "  %s\n", e.Message)
	}
	if e.Signature != "" {
		fmt.Fprintf(w, "  Signature: %s\n", e.Signature)
	}
	if e.Reason != "" {
		fmt.Fprintf(w, "  Reason:    %s\n", e.Reason)
	}
	fmt.Fprintln(w)
}
