package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brojonat/solwithdraw/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the withdrawal API is up and show what it serves",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}
			api := client.NewClient(serverURL, &http.Client{Timeout: c.Duration("timeout")}, cliLogger(c))

			health, err := api.Health(c.Context)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, health)
			}
			printHealth(c.App.Writer, serverURL, health)
			if health.Status != "ok" {
				return fmt.Errorf("server reports status %q", health.Status)
			}
			return nil
		},
	}
}

func printHealth(w io.Writer, serverURL string, h *client.Health) {
	fmt.Fprintf(w, "Server %s: %s\n", serverURL, h.Status)
	fmt.Fprintf(w, "  Network:                %s\n", h.Network)
	fmt.Fprintf(w, "  Background withdrawals: %s\n", enabled(h.Background))
	fmt.Fprintf(w, "  Event streaming:        %s\n", enabled(h.Streaming))
	fmt.Fprintf(w, "  Airdrop:                %s\n", enabled(h.Airdrop))
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]string{
					"version": version,
					"commit":  commit,
					"built":   date,
				})
			}
			fmt.Fprintf(c.App.Writer, "solwithdraw %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
