package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solwithdraw",
		Usage: "Solana withdrawal pipeline CLI",
		Description: `A command-line tool for sending and inspecting SOL withdrawals.

Use this CLI to run withdrawals locally against an RPC node, inspect the chain,
manage the encrypted keystore, follow withdrawal events and call the HTTP API.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			sendCommand(),
			// Chain inspection commands
			balanceCommand(),
			airdropCommand(),
			statusCommand(),
			txCommand(),
			explorerCommand(),
			{
				Name:  "message",
				Usage: "Offline transaction message commands",
				Subcommands: []*cli.Command{
					messageInspectCommand(),
				},
			},
			keystoreCommands(),
			{
				Name:  "events",
				Usage: "Withdrawal event streaming commands",
				Subcommands: []*cli.Command{
					eventsWatchCommand(),
				},
			},
			apiCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana JSON-RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.devnet.solana.com",
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Solana network (mainnet, devnet, testnet)",
				EnvVars: []string{"SOLANA_NETWORK"},
				Value:   "devnet",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Withdrawal server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

// cliLogger writes JSON logs to stderr so stdout stays parseable.
func cliLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}
