package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/urfave/cli/v2"
)

// newChainClient connects to one of the endpoints in --rpc-url.
func newChainClient(c *cli.Context) (*solana.Client, error) {
	rpcURL, err := solana.SelectRandomEndpoint(solana.ParseEndpoints(c.String("rpc-url")))
	if err != nil {
		return nil, fmt.Errorf("rpc-url is required (set SOLANA_RPC_URL env var or use --rpc-url): %w", err)
	}
	rpc := solana.NewRPCClient(rpcURL, solana.RPCOptions{Timeout: 30 * time.Second})
	return solana.NewClient(rpc, c.String("network"), solana.EndpointLabel(rpcURL), nil, cliLogger(c)), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func requireAddressArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("address is required")
	}
	address := c.Args().Get(0)
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}
	return address, nil
}

func requireSignatureArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("signature is required")
	}
	sig := c.Args().Get(0)
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return "", fmt.Errorf("invalid signature %q: %w", sig, err)
	}
	return sig, nil
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the on-chain balance of an address",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			address, err := requireAddressArg(c)
			if err != nil {
				return err
			}
			chain, err := newChainClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			lamports, err := chain.GetBalance(ctx, address)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]any{
					"address":  address,
					"lamports": lamports,
					"sol":      solana.LamportsToSOL(lamports),
					"network":  chain.Network(),
				})
			}
			fmt.Fprintf(c.App.Writer, "%s SOL (%d lamports)\n", solana.LamportsToSOL(lamports), lamports)
			return nil
		},
	}
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:      "airdrop",
		Usage:     "Request devnet or testnet SOL from the faucet",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "amount",
				Usage: "Amount in SOL",
				Value: "1",
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAddressArg(c)
			if err != nil {
				return err
			}
			lamports, err := solana.SOLToLamports(c.String("amount"))
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			chain, err := newChainClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			sig, err := chain.RequestAirdrop(ctx, address, lamports)
			if err != nil {
				return fmt.Errorf("airdrop failed: %w", err)
			}

			explorer := solana.ExplorerURL(chain.Network(), sig)
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]any{
					"signature":    sig,
					"lamports":     lamports,
					"explorer_url": explorer,
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Requested %s SOL\n", solana.LamportsToSOL(lamports))
			fmt.Fprintf(c.App.Writer, "  Signature: %s\n", sig)
			fmt.Fprintf(c.App.Writer, "  Explorer:  %s\n", explorer)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the confirmation status of a transaction",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			sig, err := requireSignatureArg(c)
			if err != nil {
				return err
			}
			chain, err := newChainClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			statuses, err := chain.GetSignatureStatuses(ctx, sig)
			if err != nil {
				return fmt.Errorf("failed to get signature status: %w", err)
			}
			var status *solana.SignatureStatus
			if len(statuses) > 0 {
				status = statuses[0]
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]any{
					"signature": sig,
					"status":    status,
				})
			}
			if status == nil {
				fmt.Fprintf(c.App.Writer, "Signature %s is not known to the node\n", sig)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "Signature: %s\n", sig)
			fmt.Fprintf(c.App.Writer, "  Slot:         %d\n", status.Slot)
			fmt.Fprintf(c.App.Writer, "  Commitment:   %s\n", status.ConfirmationStatus)
			if status.Confirmations != nil {
				fmt.Fprintf(c.App.Writer, "  Confirmations: %d\n", *status.Confirmations)
			}
			if status.Failed() {
				fmt.Fprintf(c.App.Writer, "  Error:        %s\n", status.Err)
			}
			return nil
		},
	}
}

func txCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Usage:     "Show a confirmed transaction",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			sig, err := requireSignatureArg(c)
			if err != nil {
				return err
			}
			chain, err := newChainClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			tx, err := chain.GetTransaction(ctx, sig)
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}
			if tx == nil {
				return fmt.Errorf("transaction %s not found", sig)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, tx)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Transaction: %s\n", sig)
			fmt.Fprintf(w, "  Slot:      %d\n", tx.Slot)
			if t := tx.Time(); !t.IsZero() {
				fmt.Fprintf(w, "  Time:      %s\n", t.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "  Blockhash: %s\n", tx.Transaction.Message.RecentBlockhash)
			if tx.Meta != nil {
				fmt.Fprintf(w, "  Fee:       %d lamports\n", tx.Meta.Fee)
				if tx.Failed() {
					fmt.Fprintf(w, "  Error:     %s\n", tx.Meta.Err)
				}
			}
			for i, key := range tx.Transaction.Message.AccountKeys {
				line := fmt.Sprintf("  [%d] %s", i, key)
				if tx.Meta != nil && i < len(tx.Meta.PreBalances) && i < len(tx.Meta.PostBalances) {
					line += fmt.Sprintf("  %s -> %s SOL",
						solana.LamportsToSOL(tx.Meta.PreBalances[i]),
						solana.LamportsToSOL(tx.Meta.PostBalances[i]))
				}
				fmt.Fprintln(w, line)
			}
			if tx.Meta != nil && len(tx.Meta.LogMessages) > 0 {
				fmt.Fprintln(w, "  Logs:")
				for _, l := range tx.Meta.LogMessages {
					fmt.Fprintf(w, "    %s\n", l)
				}
			}
			return nil
		},
	}
}

func explorerCommand() *cli.Command {
	return &cli.Command{
		Name:      "explorer",
		Usage:     "Print the block explorer link for a transaction",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			sig, err := requireSignatureArg(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, solana.ExplorerURL(c.String("network"), sig))
			return nil
		},
	}
}
