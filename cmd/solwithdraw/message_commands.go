package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/urfave/cli/v2"
)

// zeroBlockhash is the base58 form of 32 zero bytes.
const zeroBlockhash = "11111111111111111111111111111111"

func messageInspectCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "Sender and fee payer address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Recipient address",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "memo",
			Usage: "Optional memo instruction",
		},
		&cli.StringFlag{
			Name:  "blockhash",
			Usage: "Recent blockhash (base58)",
			Value: zeroBlockhash,
		},
	}
	flags = append(flags, amountFlags()...)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Compile a transfer message offline and dump its bytes",
		Description: `Compile the exact message a withdrawal would sign, without touching the
network or any key.

Example:
  solwithdraw message inspect --from SENDER --to RECIPIENT --lamports 1000 --memo hi`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			lamports, err := amountLamports(c)
			if err != nil {
				return err
			}
			from, err := solana.PublicKeyFromBase58(c.String("from"))
			if err != nil {
				return fmt.Errorf("invalid sender address: %w", err)
			}
			to, err := solana.PublicKeyFromBase58(c.String("to"))
			if err != nil {
				return fmt.Errorf("invalid recipient address: %w", err)
			}

			instructions := []solana.Instruction{solana.NewTransferInstruction(from, to, lamports)}
			if memo := c.String("memo"); memo != "" {
				instructions = append(instructions, solana.NewMemoInstruction(from, memo))
			}
			msg, err := solana.CompileMessage(from, instructions, c.String("blockhash"))
			if err != nil {
				return fmt.Errorf("failed to compile message: %w", err)
			}
			raw, err := msg.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to serialize message: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, messageJSON(msg, raw))
			}
			printMessage(c.App.Writer, msg, raw)
			return nil
		},
	}
}

type instructionJSON struct {
	ProgramIDIndex uint8  `json:"program_id_index"`
	ProgramID      string `json:"program_id"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data_hex"`
}

func messageJSON(msg *solana.Message, raw []byte) map[string]any {
	keys := make([]string, len(msg.AccountKeys))
	for i, k := range msg.AccountKeys {
		keys[i] = k.String()
	}
	ixs := make([]instructionJSON, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		// []uint8 would marshal as base64
		accounts := make([]int, len(ix.AccountIndices))
		for j, a := range ix.AccountIndices {
			accounts[j] = int(a)
		}
		ixs[i] = instructionJSON{
			ProgramIDIndex: ix.ProgramIDIndex,
			ProgramID:      msg.AccountKeys[ix.ProgramIDIndex].String(),
			Accounts:       accounts,
			Data:           hex.EncodeToString(ix.Data),
		}
	}
	return map[string]any{
		"header": map[string]uint8{
			"num_required_signatures":        msg.Header.NumRequiredSignatures,
			"num_readonly_signed_accounts":   msg.Header.NumReadonlySignedAccounts,
			"num_readonly_unsigned_accounts": msg.Header.NumReadonlyUnsignedAccounts,
		},
		"account_keys":     keys,
		"recent_blockhash": msg.RecentBlockhash.String(),
		"instructions":     ixs,
		"size":             len(raw),
		"hex":              hex.EncodeToString(raw),
		"base64":           base64.StdEncoding.EncodeToString(raw),
	}
}

func printMessage(w io.Writer, msg *solana.Message, raw []byte) {
	fmt.Fprintf(w, "Header: signatures=%d readonly_signed=%d readonly_unsigned=%d\n",
		msg.Header.NumRequiredSignatures,
		msg.Header.NumReadonlySignedAccounts,
		msg.Header.NumReadonlyUnsignedAccounts)
	fmt.Fprintln(w, "Accounts:")
	for i, k := range msg.AccountKeys {
		fmt.Fprintf(w, "  [%d] %s\n", i, k)
	}
	fmt.Fprintf(w, "Blockhash: %s\n", msg.RecentBlockhash)
	fmt.Fprintln(w, "Instructions:")
	for i, ix := range msg.Instructions {
		fmt.Fprintf(w, "  #%d program=[%d] accounts=%v data=%s\n",
			i, ix.ProgramIDIndex, ix.AccountIndices, hex.EncodeToString(ix.Data))
	}
	fmt.Fprintf(w, "Message (%d bytes):\n", len(raw))
	fmt.Fprint(w, hex.Dump(raw))
}
