package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brojonat/solwithdraw/service/keystore"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

func keystoreFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "keystore-dir",
			Usage:   "Directory holding encrypted keys",
			EnvVars: []string{"KEYSTORE_DIR"},
			Value:   defaultKeystoreDir(),
		},
		&cli.StringFlag{
			Name:    "keystore-password",
			Usage:   "Keystore password (prompted for when unset)",
			EnvVars: []string{"KEYSTORE_PASSWORD"},
		},
	}
}

func defaultKeystoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".solwithdraw/keys"
	}
	return filepath.Join(home, ".solwithdraw", "keys")
}

func keystoreCommands() *cli.Command {
	return &cli.Command{
		Name:  "keystore",
		Usage: "Encrypted signing key commands",
		Subcommands: []*cli.Command{
			keystoreNewCommand(),
			keystoreImportCommand(),
			keystoreShowCommand(),
		},
	}
}

func keystoreNewCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Generate a new keypair and store it encrypted",
		Flags: keystoreFlags(),
		Action: func(c *cli.Context) error {
			store, err := openKeystore(c, true)
			if err != nil {
				return err
			}
			defer store.Close()

			address, err := store.Generate()
			if err != nil {
				return err
			}
			return printKeyAddress(c, address, store.Path(address))
		},
	}
}

func keystoreImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Encrypt an existing secret key into the keystore",
		ArgsUsage: "[KEYPAIR_FILE]",
		Description: `Import a 64-byte secret key. The key is read from a Solana CLI keypair
file when one is given, otherwise from SOLANA_SECRET_KEY (base58 or JSON array).

Example:
  solwithdraw keystore import ~/.config/solana/id.json`,
		Flags: keystoreFlags(),
		Action: func(c *cli.Context) error {
			var secret []byte
			var err error
			if c.NArg() == 1 {
				secret, err = keystore.ReadKeyFile(c.Args().Get(0))
			} else {
				raw := os.Getenv(keystore.EnvSecretKey)
				if raw == "" {
					return fmt.Errorf("keypair file argument or %s is required", keystore.EnvSecretKey)
				}
				secret, err = keystore.ParseSecretKey(raw)
			}
			if err != nil {
				return err
			}
			defer clear(secret)

			store, err := openKeystore(c, true)
			if err != nil {
				return err
			}
			defer store.Close()

			address, err := store.Write(secret)
			if err != nil {
				return err
			}
			return printKeyAddress(c, address, store.Path(address))
		},
	}
}

func keystoreShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "List stored addresses, or verify the key for one address",
		ArgsUsage: "[ADDRESS]",
		Flags:     keystoreFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				store, err := keystore.NewFileStore(c.String("keystore-dir"), []byte("-"), cliLogger(c))
				if err != nil {
					return err
				}
				defer store.Close()

				addresses, err := store.Addresses()
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return printJSON(c.App.Writer, addresses)
				}
				if len(addresses) == 0 {
					fmt.Fprintln(c.App.Writer, "No keys stored")
					return nil
				}
				for _, a := range addresses {
					fmt.Fprintln(c.App.Writer, a)
				}
				return nil
			}

			address, err := requireAddressArg(c)
			if err != nil {
				return err
			}
			store, err := openKeystore(c, false)
			if err != nil {
				return err
			}
			defer store.Close()

			secret, err := store.SecretKey(c.Context, address)
			if err != nil {
				return err
			}
			clear(secret)
			return printKeyAddress(c, address, store.Path(address))
		},
	}
}

func printKeyAddress(c *cli.Context, address, path string) error {
	if c.Bool("json") {
		return printJSON(c.App.Writer, map[string]string{
			"address": address,
			"path":    path,
		})
	}
	fmt.Fprintf(c.App.Writer, "✓ %s\n", address)
	fmt.Fprintf(c.App.Writer, "  File:     %s\n", path)
	fmt.Fprintf(c.App.Writer, "  Explorer: %s\n", solana.ExplorerAddressURL(c.String("network"), address))
	return nil
}

func openKeystore(c *cli.Context, confirm bool) (*keystore.FileStore, error) {
	password, err := keystorePassword(c, confirm)
	if err != nil {
		return nil, err
	}
	defer clear(password)
	return keystore.NewFileStore(c.String("keystore-dir"), password, cliLogger(c))
}

// keystorePassword takes the password from the flag or environment, then
// from the terminal without echo, then from a line on stdin.
func keystorePassword(c *cli.Context, confirm bool) ([]byte, error) {
	if p := c.String("keystore-password"); p != "" {
		return []byte(p), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("failed to read keystore password from stdin: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	fmt.Fprint(c.App.ErrWriter, "Keystore password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore password: %w", err)
	}
	if !confirm {
		return password, nil
	}

	fmt.Fprint(c.App.ErrWriter, "Confirm password: ")
	again, err := term.ReadPassword(fd)
	fmt.Fprintln(c.App.ErrWriter)
	defer clear(again)
	if err != nil {
		clear(password)
		return nil, fmt.Errorf("failed to read keystore password: %w", err)
	}
	if !bytes.Equal(password, again) {
		clear(password)
		return nil, errors.New("passwords do not match")
	}
	return password, nil
}
