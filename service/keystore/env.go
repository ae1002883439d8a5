package keystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/brojonat/solwithdraw/service/solana"
)

// EnvSecretKey is the variable EnvProvider reads.
const EnvSecretKey = "SOLANA_SECRET_KEY"

// EnvProvider serves a single key from the environment. The variable is read
// on every call so the key is not held in memory between signings.
type EnvProvider struct {
	Var string
}

// SecretKey returns the key from the environment if it belongs to address.
func (p EnvProvider) SecretKey(ctx context.Context, address string) ([]byte, error) {
	name := p.Var
	if name == "" {
		name = EnvSecretKey
	}
	raw := os.Getenv(name)
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", name)
	}
	secret, err := ParseSecretKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if _, err := solana.VerifyKey(secret, address); err != nil {
		clear(secret)
		return nil, err
	}
	return secret, nil
}

// ParseSecretKey accepts a 64-byte secret key as base58 or as the JSON byte
// array written by the Solana CLI.
func ParseSecretKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var secret []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("invalid key array: %w", err)
		}
		secret = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				clear(secret)
				return nil, fmt.Errorf("key array value %d out of range", v)
			}
			secret[i] = byte(v)
		}
		clear(ints)
	} else {
		var err error
		secret, err = solana.DecodeBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 key: %w", err)
		}
	}
	if len(secret) != solana.SecretKeyLength {
		clear(secret)
		return nil, fmt.Errorf("secret key is %d bytes, want %d", len(secret), solana.SecretKeyLength)
	}
	return secret, nil
}

// ReadKeyFile parses a Solana CLI keypair file.
func ReadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer clear(data)
	return ParseSecretKey(string(data))
}
