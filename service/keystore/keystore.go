// Package keystore holds the secret keys used to sign withdrawals. Keys are
// stored encrypted on disk and decrypted only for the signing step.
package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brojonat/solwithdraw/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/scrypt"
)

const (
	fileVersion = 1

	// scrypt parameters: N=2^18 costs ~256MB and well under a few seconds.
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
)

// ErrKeyNotFound is returned when no key is stored for an address.
var ErrKeyNotFound = errors.New("no key stored for address")

// ErrWrongPassword is returned when a keystore file cannot be decrypted.
var ErrWrongPassword = errors.New("invalid keystore password")

// File is the on-disk form of one encrypted key.
type File struct {
	Version    int       `json:"version"`
	Address    string    `json:"address"`
	KDF        KDFParams `json:"kdf"`
	Nonce      string    `json:"nonce"`
	CipherText string    `json:"ciphertext"`
}

// KDFParams records how the encryption key was derived.
type KDFParams struct {
	Name string `json:"name"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
	Salt string `json:"salt"`
}

// FileStore keeps one encrypted file per address in a directory and
// implements withdrawal.KeyProvider.
type FileStore struct {
	dir      string
	password []byte
	scryptN  int
	logger   *slog.Logger
}

// NewFileStore opens a keystore directory, creating it if needed. The
// password is copied; call Close to wipe it.
func NewFileStore(dir string, password []byte, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("keystore directory is required")
	}
	if len(password) == 0 {
		return nil, errors.New("keystore password is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return &FileStore{
		dir:      dir,
		password: append([]byte(nil), password...),
		scryptN:  scryptN,
		logger:   logger,
	}, nil
}

// Close wipes the password held by the store.
func (s *FileStore) Close() {
	clear(s.password)
}

// Path returns the keystore file path for address.
func (s *FileStore) Path(address string) string {
	return filepath.Join(s.dir, address+".json")
}

// SecretKey decrypts the 64-byte secret key for address. The caller owns
// the returned slice and should clear it after signing.
func (s *FileStore) SecretKey(ctx context.Context, address string) ([]byte, error) {
	if !solana.ValidAddressFormat(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	f, err := s.read(address)
	if err != nil {
		return nil, err
	}
	secret, err := decrypt(f, s.password)
	if err != nil {
		return nil, err
	}
	if _, err := solana.VerifyKey(secret, address); err != nil {
		clear(secret)
		return nil, err
	}
	s.logger.DebugContext(ctx, "decrypted signing key", "address", address)
	return secret, nil
}

// Write encrypts secret and stores it under the address derived from it.
// Existing files are never overwritten.
func (s *FileStore) Write(secret []byte) (string, error) {
	pub, err := solana.DerivePublicKey(secret)
	if err != nil {
		return "", err
	}
	address := pub.String()

	f, err := encrypt(secret, s.password, s.scryptN)
	if err != nil {
		return "", err
	}
	f.Address = address

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal keystore file: %w", err)
	}
	out, err := os.OpenFile(s.Path(address), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create keystore file: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write keystore file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write keystore file: %w", err)
	}
	s.logger.Info("stored key", "address", address)
	return address, nil
}

// Generate creates a new random keypair, stores it and returns its address.
func (s *FileStore) Generate() (string, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	defer clear(key)
	return s.Write(key)
}

// Addresses lists the addresses with a stored key.
func (s *FileStore) Addresses() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		address := strings.TrimSuffix(name, ".json")
		if solana.ValidAddressFormat(address) {
			out = append(out, address)
		}
	}
	return out, nil
}

func (s *FileStore) read(address string) (*File, error) {
	data, err := os.ReadFile(s.Path(address))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, address)
		}
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keystore file: %w", err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", f.Version)
	}
	if f.Address != address {
		return nil, fmt.Errorf("keystore file for %s names address %s", address, f.Address)
	}
	return &f, nil
}

func encrypt(secret, password []byte, n int) (*File, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := newAEAD(password, salt, n, scryptR, scryptP)
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, secret, nil)

	return &File{
		Version: fileVersion,
		KDF: KDFParams{
			Name: "scrypt",
			N:    n,
			R:    scryptR,
			P:    scryptP,
			Salt: base64.StdEncoding.EncodeToString(salt),
		},
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func decrypt(f *File, password []byte) ([]byte, error) {
	if f.KDF.Name != "scrypt" {
		return nil, fmt.Errorf("unsupported key derivation %q", f.KDF.Name)
	}
	salt, err := base64.StdEncoding.DecodeString(f.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(f.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aead, err := newAEAD(password, salt, f.KDF.N, f.KDF.R, f.KDF.P)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce is %d bytes, want %d", len(nonce), aead.NonceSize())
	}
	secret, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return secret, nil
}

func newAEAD(password, salt []byte, n, r, p int) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, n, r, p, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
