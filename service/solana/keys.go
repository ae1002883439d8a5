package solana

import (
	"regexp"
)

const (
	PublicKeyLength = 32
	HashLength      = 32
	SignatureLength = 64
	SecretKeyLength = 64
)

// addressPattern is the textual shape of a Solana address. It is a cheap
// pre-check; PublicKeyFromBase58 is the real validation.
var addressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidAddressFormat reports whether s looks like a Base58 address of the
// right length.
func ValidAddressFormat(s string) bool {
	return addressPattern.MatchString(s)
}

// PublicKey is a raw 32-byte Ed25519 public key.
type PublicKey [PublicKeyLength]byte

// PublicKeyFromBase58 parses an address. Bad encoding or a width other than
// 32 bytes is InvalidAddress.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := decodeFixed(s, PublicKeyLength, KindInvalidAddress, "public key")
	if err != nil {
		return pk, err
	}
	copy(pk[:], b)
	return pk, nil
}

// MustPublicKey is PublicKeyFromBase58 for package-level constants.
func MustPublicKey(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies b into a PublicKey. b must be 32 bytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, newError(KindInvalidAddress, "public key", "got %d bytes, want %d", len(b), PublicKeyLength)
	}
	copy(pk[:], b)
	return pk, nil
}

func (k PublicKey) String() string { return EncodeBase58(k[:]) }

func (k PublicKey) Bytes() []byte { return append([]byte(nil), k[:]...) }

func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PublicKey) UnmarshalText(text []byte) error {
	pk, err := PublicKeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*k = pk
	return nil
}

// Hash is a 32-byte blockhash.
type Hash [HashLength]byte

// HashFromBase58 parses a blockhash. Anything that is not exactly 32 bytes is
// InvalidBlockhash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	b, err := decodeFixed(s, HashLength, KindInvalidBlockhash, "blockhash")
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string { return EncodeBase58(h[:]) }

// Signature is a detached 64-byte Ed25519 signature.
type Signature [SignatureLength]byte

// SignatureFromBase58 parses a transaction signature.
func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	b, err := decodeFixed(s, SignatureLength, KindInvalidEncoding, "signature")
	if err != nil {
		return sig, err
	}
	copy(sig[:], b)
	return sig, nil
}

func (s Signature) String() string { return EncodeBase58(s[:]) }

var (
	// SystemProgramID owns native SOL transfers.
	SystemProgramID = MustPublicKey("11111111111111111111111111111111")
	// MemoProgramID is the SPL Memo program (v2).
	MemoProgramID = MustPublicKey("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)
