package solana

import (
	"github.com/mr-tron/base58"
)

// Alphabet is the Bitcoin Base58 alphabet used for Solana keys, blockhashes
// and signatures. It has no 0, O, I or l.
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// EncodeBase58 encodes b as Base58. Every leading zero byte becomes a leading
// '1', so 32 zero bytes encode as 32 '1' characters.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

// DecodeBase58 decodes s, mapping each leading '1' back to a zero byte.
// Callers check the decoded width themselves.
func DecodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, newError(KindInvalidEncoding, "base58", "empty string")
	}
	for i := 0; i < len(s); i++ {
		if !isBase58Char(s[i]) {
			return nil, newError(KindInvalidEncoding, "base58", "invalid character %q at position %d", s[i], i)
		}
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, &Error{Kind: KindInvalidEncoding, Op: "base58", Err: err}
	}
	return b, nil
}

// decodeFixed decodes s and requires exactly n bytes, reporting any problem
// as kind.
func decodeFixed(s string, n int, kind ErrorKind, what string) ([]byte, error) {
	b, err := DecodeBase58(s)
	if err != nil {
		return nil, &Error{Kind: kind, Op: what, Message: "not valid base58", Err: err}
	}
	if len(b) != n {
		return nil, newError(kind, what, "decoded to %d bytes, want %d", len(b), n)
	}
	return b, nil
}

func isBase58Char(c byte) bool {
	switch {
	case c >= '1' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O'
	case c >= 'a' && c <= 'z':
		return c != 'l'
	}
	return false
}
