package solana

import (
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
)

// MaxCompactLength is the largest value a compact-u16 prefix can carry.
const MaxCompactLength = math.MaxUint16

// EncodeLength returns the compact-u16 ("short-vec") encoding of n: seven
// bits per byte, low bits first, high bit set while more bytes follow.
func EncodeLength(n int) ([]byte, error) {
	return AppendLength(nil, n)
}

// AppendLength appends the compact-u16 encoding of n to buf.
func AppendLength(buf []byte, n int) ([]byte, error) {
	if n < 0 || n > MaxCompactLength {
		return buf, fmt.Errorf("compact length %d out of range [0, %d]", n, MaxCompactLength)
	}
	bin.EncodeCompactU16Length(&buf, n)
	return buf, nil
}
