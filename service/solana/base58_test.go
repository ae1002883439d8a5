package solana

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase58RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for n := 1; n <= 64; n++ {
		for _, zeros := range []int{0, 1, 5} {
			if zeros > n {
				continue
			}
			b := make([]byte, n)
			for i := zeros; i < n; i++ {
				b[i] = byte(rng.IntN(256))
			}
			decoded, err := DecodeBase58(EncodeBase58(b))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(b, decoded), "round trip of %x", b)
		}
	}
}

func TestBase58LeadingZeros(t *testing.T) {
	assert.True(t, strings.HasPrefix(EncodeBase58([]byte{0x00, 0x00, 0x01}), "11"))
	assert.Equal(t, "112", EncodeBase58([]byte{0x00, 0x00, 0x01}))
	assert.Equal(t, strings.Repeat("1", 32), EncodeBase58(make([]byte, 32)))

	decoded, err := DecodeBase58(strings.Repeat("1", 32))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), decoded)
}

func TestDecodeBase58Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"zero digit", "10"},
		{"capital O", "O1"},
		{"capital I", "I1"},
		{"lowercase l", "l1"},
		{"whitespace", "abc def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBase58(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEncoding)
		})
	}
}

func TestPublicKeyFromBase58(t *testing.T) {
	t.Run("system program", func(t *testing.T) {
		pk, err := PublicKeyFromBase58("11111111111111111111111111111111")
		require.NoError(t, err)
		assert.True(t, pk.IsZero())
		assert.Equal(t, SystemProgramID, pk)
	})

	t.Run("wrong width is invalid address", func(t *testing.T) {
		_, err := PublicKeyFromBase58(EncodeBase58(make([]byte, 31)))
		assert.ErrorIs(t, err, ErrInvalidAddress)

		_, err = PublicKeyFromBase58(EncodeBase58(bytes.Repeat([]byte{0xff}, 33)))
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("bad encoding is invalid address", func(t *testing.T) {
		_, err := PublicKeyFromBase58("0OIl")
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})

	t.Run("text round trip", func(t *testing.T) {
		text, err := MemoProgramID.MarshalText()
		require.NoError(t, err)
		var pk PublicKey
		require.NoError(t, pk.UnmarshalText(text))
		assert.Equal(t, MemoProgramID, pk)
	})
}

func TestHashFromBase58(t *testing.T) {
	h := bytes.Repeat([]byte{0xAA}, 32)
	got, err := HashFromBase58(EncodeBase58(h))
	require.NoError(t, err)
	assert.Equal(t, h, got[:])

	_, err = HashFromBase58(EncodeBase58(h[:16]))
	assert.ErrorIs(t, err, ErrInvalidBlockhash)

	_, err = HashFromBase58("")
	assert.ErrorIs(t, err, ErrInvalidBlockhash)
}

func TestValidAddressFormat(t *testing.T) {
	assert.True(t, ValidAddressFormat("11111111111111111111111111111111"))
	assert.True(t, ValidAddressFormat(MemoProgramID.String()))
	assert.False(t, ValidAddressFormat("short"))
	assert.False(t, ValidAddressFormat("0x1111111111111111111111111111111111"))
}
