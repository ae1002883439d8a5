package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{MaxCompactLength, []byte{0xff, 0xff, 0x03}},
	}
	for _, tt := range tests {
		got, err := EncodeLength(tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "EncodeLength(%d)", tt.n)
	}
}

func TestEncodeLengthOutOfRange(t *testing.T) {
	_, err := EncodeLength(-1)
	assert.Error(t, err)

	_, err = EncodeLength(MaxCompactLength + 1)
	assert.Error(t, err)
}

func TestAppendLength(t *testing.T) {
	buf := []byte{0xde, 0xad}
	buf, err := AppendLength(buf, 300)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xac, 0x02}, buf)
}
