package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/stretchr/testify/assert"
)

func TestHumanReadable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "balance check shortfall",
			err:  &solana.InsufficientFundsError{Have: 4999, Need: 6000},
			want: "Insufficient funds in the source wallet: have 0.000004999 SOL, need 0.000006 SOL (including network fee).",
		},
		{
			name: "fee funds from node",
			err:  errors.New("Transaction simulation failed: InsufficientFundsForFee"),
			want: msgFeeFunds,
		},
		{
			name: "funds from node",
			err:  errors.New("Attempt to debit an account but found no record of a prior credit: insufficient funds"),
			want: msgChainFunds,
		},
		{
			name: "invalid address kind",
			err:  &solana.Error{Kind: solana.KindInvalidAddress, Op: "public key"},
			want: msgInvalidAddress,
		},
		{
			name: "blockhash not found",
			err:  errors.New("Transaction simulation failed: Blockhash not found"),
			want: msgExpired,
		},
		{
			name: "confirmation timeout",
			err:  &solana.Error{Kind: solana.KindConfirmationTimeout},
			want: msgTimeout,
		},
		{
			name: "key mismatch",
			err:  &solana.Error{Kind: solana.KindKeyMismatch},
			want: msgWalletConfig,
		},
		{
			name: "secret key in message",
			err:  errors.New("failed to load secret key: file not found"),
			want: msgWalletConfig,
		},
		{
			name: "transport",
			err:  &solana.Error{Kind: solana.KindRPCTransport, Code: 502},
			want: msgNetwork,
		},
		{
			name: "sender missing",
			err:  fmt.Errorf("%w on devnet", ErrSenderNotFound),
			want: msgSenderMissing,
		},
		{
			name: "on-chain failure",
			err:  &solana.Error{Kind: solana.KindRPCLogic, Message: "transaction failed on-chain: {}"},
			want: msgOnChainFailure,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: "context deadline exceeded",
		},
		{
			name: "empty message",
			err:  errors.New("   "),
			want: msgGeneric,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanReadable(tt.err))
		})
	}
	assert.Empty(t, HumanReadable(nil))
}

func TestHumanReadable_NeverLeaksKeyMaterial(t *testing.T) {
	secret := strings.Repeat("ab", 32)
	got := HumanReadable(errors.New("unexpected response for key " + secret))
	assert.NotContains(t, got, secret)
	assert.Contains(t, got, redacted)
}

func TestSanitize(t *testing.T) {
	t.Run("prefixed hex", func(t *testing.T) {
		in := "key 0x" + strings.Repeat("1f", 32) + " rejected"
		assert.Equal(t, "key [REDACTED] rejected", Sanitize(in))
	})

	t.Run("base58 signature", func(t *testing.T) {
		in := "signature 5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7 unknown"
		assert.Equal(t, "signature [REDACTED] unknown", Sanitize(in))
	})

	t.Run("base64 transaction", func(t *testing.T) {
		in := "bad tx AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=="
		assert.Equal(t, "bad tx [REDACTED]", Sanitize(in))
	})

	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "node is behind by 42 slots", Sanitize("node is behind by 42 slots"))
	})

	t.Run("truncates", func(t *testing.T) {
		in := strings.Repeat("word ", 100)
		out := Sanitize(in)
		assert.True(t, strings.HasSuffix(out, "..."))
		assert.Equal(t, maxReasonLength+3, len([]rune(out)))
	})
}
