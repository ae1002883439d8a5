package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inspectOutput struct {
	Header struct {
		NumRequiredSignatures       int `json:"num_required_signatures"`
		NumReadonlySignedAccounts   int `json:"num_readonly_signed_accounts"`
		NumReadonlyUnsignedAccounts int `json:"num_readonly_unsigned_accounts"`
	} `json:"header"`
	AccountKeys     []string          `json:"account_keys"`
	RecentBlockhash string            `json:"recent_blockhash"`
	Instructions    []instructionJSON `json:"instructions"`
	Size            int               `json:"size"`
	Hex             string            `json:"hex"`
}

func TestMessageInspect_Transfer(t *testing.T) {
	out, err := runApp(t, "--json", "message", "inspect",
		"--from", testFrom,
		"--to", testTo,
		"--lamports", "1000",
	)
	require.NoError(t, err)

	var got inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Header.NumRequiredSignatures)
	assert.Equal(t, 0, got.Header.NumReadonlySignedAccounts)
	assert.Equal(t, 1, got.Header.NumReadonlyUnsignedAccounts)
	assert.Equal(t, []string{testFrom, testTo, zeroBlockhash}, got.AccountKeys)
	assert.Equal(t, zeroBlockhash, got.RecentBlockhash)

	require.Len(t, got.Instructions, 1)
	ix := got.Instructions[0]
	assert.Equal(t, uint8(2), ix.ProgramIDIndex)
	assert.Equal(t, []int{0, 1}, ix.Accounts)
	assert.Equal(t, "02000000e803000000000000", ix.Data)

	assert.Equal(t, 150, got.Size)
	assert.Len(t, got.Hex, 300)
}

func TestMessageInspect_Memo(t *testing.T) {
	out, err := runApp(t, "--json", "message", "inspect",
		"--from", testFrom,
		"--to", testTo,
		"--amount", "0.001",
		"--memo", "payout 42",
	)
	require.NoError(t, err)

	var got inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Header.NumReadonlyUnsignedAccounts)
	assert.Len(t, got.AccountKeys, 4)
	require.Len(t, got.Instructions, 2)
	assert.Equal(t, []int{0}, got.Instructions[1].Accounts)
	assert.Equal(t, "7061796f7574203432", got.Instructions[1].Data)
}

func TestMessageInspect_HexDump(t *testing.T) {
	out, err := runApp(t, "message", "inspect", "--from", testFrom, "--to", testTo, "--lamports", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Message (150 bytes):")
	assert.Contains(t, out, "00000000  01 00 01 03")
}

func TestMessageInspect_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "bad sender",
			args: []string{"--from", "nope", "--to", testTo, "--lamports", "1"},
			want: "invalid sender address",
		},
		{
			name: "bad blockhash",
			args: []string{"--from", testFrom, "--to", testTo, "--lamports", "1", "--blockhash", "abc"},
			want: "failed to compile message",
		},
		{
			name: "zero amount",
			args: []string{"--from", testFrom, "--to", testTo, "--amount", "0"},
			want: "greater than zero",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, append([]string{"message", "inspect"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
