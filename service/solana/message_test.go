package solana

import (
	"bytes"
	"encoding/binary"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneSOL = 1_000_000_000

// The payer is a placeholder of 0x01 bytes: 32 zero bytes would decode to
// the System Program id and collapse two accounts into one.
func fixture(t *testing.T) (payer, dest PublicKey, blockhash string) {
	t.Helper()
	return testKey(0x01), testKey(0x02), EncodeBase58(bytes.Repeat([]byte{0xAA}, HashLength))
}

func TestCompileMessage_TransferLayout(t *testing.T) {
	payer, dest, blockhash := fixture(t)

	msg, err := CompileMessage(payer, []Instruction{NewTransferInstruction(payer, dest, oneSOL)}, blockhash)
	require.NoError(t, err)
	raw, err := msg.MarshalBinary()
	require.NoError(t, err)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, 2)
	binary.LittleEndian.PutUint64(data[4:], oneSOL)

	var want []byte
	want = append(want, 1, 0, 1) // header
	want = append(want, 0x03)    // three account keys
	want = append(want, payer[:]...)
	want = append(want, dest[:]...)
	want = append(want, SystemProgramID[:]...)
	want = append(want, bytes.Repeat([]byte{0xAA}, 32)...)
	want = append(want, 0x01)       // one instruction
	want = append(want, 0x02)       // program index: third account
	want = append(want, 0x02, 0, 1) // two account indices
	want = append(want, 12)
	want = append(want, data...)

	assert.Equal(t, want, raw)
	assert.Len(t, raw, 3+1+3*32+32+1+1+3+1+12)
}

func TestCompileMessage_Deterministic(t *testing.T) {
	payer, dest, blockhash := fixture(t)
	build := func(memo string) []byte {
		ixs := []Instruction{
			NewTransferInstruction(payer, dest, oneSOL),
			NewMemoInstruction(payer, memo),
		}
		msg, err := CompileMessage(payer, ixs, blockhash)
		require.NoError(t, err)
		raw, err := msg.MarshalBinary()
		require.NoError(t, err)
		return raw
	}

	a := build("withdrawal-0001")
	b := build("withdrawal-0001")
	assert.Equal(t, a, b)

	c := build("withdrawal-0002")
	require.Equal(t, len(a), len(c))
	var diff []int
	for i := range a {
		if a[i] != c[i] {
			diff = append(diff, i)
		}
	}
	// only the last character of the memo data differs
	assert.Equal(t, []int{len(a) - 1}, diff)
}

func TestCompileMessage_InvalidBlockhash(t *testing.T) {
	payer, dest, _ := fixture(t)
	ixs := []Instruction{NewTransferInstruction(payer, dest, 1)}

	_, err := CompileMessage(payer, ixs, "not-a-blockhash")
	assert.ErrorIs(t, err, ErrInvalidBlockhash)

	_, err = CompileMessage(payer, ixs, EncodeBase58([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidBlockhash)
}

func TestCompileMessage_MatchesSolanaGo(t *testing.T) {
	priv, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	from := priv.PublicKey()
	to := solanago.PublicKeyFromBytes(bytes.Repeat([]byte{0x02}, 32))
	bh := solanago.HashFromBytes(bytes.Repeat([]byte{0xAA}, 32))

	payer, err := PublicKeyFromBytes(from.Bytes())
	require.NoError(t, err)
	dest, err := PublicKeyFromBytes(to.Bytes())
	require.NoError(t, err)

	t.Run("transfer", func(t *testing.T) {
		oracle, err := solanago.NewTransaction(
			[]solanago.Instruction{system.NewTransferInstruction(oneSOL, from, to).Build()},
			bh,
			solanago.TransactionPayer(from),
		)
		require.NoError(t, err)
		want, err := oracle.Message.MarshalBinary()
		require.NoError(t, err)

		msg, err := CompileMessage(payer, []Instruction{NewTransferInstruction(payer, dest, oneSOL)}, bh.String())
		require.NoError(t, err)
		got, err := msg.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("transfer with memo, signed", func(t *testing.T) {
		memo := solanago.NewInstruction(
			solanago.MustPublicKeyFromBase58(MemoProgramID.String()),
			solanago.AccountMetaSlice{solanago.NewAccountMeta(from, false, true)},
			[]byte("payout 42"),
		)
		oracle, err := solanago.NewTransaction(
			[]solanago.Instruction{system.NewTransferInstruction(oneSOL, from, to).Build(), memo},
			bh,
			solanago.TransactionPayer(from),
		)
		require.NoError(t, err)
		_, err = oracle.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
			if key.Equals(from) {
				return &priv
			}
			return nil
		})
		require.NoError(t, err)
		want, err := oracle.MarshalBinary()
		require.NoError(t, err)

		ixs := []Instruction{
			NewTransferInstruction(payer, dest, oneSOL),
			NewMemoInstruction(payer, "payout 42"),
		}
		signed, err := BuildSignedTransaction(payer, ixs, bh.String(), priv)
		require.NoError(t, err)
		assert.Equal(t, want, signed.Wire)
		assert.Equal(t, oracle.Signatures[0].String(), signed.Signature.String())
	})
}
