package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sender    = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	recipient = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func newFunded(t *testing.T, lamports uint64) *Memory {
	t.Helper()
	m := NewMemory(0, nil)
	_, err := m.Credit(context.Background(), sender, lamports)
	require.NoError(t, err)
	return m
}

func create(t *testing.T, m *Memory, id string, lamports uint64) {
	t.Helper()
	_, err := m.CreateWithdrawal(context.Background(), withdrawal.CreateParams{
		ID:       id,
		From:     sender,
		To:       recipient,
		Lamports: lamports,
		Network:  "devnet",
	})
	require.NoError(t, err)
}

func TestMemory_CreateReservesBalance(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, 10_000)

	create(t, m, "wd-1", 4_000)

	b, err := m.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000), b.Available)
	assert.Equal(t, uint64(4_000), b.Reserved)

	rec, err := m.GetWithdrawal(ctx, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusPending, rec.Status)
	assert.Equal(t, "devnet", rec.Network)
}

func TestMemory_CreateRejectsOverdraftAndDuplicates(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, 1_000)

	_, err := m.CreateWithdrawal(ctx, withdrawal.CreateParams{ID: "wd-1", From: sender, To: recipient, Lamports: 1_001})
	assert.ErrorIs(t, err, withdrawal.ErrInsufficientLedgerBalance)

	create(t, m, "wd-1", 500)
	_, err = m.CreateWithdrawal(ctx, withdrawal.CreateParams{ID: "wd-1", From: sender, To: recipient, Lamports: 1})
	assert.ErrorIs(t, err, withdrawal.ErrWithdrawalExists)
}

func TestMemory_CompleteReleasesReservation(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, 10_000)
	create(t, m, "wd-1", 4_000)

	require.NoError(t, m.MarkProcessing(ctx, "wd-1"))
	require.NoError(t, m.MarkProcessing(ctx, "wd-1"))
	require.NoError(t, m.Complete(ctx, "wd-1", withdrawal.Completion{
		Signature:          "sig",
		ExplorerURL:        "https://explorer.solana.com/tx/sig?cluster=devnet",
		ConfirmationStatus: withdrawal.ConfirmationUnknown,
	}))

	b, err := m.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000), b.Available)
	assert.Zero(t, b.Reserved)

	rec, err := m.GetWithdrawal(ctx, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusCompleted, rec.Status)
	assert.Equal(t, withdrawal.ConfirmationUnknown, rec.ConfirmationStatus)
	require.NotNil(t, rec.CompletedAt)
}

func TestMemory_FailRestoresBalance(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, 10_000)
	create(t, m, "wd-1", 4_000)

	require.NoError(t, m.Fail(ctx, "wd-1", "Transaction expired. Please try again."))

	b, err := m.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), b.Available)
	assert.Zero(t, b.Reserved)

	rec, err := m.GetWithdrawal(ctx, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusFailed, rec.Status)
	assert.Equal(t, "Transaction expired. Please try again.", rec.FailureReason)
}

func TestMemory_TerminalTransitionsApplyOnce(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, 10_000)
	create(t, m, "wd-1", 4_000)

	require.NoError(t, m.Fail(ctx, "wd-1", "first"))
	assert.ErrorIs(t, m.Fail(ctx, "wd-1", "second"), withdrawal.ErrAlreadySettled)
	assert.ErrorIs(t, m.Complete(ctx, "wd-1", withdrawal.Completion{}), withdrawal.ErrAlreadySettled)
	assert.ErrorIs(t, m.MarkProcessing(ctx, "wd-1"), withdrawal.ErrAlreadySettled)

	// the balance is credited back exactly once
	b, err := m.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), b.Available)

	rec, err := m.GetWithdrawal(ctx, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, "first", rec.FailureReason)
}

func TestMemory_UnknownWithdrawal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, nil)

	assert.ErrorIs(t, m.MarkProcessing(ctx, "missing"), withdrawal.ErrNotFound)
	assert.ErrorIs(t, m.Complete(ctx, "missing", withdrawal.Completion{}), withdrawal.ErrNotFound)
	_, err := m.GetWithdrawal(ctx, "missing")
	assert.ErrorIs(t, err, withdrawal.ErrNotFound)
}

func TestMemory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, 10_000)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := range 3 {
		create(t, m, fmt.Sprintf("wd-%d", i), 100)
	}
	require.NoError(t, m.Complete(ctx, "wd-0", withdrawal.Completion{ConfirmationStatus: "confirmed"}))

	all, err := m.ListWithdrawals(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"wd-2", "wd-1", "wd-0"}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited, err := m.ListWithdrawals(ctx, sender, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "wd-2", limited[0].ID)

	none, err := m.ListWithdrawals(ctx, recipient, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_SettledCapacityIsBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, nil)
	_, err := m.Credit(ctx, sender, 1_000)
	require.NoError(t, err)

	for i := range 3 {
		id := fmt.Sprintf("wd-%d", i)
		create(t, m, id, 10)
		require.NoError(t, m.Complete(ctx, id, withdrawal.Completion{}))
	}

	_, err = m.GetWithdrawal(ctx, "wd-0")
	assert.ErrorIs(t, err, withdrawal.ErrNotFound)
	_, err = m.GetWithdrawal(ctx, "wd-2")
	assert.NoError(t, err)
}
