package db

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sender    = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	recipient = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func createParams(id string, lamports uint64) withdrawal.CreateParams {
	return withdrawal.CreateParams{
		ID:       id,
		From:     sender,
		To:       recipient,
		Lamports: lamports,
		Memo:     "payout " + id,
		Network:  "devnet",
	}
}

func TestCreateWithdrawal(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	ctx := context.Background()
	store.Fund(t, sender, 10_000)

	t.Run("reserves the amount", func(t *testing.T) {
		rec, err := store.CreateWithdrawal(ctx, createParams("wd-1", 4_000))
		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusPending, rec.Status)
		assert.Equal(t, "payout wd-1", rec.Memo)
		assert.Nil(t, rec.CompletedAt)

		b, err := store.GetBalance(ctx, sender)
		require.NoError(t, err)
		assert.Equal(t, uint64(6_000), b.Available)
		assert.Equal(t, uint64(4_000), b.Reserved)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := store.CreateWithdrawal(ctx, createParams("wd-1", 1))
		assert.ErrorIs(t, err, withdrawal.ErrWithdrawalExists)

		// the failed insert rolled back its reservation
		b, err := store.GetBalance(ctx, sender)
		require.NoError(t, err)
		assert.Equal(t, uint64(6_000), b.Available)
	})

	t.Run("overdraft", func(t *testing.T) {
		_, err := store.CreateWithdrawal(ctx, createParams("wd-2", 6_001))
		assert.ErrorIs(t, err, withdrawal.ErrInsufficientLedgerBalance)
	})

	t.Run("unfunded sender", func(t *testing.T) {
		p := createParams("wd-3", 1)
		p.From = recipient
		_, err := store.CreateWithdrawal(ctx, p)
		assert.ErrorIs(t, err, withdrawal.ErrInsufficientLedgerBalance)
	})
}

func TestCompleteWithdrawal(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	ctx := context.Background()
	store.Fund(t, sender, 10_000)
	_, err := store.CreateWithdrawal(ctx, createParams("wd-1", 4_000))
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessing(ctx, "wd-1"))
	require.NoError(t, store.Complete(ctx, "wd-1", withdrawal.Completion{
		Signature:          "sig-1",
		ExplorerURL:        "https://explorer.solana.com/tx/sig-1?cluster=devnet",
		ConfirmationStatus: withdrawal.ConfirmationUnknown,
	}))

	rec, err := store.GetWithdrawal(ctx, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusCompleted, rec.Status)
	assert.Equal(t, "sig-1", rec.Signature)
	assert.Equal(t, withdrawal.ConfirmationUnknown, rec.ConfirmationStatus)
	require.NotNil(t, rec.CompletedAt)

	b, err := store.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000), b.Available)
	assert.Zero(t, b.Reserved)

	// second settlement attempts are rejected and change nothing
	assert.ErrorIs(t, store.Complete(ctx, "wd-1", withdrawal.Completion{Signature: "other"}), withdrawal.ErrAlreadySettled)
	assert.ErrorIs(t, store.Fail(ctx, "wd-1", "late failure"), withdrawal.ErrAlreadySettled)
	assert.ErrorIs(t, store.MarkProcessing(ctx, "wd-1"), withdrawal.ErrAlreadySettled)

	b, err = store.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000), b.Available)
}

func TestFailWithdrawal(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	ctx := context.Background()
	store.Fund(t, sender, 10_000)
	_, err := store.CreateWithdrawal(ctx, createParams("wd-1", 4_000))
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, "wd-1", "Transaction expired. Please try again."))

	rec, err := store.GetWithdrawal(ctx, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusFailed, rec.Status)
	assert.Equal(t, "Transaction expired. Please try again.", rec.FailureReason)

	b, err := store.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), b.Available)
	assert.Zero(t, b.Reserved)
}

func TestConcurrentSettlementAppliesOnce(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	ctx := context.Background()
	store.Fund(t, sender, 10_000)
	_, err := store.CreateWithdrawal(ctx, createParams("wd-1", 4_000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Fail(ctx, "wd-1", fmt.Sprintf("attempt %d", i))
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, withdrawal.ErrAlreadySettled)
	}
	assert.Equal(t, 1, succeeded)

	b, err := store.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), b.Available)
}

func TestGetWithdrawalNotFound(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	ctx := context.Background()
	_, err := store.GetWithdrawal(ctx, "missing")
	assert.ErrorIs(t, err, withdrawal.ErrNotFound)
	assert.ErrorIs(t, store.MarkProcessing(ctx, "missing"), withdrawal.ErrNotFound)
	assert.ErrorIs(t, store.Complete(ctx, "missing", withdrawal.Completion{}), withdrawal.ErrNotFound)
}

func TestListWithdrawals(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	ctx := context.Background()
	store.Fund(t, sender, 10_000)
	for i := range 3 {
		_, err := store.CreateWithdrawal(ctx, createParams(fmt.Sprintf("wd-%d", i), 100))
		require.NoError(t, err)
	}
	store.MustExec(t, `UPDATE withdrawals SET created_at = now() - (interval '1 minute' * (3 - CAST(substr(id, 4) AS int)))`)

	all, err := store.ListWithdrawals(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "wd-2", all[0].ID)
	assert.Equal(t, "wd-0", all[2].ID)

	limited, err := store.ListWithdrawals(ctx, sender, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := store.ListWithdrawals(ctx, recipient, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)

	b, err := store.GetBalance(context.Background(), recipient)
	require.NoError(t, err)
	assert.Zero(t, b.Available)
	assert.Zero(t, b.Reserved)
}
