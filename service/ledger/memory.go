// Package ledger provides an in-process withdrawal ledger for the CLI and
// tests. Postgres-backed storage lives in service/db.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/brojonat/solwithdraw/service/withdrawal"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSettledCapacity bounds how many settled withdrawals Memory keeps.
const DefaultSettledCapacity = 4096

// Memory is a mutex-guarded withdrawal ledger. Open withdrawals are kept
// until they settle; settled ones move to a bounded LRU so repeated
// terminal transitions keep returning ErrAlreadySettled while memory stays
// bounded.
type Memory struct {
	mu       sync.Mutex
	open     map[string]*withdrawal.Record
	settled  *lru.Cache[string, *withdrawal.Record]
	balances map[string]*withdrawal.Balance
	now      func() time.Time
	logger   *slog.Logger
}

// NewMemory creates an empty ledger that remembers up to settledCapacity
// settled withdrawals. A non-positive capacity uses DefaultSettledCapacity.
func NewMemory(settledCapacity int, logger *slog.Logger) *Memory {
	if settledCapacity <= 0 {
		settledCapacity = DefaultSettledCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	settled, err := lru.New[string, *withdrawal.Record](settledCapacity)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Memory{
		open:     make(map[string]*withdrawal.Record),
		settled:  settled,
		balances: make(map[string]*withdrawal.Balance),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Credit adds lamports to an account's available balance.
func (m *Memory) Credit(ctx context.Context, address string, lamports uint64) (*withdrawal.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.balance(address)
	if b.Available+lamports < b.Available {
		return nil, fmt.Errorf("credit overflows balance of %s", address)
	}
	b.Available += lamports
	b.UpdatedAt = m.now()
	out := *b
	return &out, nil
}

// GetBalance returns an account's balance. Unknown accounts have a zero
// balance.
func (m *Memory) GetBalance(ctx context.Context, address string) (*withdrawal.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.balances[address]; ok {
		out := *b
		return &out, nil
	}
	return &withdrawal.Balance{Address: address}, nil
}

// CreateWithdrawal records a pending withdrawal and reserves its amount.
func (m *Memory) CreateWithdrawal(ctx context.Context, params withdrawal.CreateParams) (*withdrawal.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(params.ID); ok {
		return nil, fmt.Errorf("%w: %s", withdrawal.ErrWithdrawalExists, params.ID)
	}
	b := m.balance(params.From)
	if b.Available < params.Lamports {
		return nil, fmt.Errorf("%w: %s has %d lamports available, withdrawal needs %d",
			withdrawal.ErrInsufficientLedgerBalance, params.From, b.Available, params.Lamports)
	}

	now := m.now()
	b.Available -= params.Lamports
	b.Reserved += params.Lamports
	b.UpdatedAt = now

	rec := &withdrawal.Record{
		ID:        params.ID,
		From:      params.From,
		To:        params.To,
		Lamports:  params.Lamports,
		Memo:      params.Memo,
		Network:   params.Network,
		Status:    withdrawal.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.open[rec.ID] = rec
	out := *rec
	return &out, nil
}

// GetWithdrawal returns a copy of a withdrawal record.
func (m *Memory) GetWithdrawal(ctx context.Context, id string) (*withdrawal.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", withdrawal.ErrNotFound, id)
	}
	out := *rec
	return &out, nil
}

// ListWithdrawals returns the newest withdrawals first. An empty address
// lists every sender; a non-positive limit means no limit.
func (m *Memory) ListWithdrawals(ctx context.Context, address string, limit int) ([]*withdrawal.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*withdrawal.Record, 0, len(m.open)+m.settled.Len())
	for _, rec := range m.open {
		all = append(all, rec)
	}
	all = append(all, m.settled.Values()...)

	out := make([]*withdrawal.Record, 0, len(all))
	for _, rec := range all {
		if address != "" && rec.From != address {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessing moves a pending withdrawal to processing. Marking a
// withdrawal that is already processing is a no-op so a retried job can
// pick it up again.
func (m *Memory) MarkProcessing(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.openRecord(id)
	if err != nil {
		return err
	}
	rec.Status = withdrawal.StatusProcessing
	rec.UpdatedAt = m.now()
	return nil
}

// Complete settles a withdrawal as completed and releases its reservation.
func (m *Memory) Complete(ctx context.Context, id string, c withdrawal.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.openRecord(id)
	if err != nil {
		return err
	}
	now := m.now()
	b := m.balance(rec.From)
	b.Reserved -= rec.Lamports
	b.UpdatedAt = now

	rec.Status = withdrawal.StatusCompleted
	rec.Signature = c.Signature
	rec.ExplorerURL = c.ExplorerURL
	rec.ConfirmationStatus = c.ConfirmationStatus
	rec.UpdatedAt = now
	rec.CompletedAt = &now
	m.settle(rec)

	m.logger.DebugContext(ctx, "withdrawal completed in ledger",
		"withdrawal_id", id,
		"confirmation_status", c.ConfirmationStatus,
	)
	return nil
}

// Fail settles a withdrawal as failed and returns its reservation to the
// available balance.
func (m *Memory) Fail(ctx context.Context, id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.openRecord(id)
	if err != nil {
		return err
	}
	now := m.now()
	b := m.balance(rec.From)
	b.Reserved -= rec.Lamports
	b.Available += rec.Lamports
	b.UpdatedAt = now

	rec.Status = withdrawal.StatusFailed
	rec.FailureReason = reason
	rec.UpdatedAt = now
	m.settle(rec)

	m.logger.DebugContext(ctx, "withdrawal failed in ledger",
		"withdrawal_id", id,
		"reason", reason,
	)
	return nil
}

// openRecord returns the unsettled record for id. Callers hold m.mu.
func (m *Memory) openRecord(id string) (*withdrawal.Record, error) {
	if rec, ok := m.open[id]; ok {
		return rec, nil
	}
	if m.settled.Contains(id) {
		return nil, fmt.Errorf("%w: %s", withdrawal.ErrAlreadySettled, id)
	}
	return nil, fmt.Errorf("%w: %s", withdrawal.ErrNotFound, id)
}

func (m *Memory) lookup(id string) (*withdrawal.Record, bool) {
	if rec, ok := m.open[id]; ok {
		return rec, true
	}
	return m.settled.Get(id)
}

func (m *Memory) settle(rec *withdrawal.Record) {
	delete(m.open, rec.ID)
	if m.settled.Add(rec.ID, rec) {
		m.logger.Debug("evicted oldest settled withdrawal from memory ledger")
	}
}

func (m *Memory) balance(address string) *withdrawal.Balance {
	b, ok := m.balances[address]
	if !ok {
		b = &withdrawal.Balance{Address: address}
		m.balances[address] = b
	}
	return b
}

var _ withdrawal.Ledger = (*Memory)(nil)
