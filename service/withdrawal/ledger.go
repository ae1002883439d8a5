package withdrawal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadySettled is returned by a terminal transition on a withdrawal
	// that is already completed or failed.
	ErrAlreadySettled = errors.New("withdrawal already settled")

	// ErrNotFound is returned for an unknown withdrawal id.
	ErrNotFound = errors.New("withdrawal not found")

	// ErrInsufficientLedgerBalance is returned when a withdrawal cannot be
	// reserved against the account's available balance.
	ErrInsufficientLedgerBalance = errors.New("insufficient available balance")

	// ErrWithdrawalExists is returned when creating a withdrawal whose id is
	// already taken.
	ErrWithdrawalExists = errors.New("withdrawal already exists")
)

// Ledger records the lifecycle of withdrawal records owned elsewhere.
// Complete and Fail are the only terminal transitions; each applies at most
// once per withdrawal.
type Ledger interface {
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, c Completion) error
	Fail(ctx context.Context, id string, reason string) error
}

// Completion is what a completed withdrawal records.
type Completion struct {
	Signature          string
	ExplorerURL        string
	ConfirmationStatus string // confirmed, finalized or unknown
}

// Record is a stored withdrawal.
type Record struct {
	ID                 string     `json:"id"`
	From               string     `json:"from"`
	To                 string     `json:"to"`
	Lamports           uint64     `json:"lamports"`
	Memo               string     `json:"memo,omitempty"`
	Network            string     `json:"network"`
	Status             Status     `json:"status"`
	Signature          string     `json:"signature,omitempty"`
	ExplorerURL        string     `json:"explorer_url,omitempty"`
	ConfirmationStatus string     `json:"confirmation_status,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Request returns the pipeline request for a stored record.
func (r *Record) Request() Request {
	return Request{
		WithdrawalID: r.ID,
		From:         r.From,
		To:           r.To,
		Lamports:     r.Lamports,
		Memo:         r.Memo,
	}
}

// CreateParams describes a new withdrawal record. Creating it reserves
// Lamports from the sender's available balance.
type CreateParams struct {
	ID       string
	From     string
	To       string
	Lamports uint64
	Memo     string
	Network  string
}

// Balance is an account's ledger balance. Reserved lamports belong to
// withdrawals that have not settled yet.
type Balance struct {
	Address   string    `json:"address"`
	Available uint64    `json:"available_lamports"`
	Reserved  uint64    `json:"reserved_lamports"`
	UpdatedAt time.Time `json:"updated_at"`
}
