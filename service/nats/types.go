package nats

import (
	"fmt"
	"time"
)

// WithdrawalStatusEvent is published to "withdrawals.{withdrawal_id}" in
// JetStream every time a withdrawal changes state.
type WithdrawalStatusEvent struct {
	WithdrawalID string `json:"withdrawal_id"`

	// Status is the ledger status (pending, processing, completed, failed).
	// Stage is the pipeline state that produced the event.
	Status  string `json:"status"`
	Stage   string `json:"stage"`
	Outcome string `json:"outcome,omitempty"` // completed, unconfirmed or failed

	Message            string `json:"message,omitempty"`
	Signature          string `json:"signature,omitempty"`
	ExplorerURL        string `json:"explorer_url,omitempty"`
	ConfirmationStatus string `json:"confirmation_status,omitempty"`
	Reason             string `json:"reason,omitempty"` // sanitized, safe to show users

	From     string `json:"from"`
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
	Network  string `json:"network"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the subject the event is published to.
func (e *WithdrawalStatusEvent) Subject() string {
	return WithdrawalSubject(e.WithdrawalID)
}

// WithdrawalSubject is the subject carrying events for one withdrawal.
func WithdrawalSubject(withdrawalID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, withdrawalID)
}
