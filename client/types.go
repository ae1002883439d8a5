package client

import "time"

// WithdrawRequest asks the server to move lamports between two addresses.
// Set either Lamports or AmountSOL. An empty ID is assigned by the server.
type WithdrawRequest struct {
	ID        string `json:"id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Lamports  uint64 `json:"lamports,omitempty"`
	AmountSOL string `json:"amount_sol,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// Result is the outcome of an inline withdrawal: completed, unconfirmed or
// failed. Reason explains a failure and is safe to show users.
type Result struct {
	WithdrawalID       string `json:"withdrawal_id"`
	Outcome            string `json:"outcome"`
	Signature          string `json:"signature,omitempty"`
	ExplorerURL        string `json:"explorer_url,omitempty"`
	ConfirmationStatus string `json:"confirmation_status,omitempty"`
	Reason             string `json:"reason,omitempty"`
}

// Accepted is returned when a withdrawal is queued as a background job.
type Accepted struct {
	WithdrawalID string `json:"withdrawal_id"`
	Status       string `json:"status"`
	WorkflowID   string `json:"workflow_id"`
	RunID        string `json:"run_id"`
}

// Withdrawal is a withdrawal record as stored by the server.
type Withdrawal struct {
	ID                 string     `json:"id"`
	From               string     `json:"from"`
	To                 string     `json:"to"`
	Lamports           uint64     `json:"lamports"`
	Memo               string     `json:"memo,omitempty"`
	Network            string     `json:"network"`
	Status             string     `json:"status"` // pending, processing, completed, failed
	Signature          string     `json:"signature,omitempty"`
	ExplorerURL        string     `json:"explorer_url,omitempty"`
	ConfirmationStatus string     `json:"confirmation_status,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Balance is an address's ledger balance.
type Balance struct {
	Address   string    `json:"address"`
	Available uint64    `json:"available_lamports"`
	Reserved  uint64    `json:"reserved_lamports"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusEvent is one state change of a withdrawal.
type StatusEvent struct {
	WithdrawalID       string    `json:"withdrawal_id"`
	Status             string    `json:"status"`
	Stage              string    `json:"stage"`
	Outcome            string    `json:"outcome,omitempty"`
	Message            string    `json:"message,omitempty"`
	Signature          string    `json:"signature,omitempty"`
	ExplorerURL        string    `json:"explorer_url,omitempty"`
	ConfirmationStatus string    `json:"confirmation_status,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	Lamports           uint64    `json:"lamports"`
	Network            string    `json:"network"`
	PublishedAt        time.Time `json:"published_at"`
}

// Terminal reports whether the event ends the withdrawal's pipeline.
func (e *StatusEvent) Terminal() bool {
	return e.Stage == "completed" || e.Stage == "failed"
}

// Health is the server's readiness report.
type Health struct {
	Status     string `json:"status"`
	Network    string `json:"network"`
	Background bool   `json:"background_withdrawals"`
	Streaming  bool   `json:"event_streaming"`
	Airdrop    bool   `json:"airdrop"`
}
