package temporal

import "context"

// Dispatcher starts withdrawals as background jobs.
type Dispatcher interface {
	// StartWithdrawal starts the WithdrawalWorkflow and returns its run id.
	StartWithdrawal(ctx context.Context, input WithdrawalInput) (string, error)

	// GetWithdrawalResult waits for the workflow of a withdrawal to finish.
	GetWithdrawalResult(ctx context.Context, withdrawalID string) (*WithdrawalResult, error)
}

// WorkflowID returns the Temporal workflow ID for a withdrawal.
func WorkflowID(withdrawalID string) string {
	return "withdrawal-" + withdrawalID
}

var _ Dispatcher = (*Client)(nil)
