package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/solwithdraw/service/withdrawal"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// Defaults applied when the workflow input leaves them unset.
const (
	DefaultJobConfirmTimeout = 60 * time.Second
	DefaultReconcileDelay    = 5 * time.Minute
)

// WithdrawalWorkflow runs one withdrawal as a background job.
//
// The workflow performs these steps:
// 1. Submit the transaction (SubmitWithdrawal, never retried)
// 2. Wait for confirmation and settle the ledger (ConfirmWithdrawal)
// 3. If confirmation timed out, sleep and re-check the signature
// (ReconcileWithdrawal)
//
// A withdrawal that fails in the pipeline completes the workflow with a
// failed outcome; the workflow itself only errors when settlement could not
// be recorded.
func WithdrawalWorkflow(ctx workflow.Context, input WithdrawalInput) (*WithdrawalResult, error) {
	logger := workflow.GetLogger(ctx)
	req := input.Request
	logger.Info("WithdrawalWorkflow started", "withdrawal_id", req.WithdrawalID)

	confirmTimeout := input.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultJobConfirmTimeout
	}
	reconcileDelay := input.ReconcileDelay
	if reconcileDelay <= 0 {
		reconcileDelay = DefaultReconcileDelay
	}

	result := &WithdrawalResult{WithdrawalID: req.WithdrawalID}

	// Step 1: submit. A second attempt would sign a new transaction for the
	// same withdrawal, so there is exactly one.
	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	var sub *withdrawal.Submission
	err := workflow.ExecuteActivity(submitCtx, a.SubmitWithdrawal, req).Get(ctx, &sub)
	if err != nil {
		logger.Warn("withdrawal submission failed", "withdrawal_id", req.WithdrawalID, "error", err)
		result.Outcome = string(withdrawal.OutcomeFailed)
		result.Reason = failureReason(err)
		return result, nil
	}
	result.Signature = sub.Signature
	result.ExplorerURL = sub.ExplorerURL

	// Step 2: confirm and settle.
	confirmCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: confirmTimeout + 30*time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})
	var confirmed *withdrawal.Result
	err = workflow.ExecuteActivity(confirmCtx, a.ConfirmWithdrawal, ConfirmWithdrawalInput{
		Submission: *sub,
		Timeout:    confirmTimeout,
	}).Get(ctx, &confirmed)
	if err != nil {
		var appErr *temporalsdk.ApplicationError
		if errors.As(err, &appErr) && appErr.NonRetryable() {
			logger.Warn("withdrawal failed during confirmation", "withdrawal_id", req.WithdrawalID, "error", err)
			result.Outcome = string(withdrawal.OutcomeFailed)
			result.Reason = appErr.Message()
			return result, nil
		}
		logger.Error("could not settle withdrawal", "withdrawal_id", req.WithdrawalID, "error", err)
		return result, fmt.Errorf("failed to confirm withdrawal: %w", err)
	}
	result.Outcome = string(confirmed.Outcome)
	result.ConfirmationStatus = confirmed.ConfirmationStatus
	result.Reason = confirmed.Reason

	if confirmed.Outcome != withdrawal.OutcomeUnconfirmed {
		logger.Info("WithdrawalWorkflow completed", "withdrawal_id", req.WithdrawalID, "outcome", result.Outcome)
		return result, nil
	}

	// Step 3: the ledger already recorded the withdrawal; find out what
	// actually happened on chain.
	if err := workflow.Sleep(ctx, reconcileDelay); err != nil {
		return result, err
	}
	reconcileCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	var reconciled string
	if err := workflow.ExecuteActivity(reconcileCtx, a.ReconcileWithdrawal, *sub).Get(ctx, &reconciled); err != nil {
		logger.Warn("reconciliation failed", "withdrawal_id", req.WithdrawalID, "error", err)
		reconciled = withdrawal.ReconcileUnknown
	}
	result.Reconciliation = reconciled

	logger.Info("WithdrawalWorkflow completed",
		"withdrawal_id", req.WithdrawalID,
		"outcome", result.Outcome,
		"reconciliation", reconciled,
	)
	return result, nil
}

func failureReason(err error) string {
	var appErr *temporalsdk.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return withdrawal.HumanReadable(err)
}
