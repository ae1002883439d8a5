package temporal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brojonat/solwithdraw/service/metrics"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/brojonat/solwithdraw/service/withdrawal"
	"go.temporal.io/sdk/temporal"
)

// WithdrawalInput contains the input parameters for a withdrawal workflow.
type WithdrawalInput struct {
	Request        withdrawal.Request `json:"request"`
	ConfirmTimeout time.Duration      `json:"confirm_timeout"`
	ReconcileDelay time.Duration      `json:"reconcile_delay"`
}

// WithdrawalResult contains the result of a withdrawal workflow.
type WithdrawalResult struct {
	WithdrawalID       string `json:"withdrawal_id"`
	Outcome            string `json:"outcome"`
	Signature          string `json:"signature,omitempty"`
	ExplorerURL        string `json:"explorer_url,omitempty"`
	ConfirmationStatus string `json:"confirmation_status,omitempty"`
	Reason             string `json:"reason,omitempty"`
	Reconciliation     string `json:"reconciliation,omitempty"` // set when an unconfirmed withdrawal was re-checked
}

// ConfirmWithdrawalInput contains parameters for the ConfirmWithdrawal activity.
type ConfirmWithdrawalInput struct {
	Submission withdrawal.Submission `json:"submission"`
	Timeout    time.Duration         `json:"timeout"`
}

// WithdrawalService is the pipeline the activities drive.
// This allows for easy mocking in tests.
type WithdrawalService interface {
	Submit(ctx context.Context, req withdrawal.Request) (*withdrawal.Submission, error)
	Confirm(ctx context.Context, sub *withdrawal.Submission, timeout time.Duration) (*withdrawal.Result, error)
	Reconcile(ctx context.Context, sub *withdrawal.Submission) (string, error)
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	service WithdrawalService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(service WithdrawalService, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		service: service,
		metrics: m,
		logger:  logger,
	}
}

// SubmitWithdrawal validates, signs and submits a withdrawal. It runs at
// most once per workflow: resubmitting would sign a second transaction.
func (a *Activities) SubmitWithdrawal(ctx context.Context, req withdrawal.Request) (*withdrawal.Submission, error) {
	start := time.Now()
	sub, err := a.service.Submit(ctx, req)
	a.metrics.RecordActivityDuration("SubmitWithdrawal", time.Since(start).Seconds(), err)
	if err != nil {
		a.logger.ErrorContext(ctx, "submit activity failed",
			"withdrawal_id", req.WithdrawalID,
			"error", withdrawal.Sanitize(err.Error()),
		)
		return nil, activityError(err)
	}
	return sub, nil
}

// ConfirmWithdrawal waits for a submitted withdrawal and settles it.
// Settlement is idempotent, so the activity may be retried.
func (a *Activities) ConfirmWithdrawal(ctx context.Context, input ConfirmWithdrawalInput) (*withdrawal.Result, error) {
	start := time.Now()
	result, err := a.service.Confirm(ctx, &input.Submission, input.Timeout)
	a.metrics.RecordActivityDuration("ConfirmWithdrawal", time.Since(start).Seconds(), err)
	if err != nil {
		a.logger.ErrorContext(ctx, "confirm activity failed",
			"withdrawal_id", input.Submission.Request.WithdrawalID,
			"signature", input.Submission.Signature,
			"error", withdrawal.Sanitize(err.Error()),
		)
		return nil, activityError(err)
	}
	return result, nil
}

// ReconcileWithdrawal re-checks an unconfirmed withdrawal.
func (a *Activities) ReconcileWithdrawal(ctx context.Context, sub withdrawal.Submission) (string, error) {
	start := time.Now()
	result, err := a.service.Reconcile(ctx, &sub)
	a.metrics.RecordActivityDuration("ReconcileWithdrawal", time.Since(start).Seconds(), err)
	if err != nil {
		return "", err
	}
	return result, nil
}

// activityError marks settled pipeline failures as non-retryable. The
// message is the user-facing reason; the cause is sanitized because it is
// stored in workflow history.
func activityError(err error) error {
	var werr *withdrawal.Error
	if !errors.As(err, &werr) {
		return err
	}
	errType := "WithdrawalFailed"
	switch {
	case errors.Is(err, withdrawal.ErrAlreadySettled):
		errType = "AlreadySettled"
	case solana.KindOf(err) != "":
		errType = string(solana.KindOf(err))
	}
	return temporal.NewNonRetryableApplicationError(werr.Reason, errType, errors.New(withdrawal.Sanitize(werr.Error())))
}
