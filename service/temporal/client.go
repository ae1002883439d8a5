package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/solwithdraw/service/metrics"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Dispatcher that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}, nil
}

// StartWithdrawal starts the workflow for a withdrawal. The workflow id is
// derived from the withdrawal id, so a withdrawal can only be started once.
func (c *Client) StartWithdrawal(ctx context.Context, input WithdrawalInput) (string, error) {
	id := WorkflowID(input.Request.WithdrawalID)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    id,
		TaskQueue:             c.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		Memo: map[string]interface{}{
			"withdrawal_id": input.Request.WithdrawalID,
			"from":          input.Request.From,
			"to":            input.Request.To,
			"lamports":      input.Request.Lamports,
			"created_by":    "solwithdraw",
		},
	}, WithdrawalWorkflow, input)
	c.metrics.RecordWorkflowStart(err)
	if err != nil {
		c.logger.Error("failed to start withdrawal workflow",
			"withdrawal_id", input.Request.WithdrawalID,
			"workflow_id", id,
			"error", err,
		)
		return "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("withdrawal workflow started",
		"withdrawal_id", input.Request.WithdrawalID,
		"workflow_id", id,
		"run_id", run.GetRunID(),
	)
	return run.GetRunID(), nil
}

// GetWithdrawalResult blocks until the withdrawal's workflow finishes and
// returns its result.
func (c *Client) GetWithdrawalResult(ctx context.Context, withdrawalID string) (*WithdrawalResult, error) {
	id := WorkflowID(withdrawalID)
	var result WithdrawalResult
	if err := c.client.GetWorkflow(ctx, id, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to get workflow %q result: %w", id, err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
