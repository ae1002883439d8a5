package solana

import (
	"context"
	"errors"
	"time"
)

// Default confirmation polling parameters.
const (
	DefaultConfirmInterval = 2 * time.Second
	DefaultConfirmTimeout  = 30 * time.Second
)

// ConfirmOptions bounds WaitForConfirmation.
type ConfirmOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForConfirmation polls getSignatureStatuses for signature until it
// reaches confirmed or finalized. A status carrying an on-chain error is an
// RpcLogicError. Polling errors are logged and polling continues until the
// timeout, which yields ConfirmationTimeout. Cancelling ctx returns
// ctx.Err().
func (c *Client) WaitForConfirmation(ctx context.Context, signature string, opts ConfirmOptions) (*SignatureStatus, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConfirmTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultConfirmInterval
	}

	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	attempts := 0
	var lastErr error
	for {
		attempts++
		status, err := c.pollOnce(pollCtx, signature)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if pollCtx.Err() == nil {
				lastErr = err
				c.logger.WarnContext(ctx, "signature status poll failed",
					"signature", signature,
					"attempt", attempts,
					"error", err,
				)
			}
		case status == nil:
			// not yet visible to the node
		case status.Failed():
			return status, newError(KindRPCLogic, "confirm", "transaction failed on-chain: %s", string(status.Err))
		case status.Confirmed():
			c.logger.InfoContext(ctx, "transaction confirmed",
				"signature", signature,
				"status", status.ConfirmationStatus,
				"slot", status.Slot,
				"attempts", attempts,
			)
			return status, nil
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if lastErr != nil {
				return nil, newError(KindConfirmationTimeout, "confirm", "signature %s not confirmed within %s (last poll error: %v)", signature, opts.Timeout, lastErr)
			}
			return nil, newError(KindConfirmationTimeout, "confirm", "signature %s not confirmed within %s", signature, opts.Timeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, signature string) (*SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses(ctx, signature)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, errors.New("empty signature status response")
	}
	return statuses[0], nil
}
