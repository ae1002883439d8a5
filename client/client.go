// Package client is the HTTP client for the solwithdraw API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the HTTP client for the solwithdraw withdrawal service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new withdrawal service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Withdraw processes a withdrawal inline and waits for its outcome. A
// withdrawal that failed is returned as a Result with Outcome "failed",
// not as an error; errors mean the request itself was refused.
func (c *Client) Withdraw(ctx context.Context, req WithdrawRequest) (*Result, error) {
	req.Mode = "interactive"
	var resp struct {
		Result
		Error string `json:"error"`
	}
	status, err := c.doJSON(ctx, "POST", "/api/v1/withdrawals", req, &resp,
		http.StatusOK, http.StatusAccepted, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	// 422 is also used when the ledger refuses the withdrawal outright.
	if resp.Error != "" {
		return nil, &APIError{StatusCode: status, Message: resp.Error}
	}

	c.logger.Debug("withdrawal processed", "withdrawal_id", resp.WithdrawalID, "outcome", resp.Outcome)
	return &resp.Result, nil
}

// WithdrawAsync queues a withdrawal as a background job.
func (c *Client) WithdrawAsync(ctx context.Context, req WithdrawRequest) (*Accepted, error) {
	req.Mode = "background"
	var accepted Accepted
	if _, err := c.doJSON(ctx, "POST", "/api/v1/withdrawals", req, &accepted, http.StatusAccepted); err != nil {
		return nil, err
	}

	c.logger.Debug("withdrawal queued", "withdrawal_id", accepted.WithdrawalID, "workflow_id", accepted.WorkflowID)
	return &accepted, nil
}

// Get retrieves a withdrawal record.
func (c *Client) Get(ctx context.Context, id string) (*Withdrawal, error) {
	var w Withdrawal
	if _, err := c.doJSON(ctx, "GET", "/api/v1/withdrawals/"+url.PathEscape(id), nil, &w, http.StatusOK); err != nil {
		return nil, err
	}
	return &w, nil
}

// List retrieves withdrawals sent from address, newest first.
func (c *Client) List(ctx context.Context, address string, limit int) ([]*Withdrawal, error) {
	q := url.Values{}
	q.Set("address", address)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Withdrawals []*Withdrawal `json:"withdrawals"`
	}
	if _, err := c.doJSON(ctx, "GET", "/api/v1/withdrawals?"+q.Encode(), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Withdrawals, nil
}

// Balance retrieves the ledger balance of address.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	var b Balance
	if _, err := c.doJSON(ctx, "GET", "/api/v1/balances/"+url.PathEscape(address), nil, &b, http.StatusOK); err != nil {
		return nil, err
	}
	return &b, nil
}

// Credit adds lamports to the ledger balance of address.
func (c *Client) Credit(ctx context.Context, address string, lamports uint64) (*Balance, error) {
	var b Balance
	body := map[string]interface{}{"lamports": lamports}
	if _, err := c.doJSON(ctx, "POST", "/api/v1/balances/"+url.PathEscape(address)+"/credit", body, &b, http.StatusOK); err != nil {
		return nil, err
	}
	return &b, nil
}

// Airdrop requests faucet lamports for address and returns the airdrop
// transaction signature. Zero lamports requests the server default.
func (c *Client) Airdrop(ctx context.Context, address string, lamports uint64) (string, error) {
	body := map[string]interface{}{"address": address, "lamports": lamports}
	var resp struct {
		Signature string `json:"signature"`
	}
	if _, err := c.doJSON(ctx, "POST", "/api/v1/airdrop", body, &resp, http.StatusOK); err != nil {
		return "", err
	}
	return resp.Signature, nil
}

// Health reports the server's network and which optional endpoints it
// serves.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if _, err := c.doJSON(ctx, "GET", "/health", nil, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}

// doJSON sends body as JSON (when non-nil), checks the status against ok and
// decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, ok ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, code := range ok {
		if resp.StatusCode == code {
			accepted = true
			break
		}
	}
	if !accepted {
		return resp.StatusCode, c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}

// APIError is returned when the server answers with an unexpected status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}
