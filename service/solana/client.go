package solana

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solwithdraw/service/metrics"
)

// ErrAirdropUnavailable is returned by RequestAirdrop on mainnet.
var ErrAirdropUnavailable = errors.New("airdrops are only available on devnet and testnet")

// Client provides the typed node operations the withdrawal pipeline needs.
// It wraps the JSON-RPC transport with timing, metrics and logging.
type Client struct {
	rpc      RPCClient
	network  string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // label for metrics (e.g. "devnet" or the RPC host)
}

// NewClient creates a new Solana client for network.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, network, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" {
		endpoint = network
	}
	return &Client{
		rpc:      rpcClient,
		network:  network,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// Network returns the network name this client talks to.
func (c *Client) Network() string { return c.network }

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	start := time.Now()
	err := c.rpc.Call(ctx, method, params, out)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		var rpcErr *Error
		if errors.As(err, &rpcErr) && rpcErr.Kind == KindRPCTransport && rpcErr.Code == http.StatusTooManyRequests {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
		c.logger.DebugContext(ctx, "rpc call failed",
			"method", method,
			"endpoint", c.endpoint,
			"error", err,
		)
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	return err
}

// GetBalance returns the balance of address in lamports.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res contextual[uint64]
	if err := c.call(ctx, "getBalance", []any{address}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// GetLatestBlockhash returns a recent blockhash in base58.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	var res contextual[LatestBlockhash]
	if err := c.call(ctx, "getLatestBlockhash", nil, &res); err != nil {
		return "", err
	}
	if res.Value.Blockhash == "" {
		return "", newError(KindInvalidBlockhash, "getLatestBlockhash", "node returned an empty blockhash")
	}
	return res.Value.Blockhash, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns
// the signature the node reports. Preflight simulation stays enabled.
func (c *Client) SendTransaction(ctx context.Context, base64Tx string) (string, error) {
	var sig string
	opts := map[string]any{
		"encoding":      "base64",
		"skipPreflight": false,
		"maxRetries":    2,
	}
	if err := c.call(ctx, "sendTransaction", []any{base64Tx, opts}, &sig); err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "transaction submitted",
		"signature", sig,
		"network", c.network,
	)
	return sig, nil
}

// GetSignatureStatuses returns one status per signature, in order. Entries
// are nil for signatures the node does not know about.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error) {
	var res contextual[[]*SignatureStatus]
	opts := map[string]any{"searchTransactionHistory": true}
	if err := c.call(ctx, "getSignatureStatuses", []any{signatures, opts}, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// GetAccountInfo returns the account at address, or nil when it does not
// exist.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	var res contextual[*AccountInfo]
	opts := map[string]any{"encoding": "base64"}
	if err := c.call(ctx, "getAccountInfo", []any{address, opts}, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// RequestAirdrop asks the faucet for lamports on devnet or testnet.
func (c *Client) RequestAirdrop(ctx context.Context, address string, lamports uint64) (string, error) {
	if IsMainnet(c.network) {
		return "", ErrAirdropUnavailable
	}
	var sig string
	if err := c.call(ctx, "requestAirdrop", []any{address, lamports}, &sig); err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "airdrop requested",
		"address", address,
		"lamports", lamports,
		"signature", sig,
	)
	return sig, nil
}

// GetTransaction fetches a transaction by signature. It returns nil, nil
// when the node has no record of it.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionDetails, error) {
	var details TransactionDetails
	opts := map[string]any{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	}
	err := c.call(ctx, "getTransaction", []any{signature, opts}, &details)
	if IsMissingResult(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &details, nil
}
