package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"golang.org/x/time/rate"
)

// missingResultMessage marks a response that carried neither an error nor a
// result.
const missingResultMessage = "missing result"

// RPCClient is the JSON-RPC 2.0 transport to a Solana node.
// This allows us to swap in a fake node in tests.
type RPCClient interface {
	// Call invokes method with params and decodes the result into out.
	// HTTP and decoding failures are RpcTransportError; an error object or a
	// null result is RpcLogicError.
	Call(ctx context.Context, method string, params []any, out any) error
}

// RPCOptions tunes the HTTP transport.
type RPCOptions struct {
	HTTPClient        *http.Client  // nil uses a client with Timeout
	Timeout           time.Duration // per request, default 20s
	RequestsPerSecond float64       // 0 disables pacing
	Burst             int
}

// rpcRequestID is sent with every request. Responses are matched by
// connection, not by id.
const rpcRequestID = 1

// httpRPCClient posts JSON-RPC requests through solana-go's jsonrpc client.
type httpRPCClient struct {
	client  jsonrpc.RPCClient
	limiter *rate.Limiter
}

// statusCheckingClient fails any non-2xx response before jsonrpc decodes
// it, so a JSON-RPC body on an HTTP error is still a transport failure.
type statusCheckingClient struct {
	*http.Client
}

func (c statusCheckingClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Kind:    KindRPCTransport,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}
	return resp, nil
}

// NewRPCClient creates an RPCClient for rpcURL.
// For premium endpoints that require API keys, include the key in the URL.
func NewRPCClient(rpcURL string, opts RPCOptions) RPCClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &httpRPCClient{
		client: jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{
			HTTPClient: statusCheckingClient{httpClient},
		}),
		limiter: limiter,
	}
}

func (c *httpRPCClient) Call(ctx context.Context, method string, params []any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindRPCTransport, Op: method, Message: "rate limiter", Err: err}
		}
	}
	if params == nil {
		params = []any{}
	}

	resp, err := c.client.CallRaw(ctx, &jsonrpc.RPCRequest{
		JSONRPC: "2.0",
		ID:      rpcRequestID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return transportError(method, err)
	}

	// error and result are checked independently; a malformed response can
	// carry both.
	if resp.Error != nil {
		return &Error{
			Kind:    KindRPCLogic,
			Op:      method,
			Code:    resp.Error.Code,
			Message: TranslateRPCError(resp.Error.Code, resp.Error.Message),
		}
	}
	if len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
		return &Error{Kind: KindRPCLogic, Op: method, Message: missingResultMessage}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &Error{Kind: KindRPCTransport, Op: method, Message: "failed to decode result", Err: err}
	}
	return nil
}

// transportError classifies a failed jsonrpc call. The HTTP status error
// raised by statusCheckingClient is passed through; everything else either
// never reached the node or came back unreadable.
func transportError(method string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		e.Op = method
		return e
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: KindRPCTransport, Op: method, Message: "request failed", Err: urlErr.Err}
	}
	return &Error{Kind: KindRPCTransport, Op: method, Message: "failed to decode response", Err: err}
}

// IsMissingResult reports whether err is a response without a result.
func IsMissingResult(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRPCLogic && e.Message == missingResultMessage
}
