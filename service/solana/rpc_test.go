package solana

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeNode(t *testing.T, status int, body string) (*httptest.Server, *jsonrpc.RPCRequest) {
	t.Helper()
	var got jsonrpc.RPCRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestRPCCall_Success(t *testing.T) {
	srv, req := newFakeNode(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":42}}`)
	rpc := NewRPCClient(srv.URL, RPCOptions{})

	var out contextual[uint64]
	require.NoError(t, rpc.Call(context.Background(), "getBalance", []any{"addr"}, &out))
	assert.Equal(t, uint64(42), out.Value)

	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, float64(1), req.ID)
	assert.Equal(t, "getBalance", req.Method)
	assert.Equal(t, []any{"addr"}, req.Params)
}

func TestRPCCall_Classification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "http error",
			status:   http.StatusBadGateway,
			body:     `upstream down`,
			wantKind: KindRPCTransport,
			wantMsg:  "HTTP 502",
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{}`,
			wantKind: KindRPCTransport,
			wantMsg:  "HTTP 429",
		},
		{
			name:     "http error with json-rpc body",
			status:   http.StatusServiceUnavailable,
			body:     `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`,
			wantKind: KindRPCTransport,
			wantMsg:  "HTTP 503",
		},
		{
			name:     "undecodable body",
			status:   http.StatusOK,
			body:     `<html>`,
			wantKind: KindRPCTransport,
			wantMsg:  "failed to decode response",
		},
		{
			name:     "error object",
			status:   http.StatusOK,
			body:     `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1 InsufficientFunds"}}`,
			wantKind: KindRPCLogic,
			wantMsg:  "Insufficient funds for transaction",
		},
		{
			name:     "error and result both present",
			status:   http.StatusOK,
			body:     `{"jsonrpc":"2.0","id":1,"result":5,"error":{"code":-32600,"message":"Invalid request"}}`,
			wantKind: KindRPCLogic,
			wantMsg:  "Solana RPC Error (code: -32600): Invalid request",
		},
		{
			name:     "null result",
			status:   http.StatusOK,
			body:     `{"jsonrpc":"2.0","id":1,"result":null}`,
			wantKind: KindRPCLogic,
			wantMsg:  "missing result",
		},
		{
			name:     "no result at all",
			status:   http.StatusOK,
			body:     `{"jsonrpc":"2.0","id":1}`,
			wantKind: KindRPCLogic,
			wantMsg:  "missing result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newFakeNode(t, tt.status, tt.body)
			rpc := NewRPCClient(srv.URL, RPCOptions{})

			var out any
			err := rpc.Call(context.Background(), "getBalance", nil, &out)
			require.Error(t, err)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRPCCall_CodeCarried(t *testing.T) {
	srv, _ := newFakeNode(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Blockhash not found"}}`)
	rpc := NewRPCClient(srv.URL, RPCOptions{})

	err := rpc.Call(context.Background(), "sendTransaction", []any{"tx"}, nil)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, -32002, e.Code)
	assert.True(t, IsBlockhashExpired(err))
	assert.True(t, e.Retryable())
}

func TestRPCCall_HTTPStatusCarried(t *testing.T) {
	srv, _ := newFakeNode(t, http.StatusTooManyRequests, `{"jsonrpc":"2.0","id":1,"result":1}`)

	err := NewRPCClient(srv.URL, RPCOptions{}).Call(context.Background(), "getBalance", nil, nil)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindRPCTransport, e.Kind)
	assert.Equal(t, "getBalance", e.Op)
	assert.Equal(t, http.StatusTooManyRequests, e.Code)
	assert.True(t, e.Retryable())
}

func TestRPCCall_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewRPCClient(url, RPCOptions{}).Call(context.Background(), "getBalance", nil, nil)
	assert.ErrorIs(t, err, ErrRPCTransport)
}

func TestIsMissingResult(t *testing.T) {
	assert.True(t, IsMissingResult(&Error{Kind: KindRPCLogic, Message: missingResultMessage}))
	assert.False(t, IsMissingResult(&Error{Kind: KindRPCTransport, Message: missingResultMessage}))
	assert.False(t, IsMissingResult(nil))
}

func TestTranslateRPCError(t *testing.T) {
	tests := []struct {
		code    int
		message string
		want    string
	}{
		{-32002, "AccountNotFound", "Account does not exist on the blockchain: AccountNotFound"},
		{-32002, "attempt to debit: insufficientfunds", "Insufficient funds for transaction: attempt to debit: insufficientfunds"},
		{-32602, "InvalidArgument: bad", "Invalid argument provided: InvalidArgument: bad"},
		{-32002, "BlockhashNotFound", "Blockhash expired, please retry: BlockhashNotFound"},
		{-32003, "SignatureVerificationFailed", "Signature verification failed - check private key: SignatureVerificationFailed"},
		{-32005, "Node is behind", "Solana RPC Error (code: -32005): Node is behind"},
		{0, "", "Solana RPC Error (code: 0): Unknown error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TranslateRPCError(tt.code, tt.message))
	}
}
