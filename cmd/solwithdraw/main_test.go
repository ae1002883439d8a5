package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// runApp runs the full CLI and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader("")
	err := app.Run(append([]string{"solwithdraw"}, args...))
	return out.String(), err
}

// fakeRPC is a JSON-RPC node answering from a method -> result table.
type fakeRPC struct {
	mu      sync.Mutex
	results map[string]func(params []json.RawMessage) any
	calls   []string
}

func newFakeRPC(t *testing.T) (*fakeRPC, *httptest.Server) {
	t.Helper()
	f := &fakeRPC{results: make(map[string]func([]json.RawMessage) any)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int               `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.calls = append(f.calls, req.Method)
		handler, ok := f.results[req.Method]
		f.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if ok {
			resp["result"] = handler(req.Params)
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "Method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRPC) on(method string, result func(params []json.RawMessage) any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = result
}

func (f *fakeRPC) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.calls {
		if m == method {
			n++
		}
	}
	return n
}

func contextual(value any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": 1}, "value": value}
}
