package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events []StatusEvent, hold bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/withdrawals/wd-1/events", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")

		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "ResponseWriter should support flushing")

		fmt.Fprintf(w, "event: connected\ndata: {\"withdrawal_id\":\"wd-1\"}\n\n")
		fmt.Fprintf(w, ": keepalive\n\n")
		for _, e := range events {
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
		}
		flusher.Flush()

		if hold {
			<-r.Context().Done()
		}
	}))
}

func TestWatch_ReturnsTerminalEvent(t *testing.T) {
	server := sseServer(t, []StatusEvent{
		{WithdrawalID: "wd-1", Stage: "submitting", Status: "processing"},
		{WithdrawalID: "wd-1", Stage: "confirming", Status: "processing", Signature: "5sig"},
		{WithdrawalID: "wd-1", Stage: "completed", Status: "completed", Outcome: "unconfirmed", ConfirmationStatus: "unknown"},
	}, true)
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stages []string
	final, err := client.Watch(ctx, "wd-1", false, func(e *StatusEvent) {
		stages = append(stages, e.Stage)
	})
	require.NoError(t, err)
	assert.Equal(t, "unconfirmed", final.Outcome)
	assert.Equal(t, []string{"submitting", "confirming", "completed"}, stages)
}

func TestWatch_StreamEndsEarly(t *testing.T) {
	server := sseServer(t, []StatusEvent{
		{WithdrawalID: "wd-1", Stage: "submitting", Status: "processing"},
	}, false)
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Watch(context.Background(), "wd-1", false, nil)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestWatch_ContextCancelled(t *testing.T) {
	server := sseServer(t, nil, true)
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Watch(ctx, "wd-1", true, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
