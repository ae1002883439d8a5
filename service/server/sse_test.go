package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventSource struct {
	events []*natspkg.WithdrawalStatusEvent
	err    error
	opts   natspkg.SubscribeOptions
}

func (f *fakeEventSource) Subscribe(ctx context.Context, opts natspkg.SubscribeOptions) (<-chan *natspkg.WithdrawalStatusEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opts = opts
	ch := make(chan *natspkg.WithdrawalStatusEvent, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	return ch, nil
}

func TestStreamWithdrawalEvents(t *testing.T) {
	source := &fakeEventSource{events: []*natspkg.WithdrawalStatusEvent{
		{WithdrawalID: "wd-1", Status: "processing", Stage: "submitting"},
		{WithdrawalID: "wd-1", Status: "processing", Stage: "confirming", Signature: "5sig"},
		{WithdrawalID: "wd-1", Status: "completed", Stage: "completed", Outcome: "completed", Signature: "5sig"},
	}}
	handler := handleStreamWithdrawalEvents(source, slog.Default())

	req := httptest.NewRequest("GET", "/api/v1/withdrawals/wd-1/events?replay=true", nil)
	req.SetPathValue("id", "wd-1")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after the terminal event")
	}

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "wd-1", source.opts.WithdrawalID)
	assert.True(t, source.opts.Replay)

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	assert.Equal(t, []string{"connected", "status", "status", "status"}, names)
	assert.Contains(t, rec.Body.String(), `"stage":"confirming"`)
	assert.Contains(t, rec.Body.String(), `"outcome":"completed"`)
}

func TestStreamWithdrawalEvents_ClientDisconnect(t *testing.T) {
	source := &fakeEventSource{}
	handler := handleStreamWithdrawalEvents(source, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/withdrawals/wd-1/events", nil).WithContext(ctx)
	req.SetPathValue("id", "wd-1")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after the client went away")
	}
	assert.False(t, source.opts.Replay)
}

func TestStreamWithdrawalEvents_SubscribeFails(t *testing.T) {
	handler := handleStreamWithdrawalEvents(&fakeEventSource{err: errors.New("nats down")}, slog.Default())

	req := httptest.NewRequest("GET", "/api/v1/withdrawals/wd-1/events", nil)
	req.SetPathValue("id", "wd-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to subscribe")
}
