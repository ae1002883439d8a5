package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/brojonat/solwithdraw/service/withdrawal"
)

const sseKeepaliveInterval = 10 * time.Second

// handleStreamWithdrawalEvents streams status events for one withdrawal as
// Server-Sent Events. With ?replay=true retained events are sent first. The
// stream ends after a terminal event or when the client disconnects.
// GET /api/v1/withdrawals/{id}/events
func handleStreamWithdrawalEvents(source EventSource, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := validateID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		replay := r.URL.Query().Get("replay") == "true"

		events, err := source.Subscribe(r.Context(), natspkg.SubscribeOptions{
			WithdrawalID: id,
			Replay:       replay,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to subscribe to withdrawal events",
				"withdrawal_id", id,
				"error", err,
			)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}

		// Streams outlive the server's write timeout.
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		logger.DebugContext(r.Context(), "SSE client connected",
			"withdrawal_id", id,
			"remote_addr", r.RemoteAddr,
		)

		fmt.Fprintf(w, "event: connected\ndata: {\"withdrawal_id\":%q}\n\n", id)
		rc.Flush()

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				rc.Flush()

			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
				rc.Flush()

				if withdrawal.State(event.Stage).Terminal() {
					logger.DebugContext(r.Context(), "withdrawal reached a terminal state, closing stream",
						"withdrawal_id", id,
						"stage", event.Stage,
					)
					return
				}

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"withdrawal_id", id,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
