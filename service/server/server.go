package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solwithdraw/service/config"
	"github.com/brojonat/solwithdraw/service/metrics"
	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/brojonat/solwithdraw/service/temporal"
	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the withdrawal and balance storage the API reads and writes.
// db.Store and ledger.Memory both implement it.
type Store interface {
	CreateWithdrawal(ctx context.Context, params withdrawal.CreateParams) (*withdrawal.Record, error)
	GetWithdrawal(ctx context.Context, id string) (*withdrawal.Record, error)
	ListWithdrawals(ctx context.Context, address string, limit int) ([]*withdrawal.Record, error)
	Fail(ctx context.Context, id string, reason string) error
	GetBalance(ctx context.Context, address string) (*withdrawal.Balance, error)
	Credit(ctx context.Context, address string, lamports uint64) (*withdrawal.Balance, error)
}

// Processor runs a withdrawal inline.
type Processor interface {
	Process(ctx context.Context, req withdrawal.Request) (*withdrawal.Result, error)
}

// Airdropper requests faucet funds for an address.
type Airdropper interface {
	RequestAirdrop(ctx context.Context, address string, lamports uint64) (string, error)
}

// EventSource streams withdrawal status events.
type EventSource interface {
	Subscribe(ctx context.Context, opts natspkg.SubscribeOptions) (<-chan *natspkg.WithdrawalStatusEvent, error)
}

// Server represents the HTTP server for the withdrawal service.
type Server struct {
	addr       string
	cfg        *config.Config
	store      Store
	processor  Processor
	dispatcher temporal.Dispatcher
	airdropper Airdropper
	events     EventSource
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The dispatcher is optional - if nil, background withdrawals are refused.
// The airdropper is optional - if nil, the airdrop endpoint is not available.
// The events source is optional - if nil, the SSE endpoint is not available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, cfg *config.Config, store Store, processor Processor, dispatcher temporal.Dispatcher, airdropper Airdropper, events EventSource, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:       addr,
		cfg:        cfg,
		store:      store,
		processor:  processor,
		dispatcher: dispatcher,
		airdropper: airdropper,
		events:     events,
		metrics:    m,
		logger:     logger,
	}
}

// Handler builds the routed, instrumented handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "POST /api/v1/withdrawals", handleCreateWithdrawal(s.store, s.processor, s.dispatcher, s.cfg, s.logger))
	s.handle(mux, "GET /api/v1/withdrawals", handleListWithdrawals(s.store, s.logger))
	s.handle(mux, "GET /api/v1/withdrawals/{id}", handleGetWithdrawal(s.store, s.logger))
	s.handle(mux, "GET /api/v1/balances/{address}", handleGetBalance(s.store, s.logger))
	s.handle(mux, "POST /api/v1/balances/{address}/credit", handleCreditBalance(s.store, s.logger))

	if s.airdropper != nil {
		s.handle(mux, "POST /api/v1/airdrop", handleAirdrop(s.airdropper, s.logger))
	}

	// SSE streaming endpoint (if an event source is configured)
	if s.events != nil {
		mux.Handle("GET /api/v1/withdrawals/{id}/events", handleStreamWithdrawalEvents(s.events, s.logger))
	} else {
		s.logger.Warn("event source not configured, streaming endpoint disabled")
	}

	mux.Handle("GET /health", handleHealth(s.health()))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// health describes the surfaces this server was started with.
func (s *Server) health() HealthResponse {
	h := HealthResponse{
		Status:     "ok",
		Background: s.dispatcher != nil,
		Streaming:  s.events != nil,
		Airdrop:    s.airdropper != nil,
	}
	if s.cfg != nil {
		h.Network = s.cfg.SolanaNetwork
	}
	return h
}

// handle registers h instrumented with HTTP metrics under the route pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	// Interactive withdrawals hold the request open for the confirmation
	// window, so the write timeout has to outlast it.
	writeTimeout := 15 * time.Second
	if s.cfg != nil && s.cfg.InteractiveConfirmTimeout+30*time.Second > writeTimeout {
		writeTimeout = s.cfg.InteractiveConfirmTimeout + 30*time.Second
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
