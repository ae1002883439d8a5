package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/solwithdraw/service/config"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/brojonat/solwithdraw/service/temporal"
	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/google/uuid"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 44      // base58 of 32 bytes
	maxMemoLength      = 256
	maxIDLength        = 64
	defaultListLimit   = 50
	maxListLimit       = 500

	// DefaultAirdropLamports is requested when an airdrop does not name an amount.
	DefaultAirdropLamports = solana.LamportsPerSOL
)

// Withdrawal modes accepted by POST /api/v1/withdrawals.
const (
	ModeInteractive = "interactive"
	ModeBackground  = "background"
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
	validIDRegex      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// createWithdrawalRequest is the body of POST /api/v1/withdrawals. Exactly
// one of Lamports and AmountSOL is set.
type createWithdrawalRequest struct {
	ID        string `json:"id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Lamports  uint64 `json:"lamports,omitempty"`
	AmountSOL string `json:"amount_sol,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Mode      string `json:"mode,omitempty"` // "interactive" (default) or "background"
}

// WithdrawalAccepted is returned when a withdrawal is queued as a background job.
type WithdrawalAccepted struct {
	WithdrawalID string            `json:"withdrawal_id"`
	Status       withdrawal.Status `json:"status"`
	WorkflowID   string            `json:"workflow_id"`
	RunID        string            `json:"run_id"`
}

// handleCreateWithdrawal returns a handler that records a withdrawal and
// processes it inline or hands it to the background worker.
// POST /api/v1/withdrawals
func handleCreateWithdrawal(store Store, processor Processor, dispatcher temporal.Dispatcher, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req createWithdrawalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode withdrawal request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		lamports, err := validateWithdrawalRequest(&req)
		if err != nil {
			logger.Debug("invalid withdrawal request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Mode == ModeBackground && dispatcher == nil {
			writeError(w, "background withdrawals are not available", http.StatusBadRequest)
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		rec, err := store.CreateWithdrawal(r.Context(), withdrawal.CreateParams{
			ID:       req.ID,
			From:     req.From,
			To:       req.To,
			Lamports: lamports,
			Memo:     req.Memo,
			Network:  cfg.SolanaNetwork,
		})
		switch {
		case errors.Is(err, withdrawal.ErrWithdrawalExists):
			writeError(w, "withdrawal already exists", http.StatusConflict)
			return
		case errors.Is(err, withdrawal.ErrInsufficientLedgerBalance):
			writeError(w, "insufficient available balance", http.StatusUnprocessableEntity)
			return
		case err != nil:
			logger.ErrorContext(r.Context(), "failed to create withdrawal", "withdrawal_id", req.ID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "withdrawal created",
			"withdrawal_id", rec.ID,
			"from", rec.From,
			"to", rec.To,
			"lamports", rec.Lamports,
			"mode", req.Mode,
		)

		if req.Mode == ModeBackground {
			startBackgroundWithdrawal(w, r, store, dispatcher, cfg, rec, logger)
			return
		}

		// The withdrawal must run to a terminal state even if the client
		// goes away; cancelling mid-flight would leave funds reserved.
		ctx := context.WithoutCancel(r.Context())
		wreq := rec.Request()
		wreq.ConfirmTimeout = cfg.InteractiveConfirmTimeout

		result, err := processor.Process(ctx, wreq)
		if err != nil {
			logger.WarnContext(ctx, "withdrawal failed",
				"withdrawal_id", rec.ID,
				"error", withdrawal.Sanitize(err.Error()),
			)
		}
		writeJSON(w, result, resultStatusCode(result))
	})
}

func startBackgroundWithdrawal(w http.ResponseWriter, r *http.Request, store Store, dispatcher temporal.Dispatcher, cfg *config.Config, rec *withdrawal.Record, logger *slog.Logger) {
	runID, err := dispatcher.StartWithdrawal(r.Context(), temporal.WithdrawalInput{
		Request:        rec.Request(),
		ConfirmTimeout: cfg.JobConfirmTimeout,
		ReconcileDelay: cfg.ReconcileDelay,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to start withdrawal workflow", "withdrawal_id", rec.ID, "error", err)
		// Nothing was submitted; release the reservation.
		if ferr := store.Fail(context.WithoutCancel(r.Context()), rec.ID, "Could not schedule the withdrawal."); ferr != nil {
			logger.ErrorContext(r.Context(), "failed to release withdrawal", "withdrawal_id", rec.ID, "error", ferr)
		}
		writeError(w, "failed to schedule withdrawal", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, WithdrawalAccepted{
		WithdrawalID: rec.ID,
		Status:       rec.Status,
		WorkflowID:   temporal.WorkflowID(rec.ID),
		RunID:        runID,
	}, http.StatusAccepted)
}

// resultStatusCode maps a processed withdrawal to an HTTP status: 200 when
// it confirmed, 202 when its final status is not known yet and 422 when it
// failed.
func resultStatusCode(result *withdrawal.Result) int {
	switch result.Outcome {
	case withdrawal.OutcomeCompleted:
		return http.StatusOK
	case withdrawal.OutcomeUnconfirmed:
		return http.StatusAccepted
	default:
		return http.StatusUnprocessableEntity
	}
}

// handleGetWithdrawal returns a handler that retrieves a withdrawal.
// GET /api/v1/withdrawals/{id}
func handleGetWithdrawal(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := validateID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := store.GetWithdrawal(r.Context(), id)
		if errors.Is(err, withdrawal.ErrNotFound) {
			writeError(w, "withdrawal not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get withdrawal", "withdrawal_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, rec, http.StatusOK)
	})
}

// handleListWithdrawals returns a handler that lists withdrawals from an
// address, newest first.
// GET /api/v1/withdrawals?address={address}&limit={limit}
func handleListWithdrawals(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		address := query.Get("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit := defaultListLimit
		if s := query.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, "invalid limit: must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, maxListLimit)
		}

		recs, err := store.ListWithdrawals(r.Context(), address, limit)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list withdrawals", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []*withdrawal.Record{}
		}

		writeJSON(w, map[string]interface{}{
			"address":     address,
			"withdrawals": recs,
			"count":       len(recs),
		}, http.StatusOK)
	})
}

// handleGetBalance returns a handler that reports an address's ledger balance.
// GET /api/v1/balances/{address}
func handleGetBalance(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		b, err := store.GetBalance(r.Context(), address)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get balance", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, b, http.StatusOK)
	})
}

// handleCreditBalance returns a handler that adds funds to an address's
// ledger balance.
// POST /api/v1/balances/{address}/credit
func handleCreditBalance(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Lamports uint64 `json:"lamports"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}
		if req.Lamports == 0 {
			writeError(w, "lamports must be positive", http.StatusBadRequest)
			return
		}

		b, err := store.Credit(r.Context(), address, req.Lamports)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to credit balance", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "balance credited", "address", address, "lamports", req.Lamports)
		writeJSON(w, b, http.StatusOK)
	})
}

// handleAirdrop returns a handler that requests faucet funds.
// POST /api/v1/airdrop
func handleAirdrop(airdropper Airdropper, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Address  string `json:"address"`
			Lamports uint64 `json:"lamports"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}
		if err := validateAddress(req.Address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Lamports == 0 {
			req.Lamports = DefaultAirdropLamports
		}

		sig, err := airdropper.RequestAirdrop(r.Context(), req.Address, req.Lamports)
		if errors.Is(err, solana.ErrAirdropUnavailable) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			logger.WarnContext(r.Context(), "airdrop failed",
				"address", req.Address,
				"error", withdrawal.Sanitize(err.Error()),
			)
			writeError(w, withdrawal.HumanReadable(err), http.StatusBadGateway)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address":   req.Address,
			"lamports":  req.Lamports,
			"signature": sig,
		}, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Network    string `json:"network"`
	Background bool   `json:"background_withdrawals"`
	Streaming  bool   `json:"event_streaming"`
	Airdrop    bool   `json:"airdrop"`
}

func handleHealth(h HealthResponse) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h, http.StatusOK)
	})
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateWithdrawalRequest checks a withdrawal request and returns its
// amount in lamports.
func validateWithdrawalRequest(req *createWithdrawalRequest) (uint64, error) {
	if req.ID != "" {
		if err := validateID(req.ID); err != nil {
			return 0, err
		}
	}
	if err := validateAddress(req.From); err != nil {
		return 0, errorf("invalid from: %v", err)
	}
	if err := validateAddress(req.To); err != nil {
		return 0, errorf("invalid to: %v", err)
	}
	if req.From == req.To {
		return 0, errorf("from and to must differ")
	}
	if len(req.Memo) > maxMemoLength {
		return 0, errorf("memo too long: maximum length is %d bytes", maxMemoLength)
	}
	switch req.Mode {
	case "":
		req.Mode = ModeInteractive
	case ModeInteractive, ModeBackground:
	default:
		return 0, errorf("invalid mode: must be '%s' or '%s'", ModeInteractive, ModeBackground)
	}

	switch {
	case req.Lamports > 0 && req.AmountSOL != "":
		return 0, errorf("set either lamports or amount_sol, not both")
	case req.AmountSOL != "":
		lamports, err := solana.SOLToLamports(req.AmountSOL)
		if err != nil {
			return 0, errorf("invalid amount_sol: %v", err)
		}
		if lamports == 0 {
			return 0, errorf("amount must be positive")
		}
		return lamports, nil
	case req.Lamports > 0:
		return req.Lamports, nil
	default:
		return 0, errorf("amount must be positive")
	}
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return errorf("invalid address format: must decode to 32 bytes")
	}

	return nil
}

// validateID validates a client-supplied withdrawal id.
func validateID(id string) error {
	if id == "" {
		return errorf("id is required")
	}
	if len(id) > maxIDLength {
		return errorf("id too long: maximum length is %d characters", maxIDLength)
	}
	if !validIDRegex.MatchString(id) {
		return errorf("invalid id: only letters, digits, '-' and '_' are allowed")
	}
	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
