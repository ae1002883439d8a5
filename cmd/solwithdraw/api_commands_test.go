package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestAPIWithdraw_Interactive(t *testing.T) {
	var got map[string]any
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/withdrawals", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"withdrawal_id":       "w-1",
			"outcome":             "completed",
			"signature":           testSig,
			"explorer_url":        "https://explorer.solana.com/tx/" + testSig,
			"confirmation_status": "confirmed",
		})
	})

	out, err := runApp(t, "--server-url", url, "api", "withdraw",
		"--from", testFrom, "--to", testTo, "--amount", "0.5", "--memo", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Withdrawal w-1 completed")
	assert.Contains(t, out, testSig)

	assert.Equal(t, "interactive", got["mode"])
	assert.Equal(t, "0.5", got["amount_sol"])
	assert.Equal(t, "hi", got["memo"])
	assert.NotContains(t, got, "lamports")
}

func TestAPIWithdraw_FailedOutcome(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"withdrawal_id": "w-2",
			"outcome":       "failed",
			"reason":        "Insufficient balance",
		})
	})

	out, err := runApp(t, "--server-url", url, "api", "withdraw",
		"--from", testFrom, "--to", testTo, "--lamports", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient balance")
	assert.Contains(t, out, "w-2 failed")
}

func TestAPIWithdraw_Refused(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "withdrawal already exists"})
	})

	_, err := runApp(t, "--server-url", url, "api", "withdraw",
		"--from", testFrom, "--to", testTo, "--lamports", "10", "--id", "dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAPIWithdraw_BackgroundWatch(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/withdrawals":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"withdrawal_id": "w-3",
				"status":        "pending",
				"workflow_id":   "withdrawal-w-3",
				"run_id":        "run-1",
			})
		case "/api/v1/withdrawals/w-3/events":
			assert.Equal(t, "true", r.URL.Query().Get("replay"))
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: connected\ndata: {}\n\n")
			for _, stage := range []string{"submitting", "confirming", "completed"} {
				data, _ := json.Marshal(map[string]any{
					"withdrawal_id": "w-3",
					"stage":         stage,
					"status":        "processing",
				})
				fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			}
		default:
			http.NotFound(w, r)
		}
	})

	out, err := runApp(t, "--server-url", url, "api", "withdraw",
		"--from", testFrom, "--to", testTo, "--lamports", "10", "--background", "--watch")
	require.NoError(t, err)
	assert.Contains(t, out, "Withdrawal w-3 queued")
	assert.Contains(t, out, "withdrawal-w-3")
	assert.Contains(t, out, "→ confirming")
	assert.Contains(t, out, "→ completed")
}

func TestAPIGet(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/withdrawals/w-4" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "withdrawal not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "w-4",
			"from":           testFrom,
			"to":             testTo,
			"lamports":       1_250_000_000,
			"network":        "devnet",
			"status":         "failed",
			"failure_reason": "Network error. Please try again.",
			"created_at":     created,
			"updated_at":     created,
		})
	})

	out, err := runApp(t, "--server-url", url, "api", "get", "w-4")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    failed")
	assert.Contains(t, out, "1.25 SOL (1250000000 lamports)")
	assert.Contains(t, out, "Network error. Please try again.")

	_, err = runApp(t, "--server-url", url, "api", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAPIList_Empty(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testFrom, r.URL.Query().Get("address"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{"withdrawals": []any{}})
	})

	out, err := runApp(t, "--server-url", url, "api", "list", "--address", testFrom, "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "No withdrawals found")
}

func TestAPIBalanceAndCredit(t *testing.T) {
	var credited float64
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			assert.Equal(t, "/api/v1/balances/"+testFrom+"/credit", r.URL.Path)
			var body map[string]float64
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			credited = body["lamports"]
		}
		json.NewEncoder(w).Encode(map[string]any{
			"address":            testFrom,
			"available_lamports": 3_000_000_000,
			"reserved_lamports":  500_000_000,
		})
	})

	out, err := runApp(t, "--server-url", url, "api", "balance", testFrom)
	require.NoError(t, err)
	assert.Contains(t, out, "Available: 3 SOL")
	assert.Contains(t, out, "Reserved:  0.5 SOL")

	_, err = runApp(t, "--server-url", url, "api", "credit", "--amount", "2", testFrom)
	require.NoError(t, err)
	assert.Equal(t, float64(2_000_000_000), credited)
}
