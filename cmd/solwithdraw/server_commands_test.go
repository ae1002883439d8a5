package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthServer(t *testing.T, status int, body map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestHealthCommand_ReportsSurfaces(t *testing.T) {
	url := healthServer(t, http.StatusOK, map[string]any{
		"status":                 "ok",
		"network":                "devnet",
		"background_withdrawals": true,
		"event_streaming":        false,
		"airdrop":                true,
	})
	t.Setenv("SERVER_URL", url)

	out, err := runApp(t, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, url+": ok")
	assert.Contains(t, out, "Network:                devnet")
	assert.Contains(t, out, "Background withdrawals: enabled")
	assert.Contains(t, out, "Event streaming:        disabled")
}

func TestHealthCommand_JSON(t *testing.T) {
	url := healthServer(t, http.StatusOK, map[string]any{"status": "ok", "network": "testnet"})

	out, err := runApp(t, "--json", "--server-url", url, "server", "health")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "testnet", got["network"])
	assert.Equal(t, false, got["airdrop"])
}

func TestHealthCommand_Failure(t *testing.T) {
	url := healthServer(t, http.StatusServiceUnavailable, map[string]any{"error": "draining"})

	_, err := runApp(t, "--server-url", url, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
	assert.Contains(t, err.Error(), "draining")
}

func TestHealthCommand_MissingServerURL(t *testing.T) {
	_, err := runApp(t, "--server-url", "", "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-url is required")
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "solwithdraw dev")

	out, err = runApp(t, "--json", "server", "version")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"dev","commit":"unknown","built":"unknown"}`, out)
}
