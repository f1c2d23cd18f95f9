package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailtriage/internal/gmail"
)

func serveHealth(t *testing.T, h *HealthChecker, path string) (int, HealthResponse) {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthChecker_Liveness(t *testing.T) {
	code, resp := serveHealth(t, NewHealthChecker(nil), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealthChecker_Readiness(t *testing.T) {
	sc, _ := newTestContext(t)
	h := NewHealthChecker(sc)

	code, resp := serveHealth(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"ready": "ok", "shutdown": "ok", "cache": "ok"}, resp.Checks)

	h.SetReady(false)
	assert.False(t, h.IsReady())
	code, resp = serveHealth(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusNotReady, resp.Checks["ready"])

	h.SetReady(true)
	require.NoError(t, sc.Shutdown())
	code, resp = serveHealth(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusShuttingDown, resp.Checks["shutdown"])
}

func TestHealthChecker_ReadinessCacheDown(t *testing.T) {
	_, store := newTestContext(t)
	mb := gmail.NewMailbox(nopService{}, store, gmail.MailboxOptions{})
	sc, err := NewServerContext(t.Context(), Deps{Mailbox: mb, Store: failingStore{store}})
	require.NoError(t, err)

	code, resp := serveHealth(t, NewHealthChecker(sc), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusUnavailable, resp.Checks["cache"])
}
