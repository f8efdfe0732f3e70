package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Seednode/streetguess/catalog"
	"github.com/Seednode/streetguess/ledger"
)

func testRouter(t *testing.T, profile bool) http.Handler {
	t.Helper()

	cfg := &Config{profile: profile, logger: zaptest.NewLogger(t)}

	scores := ledger.New()
	require.NoError(t, scores.Credit(catalog.ModeJapan, "u1", 5))
	require.NoError(t, scores.Credit(catalog.ModeJapan, "u2", 9))

	return newRouter(cfg, scores, newFeed(cfg.logger), make(chan error, 8))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndVersion(t *testing.T) {
	h := testRouter(t, false)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok\n", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = get(t, h, "/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "streetguess v"+releaseVersion+"\n", rec.Body.String())
}

func TestServeScores(t *testing.T) {
	h := testRouter(t, false)

	rec := get(t, h, "/scores/japan")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body scoresResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, catalog.ModeJapan, body.Mode)
	assert.Equal(t, []ledger.Entry{{Identity: "u2", Points: 9}, {Identity: "u1", Points: 5}}, body.Entries)

	rec = get(t, h, "/scores/world")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Entries)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/scores/mars").Code)
}

func TestProfileRoutesAreOptIn(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, testRouter(t, false), "/pprof/cmdline").Code)
	assert.Equal(t, http.StatusOK, get(t, testRouter(t, true), "/pprof/cmdline").Code)
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1:5555", realIP(r))

	r.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7:5555", realIP(r))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:5555", realIP(r))
}
