package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBodyTooLargeRecorder struct {
	calls int
}

func (m *mockBodyTooLargeRecorder) RecordRequestBodyTooLarge(_ context.Context) {
	m.calls++
}

// drainingHandler reads the full body the way a JSON-decoding handler would.
func drainingHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestMaxBody(t *testing.T) {
	t.Run("body under the limit passes through untouched", func(t *testing.T) {
		recorder := &mockBodyTooLargeRecorder{}
		handler := MaxBody(64, recorder)(drainingHandler(http.StatusCreated, "ok"))

		req := httptest.NewRequest(http.MethodPost, "http://test/subscribe", strings.NewReader("small"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Zero(t, recorder.calls)
	})

	t.Run("body over the limit returns 413 and records it", func(t *testing.T) {
		recorder := &mockBodyTooLargeRecorder{}
		handler := MaxBody(8, recorder)(drainingHandler(http.StatusBadRequest, "decode error"))

		req := httptest.NewRequest(http.MethodPost, "http://test/trigger", strings.NewReader(strings.Repeat("x", 64)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 1, recorder.calls)

		var body map[string]any

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Request Entity Too Large", body["title"])
	})

	t.Run("nil recorder still rejects oversized bodies", func(t *testing.T) {
		handler := MaxBody(8, nil)(drainingHandler(http.StatusOK, "ok"))

		req := httptest.NewRequest(http.MethodPost, "http://test/trigger", strings.NewReader(strings.Repeat("x", 64)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("zero limit disables the cap", func(t *testing.T) {
		handler := MaxBody(0, nil)(drainingHandler(http.StatusOK, "ok"))

		req := httptest.NewRequest(http.MethodPost, "http://test/trigger", strings.NewReader(strings.Repeat("x", 1<<16)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("GET responses are not buffered", func(t *testing.T) {
		recorder := &mockBodyTooLargeRecorder{}
		handler := MaxBody(8, recorder)(drainingHandler(http.StatusOK, "listing"))

		req := httptest.NewRequest(http.MethodGet, "http://test/webhooks", http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "listing", rec.Body.String())
		assert.Zero(t, recorder.calls)
	})
}
