package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencrvs/webhooks/internal/observability"
)

func TestRequestID(t *testing.T) {
	t.Run("generates an id and echoes it in the response", func(t *testing.T) {
		var seen string

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = r.Context().Value(observability.RequestIDKey).(string)
		}))

		req := httptest.NewRequest(http.MethodGet, "http://test/health", http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})

	t.Run("keeps a client-supplied id", func(t *testing.T) {
		var seen string

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = r.Context().Value(observability.RequestIDKey).(string)
		}))

		req := httptest.NewRequest(http.MethodGet, "http://test/health", http.NoBody)
		req.Header.Set("X-Request-ID", "gateway-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "gateway-42", seen)
		assert.Equal(t, "gateway-42", rec.Header().Get("X-Request-ID"))
	})
}
