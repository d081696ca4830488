package usermgnt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencrvs/webhooks/internal/models"
)

func TestClient_GetSystem(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the lookup key and decodes the system", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			_ = json.NewEncoder(w).Encode(models.System{
				ID:       "sys-1",
				ClientID: "client-1",
				Name:     "Automation",
				Status:   models.SystemStatusActive,
			})
		}))
		defer server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL})

		system, err := client.GetSystemBySystemID(ctx, "sys-1", "Bearer t")
		require.NoError(t, err)

		assert.Equal(t, "/getSystem", gotPath)
		assert.Equal(t, "Bearer t", gotAuth)
		assert.Equal(t, map[string]string{"systemId": "sys-1"}, gotBody)
		assert.Equal(t, "sys-1", system.ID)
		assert.Equal(t, "client-1", system.ClientID)
		assert.True(t, system.Active())
	})

	t.Run("looks up by clientId", func(t *testing.T) {
		var gotBody map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(models.System{ID: "sys-1"})
		}))
		defer server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL})

		_, err := client.GetSystemByClientID(ctx, "client-1", "Bearer t")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"clientId": "client-1"}, gotBody)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(models.System{ID: "sys-1"})
		}))
		defer server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL})

		system, err := client.GetSystemBySystemID(ctx, "sys-1", "Bearer t")
		require.NoError(t, err)
		assert.Equal(t, "sys-1", system.ID)
		assert.Equal(t, 2, attempts)
	})

	t.Run("returns error with status on 404", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "system not found", http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL})

		_, err := client.GetSystemBySystemID(ctx, "missing", "Bearer t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("returns error on malformed response body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id": `))
		}))
		defer server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL})

		_, err := client.GetSystemBySystemID(ctx, "sys-1", "Bearer t")
		assert.Error(t, err)
	})

	t.Run("honors context cancellation while rate limited", func(t *testing.T) {
		client := NewClient(ClientOptions{BaseURL: "http://example.invalid", RequestsPerSecond: 0.001})

		// First permit is consumed immediately; the second waits long enough
		// for the cancelled context to win.
		_ = client.limiter.Allow()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.GetSystemBySystemID(cancelled, "sys-1", "Bearer t")
		assert.Error(t, err)
	})
}
