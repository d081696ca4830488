package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(key)
	require.NoError(t, err)

	return signed
}

func TestAuth(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var gotSystemID string
	var gotOK bool

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSystemID, gotOK = SystemIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Auth(&key.PublicKey)(next)

	doRequest := func(authHeader string) *httptest.ResponseRecorder {
		gotSystemID, gotOK = "", false

		req := httptest.NewRequest(http.MethodGet, "http://test/webhooks", http.NoBody)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		return rec
	}

	t.Run("valid token puts subject in context", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{
			"sub": "sys-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		rec := doRequest("Bearer " + token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, gotOK)
		assert.Equal(t, "sys-1", gotSystemID)
	})

	t.Run("missing header returns 401", func(t *testing.T) {
		rec := doRequest("")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, gotOK)
	})

	t.Run("non-bearer header returns 401", func(t *testing.T) {
		rec := doRequest("Basic dXNlcjpwYXNz")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, gotOK)
	})

	t.Run("garbage token returns 401", func(t *testing.T) {
		rec := doRequest("Bearer not.a.token")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, gotOK)
	})

	t.Run("expired token returns 401", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{
			"sub": "sys-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		rec := doRequest("Bearer " + token)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another key returns 401", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		token := signToken(t, otherKey, jwt.MapClaims{
			"sub": "sys-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		rec := doRequest("Bearer " + token)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("HS256 token is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "sys-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		signed, err := token.SignedString([]byte("shared-secret"))
		require.NoError(t, err)

		rec := doRequest("Bearer " + signed)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without subject returns 401", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		rec := doRequest("Bearer " + token)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
