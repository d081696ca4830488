package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignPayload(t *testing.T) {
	payload := []byte(`{"timestamp":"2024-01-01T00:00:00Z"}`)

	t.Run("produces a verifiable hex digest", func(t *testing.T) {
		digest := SignPayload("s3cret", payload)

		raw, err := hex.DecodeString(digest)
		require.NoError(t, err)

		mac := hmac.New(sha256.New, []byte("s3cret"))
		mac.Write(payload)
		assert.True(t, hmac.Equal(raw, mac.Sum(nil)), "digest does not verify against the secret")
	})

	t.Run("different secrets produce different digests", func(t *testing.T) {
		assert.NotEqual(t, SignPayload("a", payload), SignPayload("b", payload))
	})

	t.Run("digest depends on payload bytes", func(t *testing.T) {
		truncated := append([]byte(nil), payload[:len(payload)-1]...)
		assert.NotEqual(t, SignPayload("s3cret", payload), SignPayload("s3cret", truncated))
	})
}

func TestSignatureHeaderValue(t *testing.T) {
	assert.Equal(t, "sha256=abc123", SignatureHeaderValue("abc123"))
}
