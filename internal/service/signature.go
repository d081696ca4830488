package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the hex HMAC-SHA256 digest of the serialized payload
// keyed by the subscriber's shared secret. Subscribers verify the digest
// from the X-Hub-Signature header against their copy of the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader is the request header carrying the payload digest.
const SignatureHeader = "X-Hub-Signature"

// SignatureHeaderValue formats a digest for the X-Hub-Signature header.
func SignatureHeaderValue(digest string) string {
	return "sha256=" + digest
}
