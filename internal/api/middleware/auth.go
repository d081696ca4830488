package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opencrvs/webhooks/internal/api/response"
)

type contextKey string

// SystemIDContextKey carries the authenticated system id (token subject).
const SystemIDContextKey contextKey = "system_id"

// Auth middleware validates bearer tokens from the Authorization header.
// Tokens are RS256 JWTs issued by the auth service; the subject claim is the
// calling system's id and is placed in the request context.
func Auth(publicKey *rsa.PublicKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.RespondUnauthorized(w, "Missing Authorization header")
				return
			}

			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				response.RespondUnauthorized(w, "Invalid Authorization header format. Expected: Bearer <token>")
				return
			}

			systemID, err := subjectFromToken(parts[1], publicKey)
			if err != nil {
				response.RespondUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SystemIDContextKey, systemID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectFromToken verifies the token signature and returns its subject.
func subjectFromToken(tokenString string, publicKey *rsa.PublicKey) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("token subject: %w", err)
	}

	if subject == "" {
		return "", jwt.ErrTokenRequiredClaimMissing
	}

	return subject, nil
}

// SystemIDFromContext returns the authenticated system id, if any.
func SystemIDFromContext(ctx context.Context) (string, bool) {
	systemID, ok := ctx.Value(SystemIDContextKey).(string)

	return systemID, ok
}
