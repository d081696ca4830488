package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/opencrvs/webhooks/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id that follows it through logs and
// into the delivery pipeline. A client-supplied X-Request-ID is kept so the
// gateway's id survives the hop; otherwise a v7 UUID is minted. The id is
// echoed back in the response header either way.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}

		ctx := context.WithValue(r.Context(), observability.RequestIDKey, id)
		w.Header().Set(requestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
