package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opencrvs/webhooks/internal/api/response"
)

// bodyTooLargeMsg is the error text http.MaxBytesReader produces past the limit.
const bodyTooLargeMsg = "http: request body too large"

// RequestBodyTooLargeRecorder counts requests rejected for exceeding the
// body limit. Nil disables recording.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody caps request bodies at maxBytes. Trigger requests carry full
// registration records and are the reason the cap exists; a body past the
// limit gets 413 instead of whatever decode error the handler would produce.
// maxBytes <= 0 disables the cap.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited := &limitTrackingBody{
				ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes),
			}
			r.Body = limited

			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				// The handler only notices the limit mid-decode, after it may
				// have started an error response. Buffer the response so the
				// 413 can replace it.
				buf := &bufferedResponse{ResponseWriter: w}
				next.ServeHTTP(buf, r)

				if limited.exceeded {
					if recorder != nil {
						recorder.RecordRequestBodyTooLarge(r.Context())
					}

					response.RespondError(buf.ResponseWriter, http.StatusRequestEntityTooLarge,
						"Request Entity Too Large", "request body exceeds maximum allowed size")

					return
				}

				buf.flush()
			default:
				// Bodyless methods stream straight through.
				next.ServeHTTP(w, r)
			}
		})
	}
}

// limitTrackingBody remembers whether a read failed because the limit was hit.
type limitTrackingBody struct {
	io.ReadCloser

	exceeded bool
}

func (b *limitTrackingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil {
		if strings.Contains(err.Error(), bodyTooLargeMsg) {
			b.exceeded = true
		}

		return n, fmt.Errorf("read body: %w", err)
	}

	return n, nil
}

// bufferedResponse holds back status and body until the limit verdict is in.
type bufferedResponse struct {
	http.ResponseWriter

	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) WriteHeader(code int) {
	b.status = code
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	n, err := b.body.Write(p)
	if err != nil {
		return n, fmt.Errorf("buffer write: %w", err)
	}

	return n, nil
}

func (b *bufferedResponse) flush() {
	if b.status != 0 {
		b.ResponseWriter.WriteHeader(b.status)
	}

	_, _ = b.body.WriteTo(b.ResponseWriter)
}
