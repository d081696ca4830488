package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverySenderImpl_Send(t *testing.T) {
	ctx := context.Background()

	newArgs := func(url string) *DeliveryArgs {
		return &DeliveryArgs{
			RegistrationID: uuid.Must(uuid.NewV7()),
			Action:         "registered",
			URL:            url,
			Payload:        []byte(`{"id":"x"}`),
			Signature:      SignPayload("s3cret", []byte(`{"id":"x"}`)),
			DispatchToken:  uuid.Must(uuid.NewV7()),
		}
	}

	t.Run("posts payload with signature header", func(t *testing.T) {
		var gotBody []byte
		var gotContentType, gotSignature string
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotContentType = r.Header.Get("Content-Type")
			gotSignature = r.Header.Get(SignatureHeader)
		}))
		defer server.Close()

		repo := &mockRegistrationsRepo{}
		sender := NewDeliverySenderImpl(repo)
		args := newArgs(server.URL)

		err := sender.Send(ctx, args)

		require.NoError(t, err)
		assert.Equal(t, string(args.Payload), string(gotBody))
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, SignatureHeaderValue(args.Signature), gotSignature)
	})

	t.Run("returns error on non-2xx status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		sender := NewDeliverySenderImpl(&mockRegistrationsRepo{})

		assert.Error(t, sender.Send(ctx, newArgs(server.URL)))
	})

	t.Run("removes registration on 410 Gone", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer server.Close()

		repo := &mockRegistrationsRepo{}
		sender := NewDeliverySenderImpl(repo)
		args := newArgs(server.URL)

		assert.Error(t, sender.Send(ctx, args))
		assert.Equal(t, []uuid.UUID{args.RegistrationID}, repo.deleted)
	})

	t.Run("does not follow redirects", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "http://example.invalid/elsewhere", http.StatusTemporaryRedirect)
		}))
		defer server.Close()

		sender := NewDeliverySenderImpl(&mockRegistrationsRepo{})

		assert.Error(t, sender.Send(ctx, newArgs(server.URL)), "redirect must not be followed")
	})
}
