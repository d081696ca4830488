package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"

	"github.com/opencrvs/webhooks/internal/service"
)

type mockSender struct {
	err   error
	calls int
}

func (m *mockSender) Send(_ context.Context, _ *service.DeliveryArgs) error {
	m.calls++

	return m.err
}

func TestWebhookDeliveryWorker_Work(t *testing.T) {
	ctx := context.Background()
	args := service.DeliveryArgs{
		RegistrationID: uuid.Must(uuid.NewV7()),
		Action:         "registered",
		URL:            "http://x",
		Payload:        []byte(`{"id":"x"}`),
		Signature:      "abc",
		DispatchToken:  uuid.Must(uuid.NewV7()),
	}

	t.Run("returns nil on send success", func(t *testing.T) {
		sender := &mockSender{}
		worker := NewWebhookDeliveryWorker(sender, nil)
		job := &river.Job[service.DeliveryArgs]{JobRow: &rivertype.JobRow{}, Args: args}

		err := worker.Work(ctx, job)

		assert.NoError(t, err)
		assert.Equal(t, 1, sender.calls)
	})

	t.Run("returns error for retry when send fails and attempt < max", func(t *testing.T) {
		sender := &mockSender{err: errors.New("network error")}
		worker := NewWebhookDeliveryWorker(sender, nil)
		job := &river.Job[service.DeliveryArgs]{
			JobRow: &rivertype.JobRow{Attempt: 1, MaxAttempts: 3},
			Args:   args,
		}

		err := worker.Work(ctx, job)

		assert.Error(t, err)
	})

	t.Run("returns error when send fails on last attempt", func(t *testing.T) {
		sender := &mockSender{err: errors.New("final failure")}
		worker := NewWebhookDeliveryWorker(sender, nil)
		job := &river.Job[service.DeliveryArgs]{
			JobRow: &rivertype.JobRow{Attempt: 3, MaxAttempts: 3},
			Args:   args,
		}

		err := worker.Work(ctx, job)

		assert.Error(t, err)
	})
}

func TestWebhookDeliveryWorker_Timeout(t *testing.T) {
	worker := NewWebhookDeliveryWorker(nil, nil)
	job := &river.Job[service.DeliveryArgs]{JobRow: &rivertype.JobRow{}}

	assert.Equal(t, 25*time.Second, worker.Timeout(job))
}
