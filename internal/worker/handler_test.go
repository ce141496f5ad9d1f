package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/queue"
)

type recordingDelivery struct {
	got []domain.Notification
	err error
}

func (d *recordingDelivery) Deliver(_ context.Context, n domain.Notification) error {
	if d.err != nil {
		return d.err
	}
	d.got = append(d.got, n)
	return nil
}

func TestNotificationHandlerDelivers(t *testing.T) {
	delivery := &recordingDelivery{}
	h := NewNotificationHandler(delivery)

	task, err := queue.NewNotificationTask(domain.Notification{
		Kind:        domain.NotificationSessionInvite,
		RecipientID: 9,
		SessionCode: "ABC123",
		Message:     "hi",
	})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Len(t, delivery.got, 1)
	assert.Equal(t, int64(9), delivery.got[0].RecipientID)
	assert.Equal(t, "ABC123", delivery.got[0].SessionCode)
}

func TestNotificationHandlerSkipsRetryOnBadPayload(t *testing.T) {
	h := NewNotificationHandler(&recordingDelivery{})

	err := h.ProcessTask(context.Background(), asynq.NewTask(queue.TypeNotificationDeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotificationHandlerRetriesDeliveryFailure(t *testing.T) {
	boom := errors.New("push gateway down")
	h := NewNotificationHandler(&recordingDelivery{err: boom})

	task, err := queue.NewNotificationTask(domain.Notification{RecipientID: 1})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestLogDeliveryAcceptsEverything(t *testing.T) {
	assert.NoError(t, NewLogDelivery().Deliver(context.Background(), domain.Notification{Message: "hello"}))
}
