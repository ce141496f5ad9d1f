package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-session-service/internal/domain"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: "notifications"}, nil
}

func TestNotifierEnqueuesTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	n := NewNotifier(enq, "notifications")

	msg := domain.Notification{
		Kind:        domain.NotificationSessionInvite,
		RecipientID: 4,
		SenderID:    1,
		SessionCode: "ABC123",
		Message:     "host invited you to join a session (Code: ABC123).",
	}
	require.NoError(t, n.Notify(context.Background(), msg))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeNotificationDeliver, enq.tasks[0].Type())

	var payload NotificationPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, msg, payload.Notification)
}

func TestNotifierPropagatesEnqueueFailure(t *testing.T) {
	boom := errors.New("redis down")
	n := NewNotifier(&fakeEnqueuer{err: boom}, "")

	err := n.Notify(context.Background(), domain.Notification{RecipientID: 1})
	assert.ErrorIs(t, err, boom)
}
