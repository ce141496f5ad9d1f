package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

// TypeNotificationDeliver is the asynq task type carrying one user notification.
const TypeNotificationDeliver = "notification:deliver"

// NotificationPayload is the JSON body of a TypeNotificationDeliver task.
type NotificationPayload struct {
	Notification domain.Notification `json:"notification"`
}

// NewNotificationTask builds the task for n.
func NewNotificationTask(n domain.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(NotificationPayload{Notification: n})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationDeliver, payload), nil
}

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier hands notifications to the asynq queue; a worker delivers them.
type Notifier struct {
	client   Enqueuer
	queue    string
	maxRetry int
	log      *logrus.Entry
}

func NewNotifier(client Enqueuer, queue string) *Notifier {
	if queue == "" {
		queue = "default"
	}
	return &Notifier{
		client:   client,
		queue:    queue,
		maxRetry: 5,
		log:      logrus.WithField("component", "notification_queue"),
	}
}

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	task, err := NewNotificationTask(msg)
	if err != nil {
		return fmt.Errorf("build notification task: %w", err)
	}
	info, err := n.client.EnqueueContext(ctx, task,
		asynq.Queue(n.queue),
		asynq.MaxRetry(n.maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	n.log.WithFields(logrus.Fields{
		"task_id":      info.ID,
		"queue":        info.Queue,
		"recipient_id": msg.RecipientID,
		"code":         msg.SessionCode,
	}).Debug("Notification enqueued")
	return nil
}
