package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/queue"
)

// Delivery pushes a notification to the user (push service, mail, in-app inbox).
type Delivery interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// LogDelivery writes notifications to the log. It is the default sink for local runs.
type LogDelivery struct {
	log *logrus.Entry
}

func NewLogDelivery() *LogDelivery {
	return &LogDelivery{log: logrus.WithField("component", "notification_delivery")}
}

func (d *LogDelivery) Deliver(_ context.Context, n domain.Notification) error {
	d.log.WithFields(logrus.Fields{
		"kind":         n.Kind,
		"recipient_id": n.RecipientID,
		"code":         n.SessionCode,
	}).Info(n.Message)
	return nil
}

// NotificationHandler processes TypeNotificationDeliver tasks.
type NotificationHandler struct {
	delivery Delivery
}

func NewNotificationHandler(delivery Delivery) *NotificationHandler {
	return &NotificationHandler{delivery: delivery}
}

// ProcessTask implements asynq.Handler.
func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     retry,
		"max_retry": maxRetry,
	})

	var payload queue.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal notification payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	n := payload.Notification
	if err := h.delivery.Deliver(ctx, n); err != nil {
		logCtx.WithError(err).WithField("recipient_id", n.RecipientID).Warn("Notification delivery failed")
		return fmt.Errorf("deliver notification to %d: %w", n.RecipientID, err)
	}
	logCtx.WithField("recipient_id", n.RecipientID).Debug("Notification delivered")
	return nil
}
