package memory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

// Notifier logs notifications and keeps them for inspection. It stands in for the
// notification sink when no queue is configured.
type Notifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	log  *logrus.Entry
}

func NewNotifier() *Notifier {
	return &Notifier{log: logrus.WithField("component", "notifier")}
}

func (n *Notifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()

	n.log.WithFields(logrus.Fields{
		"kind":         msg.Kind,
		"recipient_id": msg.RecipientID,
		"code":         msg.SessionCode,
	}).Info(msg.Message)
	return nil
}

// Sent returns a copy of every notification received so far.
func (n *Notifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
