package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

// EventBus routes session events through Redis pub/sub so watchers connected to any
// instance see the writes made by every other instance.
// Events are published on: PUBLISH session:events:{code} {json}
type EventBus struct {
	client *redis.Client
	buffer int
	log    *logrus.Entry
}

func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{
		client: client,
		buffer: 16,
		log:    logrus.WithField("component", "redis_event_bus"),
	}
}

func (b *EventBus) Publish(ctx context.Context, ev domain.SessionEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel(ev.Code), raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe returns a channel that receives the events of one session. The channel is closed
// after a session_deleted event, when ctx ends, or when cancel is called.
func (b *EventBus) Subscribe(ctx context.Context, code string) (<-chan domain.SessionEvent, func(), error) {
	pubsub := b.client.Subscribe(ctx, channel(code))
	// Wait for the subscription to be confirmed so no event published after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", code, err)
	}

	out := make(chan domain.SessionEvent, b.buffer)
	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}

	go func() {
		defer close(out)
		defer cancel()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.WithError(err).WithField("code", code).Warn("Dropping undecodable session event")
					continue
				}
				deliver(out, ev)
				if ev.Type == domain.EventSessionDeleted {
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// deliver drops the oldest buffered event when the watcher falls behind.
func deliver(out chan domain.SessionEvent, ev domain.SessionEvent) {
	select {
	case out <- ev:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- ev
}

func channel(code string) string {
	return "session:events:" + code
}
