package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// EventHub fans session events out to in-process subscribers.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.SessionEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]map[chan domain.SessionEvent]struct{})}
}

func (h *EventHub) Publish(_ context.Context, ev domain.SessionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers[ev.Code] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest event so the publisher never blocks.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	if ev.Type == domain.EventSessionDeleted {
		for ch := range h.subscribers[ev.Code] {
			close(ch)
		}
		delete(h.subscribers, ev.Code)
	}
	return nil
}

// Subscribe returns a channel that receives the events of one session.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *EventHub) Subscribe(_ context.Context, code string) (<-chan domain.SessionEvent, func(), error) {
	ch := make(chan domain.SessionEvent, 16)

	h.mu.Lock()
	if h.subscribers[code] == nil {
		h.subscribers[code] = make(map[chan domain.SessionEvent]struct{})
	}
	h.subscribers[code][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[code]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, code)
		}
	}
	return ch, cancel, nil
}

// SubscriberCount reports how many subscribers watch a session.
func (h *EventHub) SubscriberCount(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[code])
}
