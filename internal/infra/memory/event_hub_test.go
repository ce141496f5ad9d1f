package memory

import (
	"context"
	"testing"

	"quiz-session-service/internal/domain"
)

func TestEventHubDeliversToSessionSubscribers(t *testing.T) {
	ctx := context.Background()
	hub := NewEventHub()

	ch, cancel, err := hub.Subscribe(ctx, "ABC123")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	other, cancelOther, _ := hub.Subscribe(ctx, "ZZZ999")
	defer cancelOther()

	_ = hub.Publish(ctx, domain.SessionEvent{Type: domain.EventSessionStarted, Code: "ABC123"})

	ev := <-ch
	if ev.Type != domain.EventSessionStarted {
		t.Fatalf("expected session_started, got %s", ev.Type)
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other session: %+v", ev)
	default:
	}
}

func TestEventHubDropsOldestForSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewEventHub()
	ch, cancel, _ := hub.Subscribe(ctx, "ABC123")
	defer cancel()

	for i := 0; i < 40; i++ {
		score := float64(i)
		_ = hub.Publish(ctx, domain.SessionEvent{Type: domain.EventScoreSubmitted, Code: "ABC123", Score: &score})
	}

	var last domain.SessionEvent
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Score == nil || *last.Score != 39 {
		t.Fatalf("expected newest event kept, got %+v", last)
	}
}

func TestEventHubClosesOnDelete(t *testing.T) {
	ctx := context.Background()
	hub := NewEventHub()
	ch, cancel, _ := hub.Subscribe(ctx, "ABC123")

	_ = hub.Publish(ctx, domain.SessionEvent{Type: domain.EventSessionDeleted, Code: "ABC123"})
	<-ch
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after delete")
	}
	cancel()
	if hub.SubscriberCount("ABC123") != 0 {
		t.Fatalf("expected no subscribers left")
	}
}
