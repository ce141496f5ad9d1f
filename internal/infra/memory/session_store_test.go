package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	session := createSession(t, store, "ABC123", 2)
	if session.ID == 0 {
		t.Fatalf("expected session id to be assigned")
	}

	err := store.View(ctx, func(ctx context.Context, tx app.Tx) error {
		got, err := tx.SessionByCode(ctx, "ABC123", app.LockNone)
		if err != nil {
			return err
		}
		if got.NumTeams != 2 || got.Started {
			t.Fatalf("unexpected session %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	err = store.Atomic(ctx, func(ctx context.Context, tx app.Tx) error {
		return tx.DeleteSession(ctx, session.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = store.View(ctx, func(ctx context.Context, tx app.Tx) error {
		_, err := tx.SessionByCode(ctx, "ABC123", app.LockNone)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestSessionStoreRejectsDuplicateCode(t *testing.T) {
	store := NewSessionStore()
	createSession(t, store, "ABC123", 1)

	err := store.Atomic(context.Background(), func(ctx context.Context, tx app.Tx) error {
		return tx.CreateSession(ctx, &domain.Session{Code: "ABC123", NumTeams: 1})
	})
	if !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
}

func TestSessionStoreRollsBackFailedUnit(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session := createSession(t, store, "ROLL01", 1)
	boom := errors.New("boom")

	err := store.Atomic(ctx, func(ctx context.Context, tx app.Tx) error {
		if _, err := tx.InsertParticipant(ctx, &domain.Participant{SessionID: session.ID, UserID: 7}); err != nil {
			return err
		}
		if err := tx.MarkStarted(ctx, session.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.View(ctx, func(ctx context.Context, tx app.Tx) error {
		got, err := tx.SessionByCode(ctx, "ROLL01", app.LockNone)
		if err != nil {
			return err
		}
		if got.Started {
			t.Fatalf("expected started flag rolled back")
		}
		count, err := tx.CountParticipants(ctx, session.ID)
		if err != nil {
			return err
		}
		if count != 0 {
			t.Fatalf("expected participant insert rolled back, got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSessionStoreParticipantUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session := createSession(t, store, "UNIQ01", 1)

	for i, want := range []bool{true, false} {
		err := store.Atomic(ctx, func(ctx context.Context, tx app.Tx) error {
			inserted, err := tx.InsertParticipant(ctx, &domain.Participant{SessionID: session.ID, UserID: 5})
			if err != nil {
				return err
			}
			if inserted != want {
				t.Fatalf("insert %d: expected inserted=%v", i, want)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
}

func TestSessionStoreSingleUnreadInvite(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session := createSession(t, store, "INV001", 1)

	insert := func() bool {
		var inserted bool
		err := store.Atomic(ctx, func(ctx context.Context, tx app.Tx) error {
			var err error
			inserted, err = tx.InsertInvite(ctx, &domain.Invite{SessionID: session.ID, SenderUserID: 1, RecipientUserID: 2})
			return err
		})
		if err != nil {
			t.Fatalf("insert invite: %v", err)
		}
		return inserted
	}

	if !insert() {
		t.Fatalf("expected first invite inserted")
	}
	if insert() {
		t.Fatalf("expected second unread invite rejected")
	}

	err := store.Atomic(ctx, func(ctx context.Context, tx app.Tx) error {
		n, err := tx.ResolveInvites(ctx, session.ID, 2)
		if n != 1 {
			t.Fatalf("expected one invite resolved, got %d", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !insert() {
		t.Fatalf("expected a new invite once the previous one was read")
	}
	if got := store.InviteCount("INV001", 2); got != 2 {
		t.Fatalf("expected 2 invite rows, got %d", got)
	}
}

func TestSessionStoreViewIsReadOnly(t *testing.T) {
	store := NewSessionStore()
	err := store.View(context.Background(), func(ctx context.Context, tx app.Tx) error {
		return tx.CreateSession(ctx, &domain.Session{Code: "READ01", NumTeams: 1})
	})
	if err == nil {
		t.Fatalf("expected write in view to fail")
	}
}

func createSession(t *testing.T, store *SessionStore, code string, teams int) domain.Session {
	t.Helper()
	session := domain.Session{Code: code, QuizID: 1, HostUserID: 1, NumTeams: teams, CreatedAt: time.Now()}
	err := store.Atomic(context.Background(), func(ctx context.Context, tx app.Tx) error {
		return tx.CreateSession(ctx, &session)
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}
