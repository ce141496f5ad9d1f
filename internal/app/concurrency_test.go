package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

// lockRecordingStore records the lock mode of every session lookup made inside Atomic.
type lockRecordingStore struct {
	app.Store

	mu    sync.Mutex
	locks []app.LockMode
}

func (s *lockRecordingStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.Store.Atomic(ctx, func(ctx context.Context, tx app.Tx) error {
		return fn(ctx, lockRecordingTx{Tx: tx, store: s})
	})
}

func (s *lockRecordingStore) reset() {
	s.mu.Lock()
	s.locks = nil
	s.mu.Unlock()
}

func (s *lockRecordingStore) recorded() []app.LockMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]app.LockMode(nil), s.locks...)
}

type lockRecordingTx struct {
	app.Tx
	store *lockRecordingStore
}

func (t lockRecordingTx) SessionByCode(ctx context.Context, code string, lock app.LockMode) (domain.Session, error) {
	t.store.mu.Lock()
	t.store.locks = append(t.store.locks, lock)
	t.store.mu.Unlock()
	return t.Tx.SessionByCode(ctx, code, lock)
}

func TestInviteLocksSessionAgainstJoins(t *testing.T) {
	ctx := context.Background()
	store := &lockRecordingStore{Store: memory.NewSessionStore()}
	users := memory.NewUserDirectory(
		domain.User{ID: hostID, Username: "host", NotificationsEnabled: true},
		domain.User{ID: aliceID, Username: "alice", NotificationsEnabled: true},
	)
	quizzes := memory.NewStaticQuizLoader(domain.Quiz{ID: 10, Name: "Capitals", Questions: []domain.Question{
		{ID: 1, Text: "Capital of Spain?", Payload: domain.TextInput{CorrectAnswer: "Madrid"}},
	}})
	svc := app.NewSessionService(store, memory.NewQuizRepository(quizzes, time.Minute), users,
		app.WithNotifier(memory.NewNotifier()))

	session, err := svc.CreateSession(ctx, hostID, 10, "")
	require.NoError(t, err)

	store.reset()
	_, err = svc.InviteToSession(ctx, hostID, session.Code, aliceID)
	require.NoError(t, err)
	assert.Equal(t, []app.LockMode{app.LockExclusive}, store.recorded())

	store.reset()
	_, err = svc.Join(ctx, aliceID, session.Code, "")
	require.NoError(t, err)
	assert.Equal(t, []app.LockMode{app.LockShared}, store.recorded())
	svc.Drain()
}

func TestInviteRacingJoinLeavesNoUnreadInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for round := 0; round < 20; round++ {
		session, err := f.svc.CreateSession(ctx, hostID, 10, "")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			inviteRes domain.InviteResult
			inviteErr error
			joinErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			inviteRes, inviteErr = f.svc.InviteToSession(ctx, hostID, session.Code, aliceID)
		}()
		go func() {
			defer wg.Done()
			_, joinErr = f.svc.Join(ctx, aliceID, session.Code, "")
		}()
		wg.Wait()

		require.NoError(t, inviteErr)
		require.NoError(t, joinErr)
		assert.Contains(t, []domain.InviteStatus{domain.InviteSent, domain.InviteAlreadyJoined}, inviteRes.Status)
		assert.Zero(t, f.store.UnreadInviteCount(session.Code, aliceID), "round %d", round)
	}
	f.svc.Drain()
}

func TestJoinsRacingStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := f.svc.CreateSession(ctx, hostID, 10, "")
	require.NoError(t, err)

	const joiners = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		joined   int
		rejected int
		startErr error
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := f.svc.Join(ctx, userID, session.Code, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case assert.ErrorIs(t, err, domain.ErrAlreadyStarted):
				rejected++
			}
		}(int64(100 + i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		startErr = f.svc.StartSession(ctx, hostID, session.Code)
	}()
	wg.Wait()

	view, err := f.svc.GetSession(ctx, session.Code)
	require.NoError(t, err)
	assert.Equal(t, joined, view.ParticipantCount)
	assert.Equal(t, joiners, joined+rejected)

	if startErr != nil {
		// Start ran first against an empty lobby; every join landed afterwards.
		assert.ErrorIs(t, startErr, domain.ErrNoParticipants)
		assert.False(t, view.Started)
		assert.Equal(t, joiners, joined)
		return
	}
	assert.True(t, view.Started)
	assert.GreaterOrEqual(t, joined, 1)

	_, err = f.svc.Join(ctx, 999, session.Code, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
	view, err = f.svc.GetSession(ctx, session.Code)
	require.NoError(t, err)
	assert.Equal(t, joined, view.ParticipantCount)
}
