package app

import (
	"context"

	"quiz-session-service/internal/domain"
)

// LockMode selects how a session row is locked inside a transaction.
type LockMode int

const (
	LockNone LockMode = iota
	// LockShared blocks a concurrent exclusive lock (start, delete) but not other shared locks (joins).
	LockShared
	// LockExclusive serializes against every other lock on the same session.
	LockExclusive
)

// Store abstracts how sessions, participants and invites are persisted (in-memory, Postgres).
type Store interface {
	// Atomic runs fn as one unit: everything fn wrote is committed, or nothing is when fn fails.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the record-level API available inside Store.Atomic and Store.View.
// Lookups return domain.ErrNotFound for missing rows.
type Tx interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	// CreateSession assigns s.ID. It returns domain.ErrCodeTaken when the code is not unique.
	CreateSession(ctx context.Context, s *domain.Session) error
	SessionByCode(ctx context.Context, code string, lock LockMode) (domain.Session, error)
	MarkStarted(ctx context.Context, sessionID int64) error
	// DeleteSession removes the session with its participants and invites.
	DeleteSession(ctx context.Context, sessionID int64) error

	Participant(ctx context.Context, sessionID, userID int64) (domain.Participant, error)
	// InsertParticipant stores p unless the (SessionID, UserID) pair already exists.
	InsertParticipant(ctx context.Context, p *domain.Participant) (inserted bool, err error)
	UpdateTeam(ctx context.Context, participantID int64, team *int) error
	UpdateScore(ctx context.Context, participantID int64, score float64) error
	// Participants returns the members of a session in join order.
	Participants(ctx context.Context, sessionID int64) ([]domain.Participant, error)
	CountParticipants(ctx context.Context, sessionID int64) (int, error)

	// InsertInvite stores inv unless an unread invite for the same recipient and session exists.
	InsertInvite(ctx context.Context, inv *domain.Invite) (inserted bool, err error)
	// ResolveInvites marks every unread invite of recipientID for the session as read.
	ResolveInvites(ctx context.Context, sessionID, recipientID int64) (int, error)
	// PendingInvitees returns the recipients holding an unread invite to the session.
	PendingInvitees(ctx context.Context, sessionID int64) ([]int64, error)
	// UnreadInvites lists the recipient's unread invites, newest first.
	UnreadInvites(ctx context.Context, recipientID int64) ([]PendingInvite, error)
	// MarkInviteRead reports false when the invite does not exist or belongs to another recipient.
	MarkInviteRead(ctx context.Context, inviteID, recipientID int64) (bool, error)
}

// PendingInvite pairs an invite with the session it points at.
type PendingInvite struct {
	Invite  domain.Invite
	Session domain.Session
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	// Invalidate drops any cached copy so the next GetQuiz reads the catalog.
	Invalidate(ctx context.Context, quizID int64) error
}

// UserDirectory reads user records owned by the account service.
type UserDirectory interface {
	// LookupUser returns domain.ErrUserNotFound for unknown ids.
	LookupUser(ctx context.Context, userID int64) (domain.User, error)
	// Usernames resolves display names; unknown ids are absent from the result.
	Usernames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Notifier hands notifications to the external notification sink.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventPublisher fans session events out to watchers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.SessionEvent) error
}

// EventSubscriber delivers the events of one session.
// The caller must invoke the returned cancel function to avoid leaks.
type EventSubscriber interface {
	Subscribe(ctx context.Context, code string) (<-chan domain.SessionEvent, func(), error)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Notification) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.SessionEvent) error { return nil }
