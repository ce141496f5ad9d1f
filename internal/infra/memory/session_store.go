package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

var errReadOnly = errors.New("write attempted in read-only view")

type memberKey struct {
	sessionID int64
	userID    int64
}

// SessionStore is an in-memory implementation of app.Store.
// Atomic units are serialized by a single lock and undone on failure, so lock modes are implied.
type SessionStore struct {
	mu sync.RWMutex

	lastSessionID     int64
	lastParticipantID int64
	lastInviteID      int64

	sessions     map[int64]*domain.Session
	codes        map[string]int64
	participants map[int64]*domain.Participant
	members      map[memberKey]int64
	invites      map[int64]*domain.Invite
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:     make(map[int64]*domain.Session),
		codes:        make(map[string]int64),
		participants: make(map[int64]*domain.Participant),
		members:      make(map[memberKey]int64),
		invites:      make(map[int64]*domain.Invite),
	}
}

func (s *SessionStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *SessionStore) View(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &storeTx{s: s, readOnly: true})
}

// storeTx operates on the store maps directly and journals an undo step for every write.
type storeTx struct {
	s        *SessionStore
	readOnly bool
	undo     []func()
}

func (t *storeTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *storeTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *storeTx) CodeExists(_ context.Context, code string) (bool, error) {
	_, ok := t.s.codes[code]
	return ok, nil
}

func (t *storeTx) CreateSession(_ context.Context, session *domain.Session) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.s.codes[session.Code]; ok {
		return domain.ErrCodeTaken
	}
	t.s.lastSessionID++
	session.ID = t.s.lastSessionID
	stored := *session
	t.s.sessions[stored.ID] = &stored
	t.s.codes[stored.Code] = stored.ID
	t.undo = append(t.undo, func() {
		delete(t.s.sessions, stored.ID)
		delete(t.s.codes, stored.Code)
	})
	return nil
}

func (t *storeTx) SessionByCode(_ context.Context, code string, _ app.LockMode) (domain.Session, error) {
	id, ok := t.s.codes[code]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return *t.s.sessions[id], nil
}

func (t *storeTx) MarkStarted(_ context.Context, sessionID int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	session, ok := t.s.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	prev := session.Started
	session.Started = true
	t.undo = append(t.undo, func() { session.Started = prev })
	return nil
}

func (t *storeTx) DeleteSession(_ context.Context, sessionID int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	session, ok := t.s.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(t.s.sessions, sessionID)
	delete(t.s.codes, session.Code)
	t.undo = append(t.undo, func() {
		t.s.sessions[sessionID] = session
		t.s.codes[session.Code] = sessionID
	})

	for id, p := range t.s.participants {
		if p.SessionID != sessionID {
			continue
		}
		key := memberKey{sessionID: p.SessionID, userID: p.UserID}
		delete(t.s.participants, id)
		delete(t.s.members, key)
		t.undo = append(t.undo, func() {
			t.s.participants[id] = p
			t.s.members[key] = id
		})
	}
	for id, inv := range t.s.invites {
		if inv.SessionID != sessionID {
			continue
		}
		delete(t.s.invites, id)
		t.undo = append(t.undo, func() { t.s.invites[id] = inv })
	}
	return nil
}

func (t *storeTx) Participant(_ context.Context, sessionID, userID int64) (domain.Participant, error) {
	id, ok := t.s.members[memberKey{sessionID: sessionID, userID: userID}]
	if !ok {
		return domain.Participant{}, domain.ErrNotFound
	}
	return copyParticipant(t.s.participants[id]), nil
}

func (t *storeTx) InsertParticipant(_ context.Context, p *domain.Participant) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	key := memberKey{sessionID: p.SessionID, userID: p.UserID}
	if _, ok := t.s.members[key]; ok {
		return false, nil
	}
	t.s.lastParticipantID++
	p.ID = t.s.lastParticipantID
	stored := copyParticipant(p)
	t.s.participants[stored.ID] = &stored
	t.s.members[key] = stored.ID
	t.undo = append(t.undo, func() {
		delete(t.s.participants, stored.ID)
		delete(t.s.members, key)
	})
	return true, nil
}

func (t *storeTx) UpdateTeam(_ context.Context, participantID int64, team *int) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.s.participants[participantID]
	if !ok {
		return domain.ErrNotFound
	}
	prev := p.TeamNumber
	p.TeamNumber = copyInt(team)
	t.undo = append(t.undo, func() { p.TeamNumber = prev })
	return nil
}

func (t *storeTx) UpdateScore(_ context.Context, participantID int64, score float64) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.s.participants[participantID]
	if !ok {
		return domain.ErrNotFound
	}
	prev := p.Score
	p.Score = score
	t.undo = append(t.undo, func() { p.Score = prev })
	return nil
}

func (t *storeTx) Participants(_ context.Context, sessionID int64) ([]domain.Participant, error) {
	out := make([]domain.Participant, 0)
	for _, p := range t.s.participants {
		if p.SessionID == sessionID {
			out = append(out, copyParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *storeTx) CountParticipants(_ context.Context, sessionID int64) (int, error) {
	count := 0
	for _, p := range t.s.participants {
		if p.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (t *storeTx) InsertInvite(_ context.Context, inv *domain.Invite) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	for _, existing := range t.s.invites {
		if !existing.IsRead && existing.SessionID == inv.SessionID && existing.RecipientUserID == inv.RecipientUserID {
			return false, nil
		}
	}
	t.s.lastInviteID++
	inv.ID = t.s.lastInviteID
	stored := *inv
	t.s.invites[stored.ID] = &stored
	t.undo = append(t.undo, func() { delete(t.s.invites, stored.ID) })
	return true, nil
}

func (t *storeTx) ResolveInvites(_ context.Context, sessionID, recipientID int64) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	resolved := 0
	for _, inv := range t.s.invites {
		if inv.IsRead || inv.SessionID != sessionID || inv.RecipientUserID != recipientID {
			continue
		}
		inv.IsRead = true
		t.undo = append(t.undo, func() { inv.IsRead = false })
		resolved++
	}
	return resolved, nil
}

func (t *storeTx) PendingInvitees(_ context.Context, sessionID int64) ([]int64, error) {
	out := make([]int64, 0)
	for _, inv := range t.s.invites {
		if !inv.IsRead && inv.SessionID == sessionID {
			out = append(out, inv.RecipientUserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *storeTx) UnreadInvites(_ context.Context, recipientID int64) ([]app.PendingInvite, error) {
	out := make([]app.PendingInvite, 0)
	for _, inv := range t.s.invites {
		if inv.IsRead || inv.RecipientUserID != recipientID {
			continue
		}
		session, ok := t.s.sessions[inv.SessionID]
		if !ok {
			continue
		}
		out = append(out, app.PendingInvite{Invite: *inv, Session: *session})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Invite.ID > out[j].Invite.ID })
	return out, nil
}

func (t *storeTx) MarkInviteRead(_ context.Context, inviteID, recipientID int64) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	inv, ok := t.s.invites[inviteID]
	if !ok || inv.RecipientUserID != recipientID {
		return false, nil
	}
	prev := inv.IsRead
	inv.IsRead = true
	t.undo = append(t.undo, func() { inv.IsRead = prev })
	return true, nil
}

// InviteCount is test-only; it counts invites of any state for a recipient and session.
func (s *SessionStore) InviteCount(sessionCode string, recipientID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.codes[sessionCode]
	if !ok {
		return 0
	}
	count := 0
	for _, inv := range s.invites {
		if inv.SessionID == sessionID && inv.RecipientUserID == recipientID {
			count++
		}
	}
	return count
}

// UnreadInviteCount is test-only.
func (s *SessionStore) UnreadInviteCount(sessionCode string, recipientID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.codes[sessionCode]
	if !ok {
		return 0
	}
	count := 0
	for _, inv := range s.invites {
		if !inv.IsRead && inv.SessionID == sessionID && inv.RecipientUserID == recipientID {
			count++
		}
	}
	return count
}

func copyParticipant(p *domain.Participant) domain.Participant {
	out := *p
	out.TeamNumber = copyInt(p.TeamNumber)
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
