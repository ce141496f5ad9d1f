package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// SessionStore persists sessions, participants and invites with bun.
// Uniqueness races are settled by the schema: inserts use ON CONFLICT DO NOTHING and
// report whether a row was written.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, storeTx{tx: tx})
	})
	return classify(err)
}

func (s *SessionStore) View(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, storeTx{tx: tx})
	})
	return classify(err)
}

type storeTx struct {
	tx bun.Tx
}

func (t storeTx) CodeExists(ctx context.Context, code string) (bool, error) {
	return t.tx.NewSelect().Model((*sessionRow)(nil)).Where("code = ?", code).Exists(ctx)
}

func (t storeTx) CreateSession(ctx context.Context, session *domain.Session) error {
	row := sessionRow{
		Code:       session.Code,
		QuizID:     session.QuizID,
		HostUserID: session.HostUserID,
		NumTeams:   session.NumTeams,
		Started:    session.Started,
		CreatedAt:  session.CreatedAt,
	}
	res, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (code) DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCodeTaken
	}
	session.ID = row.ID
	return nil
}

func (t storeTx) SessionByCode(ctx context.Context, code string, lock app.LockMode) (domain.Session, error) {
	var row sessionRow
	q := t.tx.NewSelect().Model(&row).Where("code = ?", code)
	switch lock {
	case app.LockShared:
		q = q.For("SHARE")
	case app.LockExclusive:
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return row.toDomain(), nil
}

func (t storeTx) MarkStarted(ctx context.Context, sessionID int64) error {
	_, err := t.tx.NewUpdate().Model((*sessionRow)(nil)).
		Set("started = TRUE").
		Where("id = ?", sessionID).
		Exec(ctx)
	return err
}

// DeleteSession relies on ON DELETE CASCADE for participants and invites.
func (t storeTx) DeleteSession(ctx context.Context, sessionID int64) error {
	res, err := t.tx.NewDelete().Model((*sessionRow)(nil)).Where("id = ?", sessionID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t storeTx) Participant(ctx context.Context, sessionID, userID int64) (domain.Participant, error) {
	var row participantRow
	err := t.tx.NewSelect().Model(&row).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return row.toDomain(), nil
}

func (t storeTx) InsertParticipant(ctx context.Context, p *domain.Participant) (bool, error) {
	row := participantRow{
		SessionID:  p.SessionID,
		UserID:     p.UserID,
		TeamNumber: p.TeamNumber,
		Score:      p.Score,
		JoinedAt:   p.JoinedAt,
	}
	res, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (session_id, user_id) DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	p.ID = row.ID
	return true, nil
}

func (t storeTx) UpdateTeam(ctx context.Context, participantID int64, team *int) error {
	_, err := t.tx.NewUpdate().Model((*participantRow)(nil)).
		Set("team_number = ?", team).
		Where("id = ?", participantID).
		Exec(ctx)
	return err
}

func (t storeTx) UpdateScore(ctx context.Context, participantID int64, score float64) error {
	_, err := t.tx.NewUpdate().Model((*participantRow)(nil)).
		Set("score = ?", score).
		Where("id = ?", participantID).
		Exec(ctx)
	return err
}

func (t storeTx) Participants(ctx context.Context, sessionID int64) ([]domain.Participant, error) {
	var rows []participantRow
	err := t.tx.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (t storeTx) CountParticipants(ctx context.Context, sessionID int64) (int, error) {
	return t.tx.NewSelect().Model((*participantRow)(nil)).Where("session_id = ?", sessionID).Count(ctx)
}

// InsertInvite leans on the partial unique index over unread invites.
func (t storeTx) InsertInvite(ctx context.Context, inv *domain.Invite) (bool, error) {
	row := inviteRow{
		SessionID:       inv.SessionID,
		SenderUserID:    inv.SenderUserID,
		RecipientUserID: inv.RecipientUserID,
		IsRead:          inv.IsRead,
		CreatedAt:       inv.CreatedAt,
	}
	res, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (session_id, recipient_user_id) WHERE NOT is_read DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	inv.ID = row.ID
	return true, nil
}

func (t storeTx) ResolveInvites(ctx context.Context, sessionID, recipientID int64) (int, error) {
	res, err := t.tx.NewUpdate().Model((*inviteRow)(nil)).
		Set("is_read = TRUE").
		Where("session_id = ?", sessionID).
		Where("recipient_user_id = ?", recipientID).
		Where("NOT is_read").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve invites: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (t storeTx) PendingInvitees(ctx context.Context, sessionID int64) ([]int64, error) {
	var ids []int64
	err := t.tx.NewSelect().Model((*inviteRow)(nil)).
		Column("recipient_user_id").
		Where("session_id = ?", sessionID).
		Where("NOT is_read").
		Order("recipient_user_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select pending invitees: %w", err)
	}
	return ids, nil
}

func (t storeTx) UnreadInvites(ctx context.Context, recipientID int64) ([]app.PendingInvite, error) {
	var invites []inviteRow
	err := t.tx.NewSelect().Model(&invites).
		Where("recipient_user_id = ?", recipientID).
		Where("NOT is_read").
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select invites: %w", err)
	}
	out := make([]app.PendingInvite, 0, len(invites))
	if len(invites) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(invites))
	for _, inv := range invites {
		ids = append(ids, inv.SessionID)
	}
	var sessions []sessionRow
	if err := t.tx.NewSelect().Model(&sessions).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select invite sessions: %w", err)
	}
	byID := make(map[int64]sessionRow, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}
	for _, inv := range invites {
		s, ok := byID[inv.SessionID]
		if !ok {
			continue
		}
		out = append(out, app.PendingInvite{Invite: inv.toDomain(), Session: s.toDomain()})
	}
	return out, nil
}

func (t storeTx) MarkInviteRead(ctx context.Context, inviteID, recipientID int64) (bool, error) {
	res, err := t.tx.NewUpdate().Model((*inviteRow)(nil)).
		Set("is_read = TRUE").
		Where("id = ?", inviteID).
		Where("recipient_user_id = ?", recipientID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark invite read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
