package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-session-service/internal/domain"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions,alias:qs"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Code       string    `bun:"code,notnull"`
	QuizID     int64     `bun:"quiz_id,notnull"`
	HostUserID int64     `bun:"host_user_id,notnull"`
	NumTeams   int       `bun:"num_teams,notnull"`
	Started    bool      `bun:"started,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

func (r sessionRow) toDomain() domain.Session {
	return domain.Session{
		ID:         r.ID,
		Code:       r.Code,
		QuizID:     r.QuizID,
		HostUserID: r.HostUserID,
		NumTeams:   r.NumTeams,
		Started:    r.Started,
		CreatedAt:  r.CreatedAt,
	}
}

type participantRow struct {
	bun.BaseModel `bun:"table:session_participants,alias:sp"`

	ID         int64     `bun:"id,pk,autoincrement"`
	SessionID  int64     `bun:"session_id,notnull"`
	UserID     int64     `bun:"user_id,notnull"`
	TeamNumber *int      `bun:"team_number"`
	Score      float64   `bun:"score,notnull"`
	JoinedAt   time.Time `bun:"joined_at,notnull"`
}

func (r participantRow) toDomain() domain.Participant {
	return domain.Participant{
		ID:         r.ID,
		SessionID:  r.SessionID,
		UserID:     r.UserID,
		TeamNumber: r.TeamNumber,
		Score:      r.Score,
		JoinedAt:   r.JoinedAt,
	}
}

type inviteRow struct {
	bun.BaseModel `bun:"table:session_invites,alias:si"`

	ID              int64     `bun:"id,pk,autoincrement"`
	SessionID       int64     `bun:"session_id,notnull"`
	SenderUserID    int64     `bun:"sender_user_id,notnull"`
	RecipientUserID int64     `bun:"recipient_user_id,notnull"`
	IsRead          bool      `bun:"is_read,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

func (r inviteRow) toDomain() domain.Invite {
	return domain.Invite{
		ID:              r.ID,
		SessionID:       r.SessionID,
		SenderUserID:    r.SenderUserID,
		RecipientUserID: r.RecipientUserID,
		IsRead:          r.IsRead,
		CreatedAt:       r.CreatedAt,
	}
}
