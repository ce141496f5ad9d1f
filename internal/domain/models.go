package domain

import "time"

// Session is one hosted instance of a quiz, joinable by its code.
type Session struct {
	ID         int64
	Code       string
	QuizID     int64
	HostUserID int64
	NumTeams   int
	Started    bool
	CreatedAt  time.Time
}

// IsTeamMode reports whether participants are split into teams.
func (s Session) IsTeamMode() bool {
	return s.NumTeams > 1
}

// Participant is a user's membership in a session.
type Participant struct {
	ID         int64
	SessionID  int64
	UserID     int64
	TeamNumber *int // nil in individual mode
	Score      float64
	JoinedAt   time.Time
}

// SameTeam reports whether the participant is already assigned to team.
func (p Participant) SameTeam(team *int) bool {
	if p.TeamNumber == nil || team == nil {
		return p.TeamNumber == nil && team == nil
	}
	return *p.TeamNumber == *team
}

// Invite is a pending offer for a user to join a session.
type Invite struct {
	ID              int64
	SessionID       int64
	SenderUserID    int64
	RecipientUserID int64
	IsRead          bool
	CreatedAt       time.Time
}

// User is the slice of the external user record the core reads.
type User struct {
	ID                   int64
	Username             string
	NotificationsEnabled bool
}

// JoinAction describes what a join call did.
type JoinAction string

const (
	JoinActionJoined       JoinAction = "joined"
	JoinActionSwitchedTeam JoinAction = "switched_team"
	JoinActionNoChange     JoinAction = "no_change"
)

// JoinResult is returned by a successful join.
type JoinResult struct {
	Action      JoinAction      `json:"action"`
	Message     string          `json:"message"`
	Participant ParticipantView `json:"participant"`
}

// InviteStatus describes the outcome of an invite call.
type InviteStatus string

const (
	InviteSent          InviteStatus = "sent"
	InviteAlreadyJoined InviteStatus = "already_joined"
	InviteAlreadySent   InviteStatus = "already_sent"
	InviteNotSent       InviteStatus = "not_sent"
)

// InviteResult is returned by InviteToSession. Only InviteSent creates a row.
type InviteResult struct {
	Status   InviteStatus `json:"status"`
	Message  string       `json:"message"`
	InviteID int64        `json:"invite_id,omitempty"`
}

// SessionView is the public projection of a session.
type SessionView struct {
	Code             string    `json:"code"`
	QuizID           int64     `json:"quiz_id"`
	QuizName         string    `json:"quiz_name"`
	HostID           int64     `json:"host_id"`
	HostUsername     string    `json:"host_username"`
	NumTeams         int       `json:"num_teams"`
	IsTeamMode       bool      `json:"is_team_mode"`
	Started          bool      `json:"started"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int       `json:"participant_count"`
}

// ParticipantView is a roster row.
type ParticipantView struct {
	UserID     int64   `json:"user_id"`
	Username   string  `json:"username"`
	TeamNumber *int    `json:"team_number"`
	Score      float64 `json:"score"`
}

// InvitableUser is a user the host can still invite to a session.
type InvitableUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// IndividualResult is one row of the individual leaderboard.
type IndividualResult struct {
	Rank       int     `json:"rank"`
	UserID     int64   `json:"user_id"`
	Username   string  `json:"username"`
	TeamNumber *int    `json:"team_number"`
	Score      float64 `json:"score"`
}

// TeamResult is one row of the team leaderboard.
type TeamResult struct {
	Rank        int      `json:"rank"`
	TeamNumber  int      `json:"team_number"`
	TotalScore  float64  `json:"total_score"`
	MemberCount int      `json:"member_count"`
	Members     []string `json:"members"`
}

// Results is the leaderboard for a session. TeamResults is empty in individual mode.
type Results struct {
	Code              string             `json:"code"`
	IsTeamMode        bool               `json:"is_team_mode"`
	IndividualResults []IndividualResult `json:"individual_results"`
	TeamResults       []TeamResult       `json:"team_results"`
}

// InviteView is an unread invite as shown in the recipient's inbox.
type InviteView struct {
	ID             int64     `json:"id"`
	SessionCode    string    `json:"session_code"`
	QuizID         int64     `json:"quiz_id"`
	QuizName       string    `json:"quiz_name"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationKind tags events sent to the notification sink.
type NotificationKind string

const NotificationSessionInvite NotificationKind = "session_invite"

// Notification is a fire-and-forget message for the external notification sink.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	RecipientID int64            `json:"recipient_id"`
	SenderID    int64            `json:"sender_id"`
	SessionCode string           `json:"session_code"`
	QuizName    string           `json:"quiz_name"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
}

// EventType tags session events published after a state change commits.
type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventTeamSwitched      EventType = "team_switched"
	EventSessionStarted    EventType = "session_started"
	EventScoreSubmitted    EventType = "score_submitted"
	EventSessionDeleted    EventType = "session_deleted"
)

// SessionEvent is a change notification for watchers of a session.
type SessionEvent struct {
	Type       EventType `json:"type"`
	Code       string    `json:"code"`
	UserID     int64     `json:"user_id,omitempty"`
	TeamNumber *int      `json:"team_number,omitempty"`
	Score      *float64  `json:"score,omitempty"`
	At         time.Time `json:"at"`
}
