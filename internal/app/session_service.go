package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

// Settings tunes session behaviour.
type Settings struct {
	// CodeAttempts bounds how many candidate codes are tried before giving up.
	CodeAttempts int
	// MaxTeams caps the team count of a new session; 0 disables the cap.
	MaxTeams int
	// RequireStartedForScores rejects score submissions while the session is in the lobby.
	RequireStartedForScores bool
	// NotifyTimeout bounds each background notification dispatch.
	NotifyTimeout time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		CodeAttempts:  32,
		MaxTeams:      64,
		NotifyTimeout: 5 * time.Second,
	}
}

// Option customizes a SessionService.
type Option func(*SessionService)

func WithSettings(settings Settings) Option {
	return func(s *SessionService) { s.settings = settings }
}

func WithNotifier(n Notifier) Option {
	return func(s *SessionService) { s.notifier = n }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *SessionService) { s.events = p }
}

func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *SessionService) { s.codes = g }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *SessionService) { s.log = log }
}

// SessionService contains the live session use cases: hosting, joining, starting, scoring.
type SessionService struct {
	store    Store
	quizzes  QuizRepository
	users    UserDirectory
	notifier Notifier
	events   EventPublisher
	codes    CodeGenerator
	settings Settings
	now      func() time.Time
	log      *logrus.Entry
	inflight sync.WaitGroup
}

func NewSessionService(store Store, quizzes QuizRepository, users UserDirectory, opts ...Option) *SessionService {
	s := &SessionService{
		store:    store,
		quizzes:  quizzes,
		users:    users,
		notifier: noopNotifier{},
		events:   noopPublisher{},
		codes:    NewCodeGenerator(),
		settings: DefaultSettings(),
		now:      time.Now,
		log:      logrus.WithField("component", "session_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings.CodeAttempts <= 0 {
		s.settings.CodeAttempts = DefaultSettings().CodeAttempts
	}
	if s.settings.NotifyTimeout <= 0 {
		s.settings.NotifyTimeout = DefaultSettings().NotifyTimeout
	}
	return s
}

// CreateSession hosts a new session of quizID. Invalid team counts fall back to individual mode.
func (s *SessionService) CreateSession(ctx context.Context, hostID, quizID int64, numTeams string) (domain.SessionView, error) {
	log := s.log.WithFields(logrus.Fields{"host_id": hostID, "quiz_id": quizID})

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionView{}, s.fail(log, "load quiz", err)
	}
	if len(quiz.Questions) == 0 {
		// Empty quizzes stay uncached: questions may be added at any moment.
		if err := s.quizzes.Invalidate(ctx, quizID); err != nil {
			log.WithError(err).Warn("Failed to invalidate cached quiz")
		}
		return domain.SessionView{}, domain.ErrQuizEmpty
	}

	teams, ok := domain.ParseNumTeams(numTeams)
	if !ok {
		log.WithField("num_teams", numTeams).Warn("Invalid team count, falling back to individual mode")
	}
	if s.settings.MaxTeams > 0 && teams > s.settings.MaxTeams {
		log.WithField("num_teams", teams).Warnf("Team count capped at %d", s.settings.MaxTeams)
		teams = s.settings.MaxTeams
	}

	for attempt := 1; attempt <= s.settings.CodeAttempts; attempt++ {
		code, err := s.codes.NextCode()
		if err != nil {
			return domain.SessionView{}, s.fail(log, "generate session code", err)
		}
		session := domain.Session{
			Code:       code,
			QuizID:     quiz.ID,
			HostUserID: hostID,
			NumTeams:   teams,
			CreatedAt:  s.now().UTC(),
		}
		err = s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
			taken, err := tx.CodeExists(ctx, code)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrCodeTaken
			}
			return tx.CreateSession(ctx, &session)
		})
		if errors.Is(err, domain.ErrCodeTaken) {
			log.WithField("code", code).Warnf("Session code already exists, retrying (attempt %d)", attempt)
			continue
		}
		if err != nil {
			return domain.SessionView{}, s.fail(log, "create session", err)
		}

		log.WithFields(logrus.Fields{"code": code, "num_teams": teams}).Info("Session created")
		names := s.usernames(ctx, []int64{hostID})
		return sessionView(session, quiz.Name, names[hostID], 0), nil
	}

	log.Errorf("Failed to allocate a unique session code after %d attempts", s.settings.CodeAttempts)
	return domain.SessionView{}, domain.ErrCodeSpaceExhausted
}

// InviteToSession offers recipientID a seat in the session. Soft outcomes are reported in the result.
func (s *SessionService) InviteToSession(ctx context.Context, hostID int64, code string, recipientID int64) (domain.InviteResult, error) {
	code = normalizeCode(code)
	log := s.log.WithFields(logrus.Fields{"host_id": hostID, "code": code, "recipient_id": recipientID})

	var (
		result  domain.InviteResult
		session domain.Session
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		// Exclusive so a concurrent join by the recipient cannot slip between the membership
		// check and the invite insert.
		session, err = loadSession(ctx, tx, code, LockExclusive)
		if err != nil {
			return err
		}
		if session.HostUserID != hostID {
			return domain.ErrForbidden
		}
		if session.Started {
			return domain.ErrAlreadyStarted
		}

		recipient, err := s.users.LookupUser(ctx, recipientID)
		if err != nil {
			return err
		}

		_, err = tx.Participant(ctx, session.ID, recipientID)
		switch {
		case err == nil:
			result = domain.InviteResult{Status: domain.InviteAlreadyJoined, Message: "User has already joined this session"}
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if !recipient.NotificationsEnabled {
			result = domain.InviteResult{Status: domain.InviteNotSent, Message: "User does not accept invitations"}
			return nil
		}

		invite := domain.Invite{
			SessionID:       session.ID,
			SenderUserID:    hostID,
			RecipientUserID: recipientID,
			CreatedAt:       s.now().UTC(),
		}
		inserted, err := tx.InsertInvite(ctx, &invite)
		if err != nil {
			return err
		}
		if !inserted {
			result = domain.InviteResult{Status: domain.InviteAlreadySent, Message: "Invitation already sent"}
			return nil
		}
		result = domain.InviteResult{Status: domain.InviteSent, Message: "Invitation sent", InviteID: invite.ID}
		return nil
	})
	if err != nil {
		return domain.InviteResult{}, s.fail(log, "invite to session", err)
	}

	log.WithField("status", result.Status).Info("Invite processed")
	if result.Status == domain.InviteSent {
		s.dispatchInvite(ctx, session, hostID, recipientID)
	}
	return result, nil
}

// StartSession moves the session from the lobby into play. It is irreversible.
func (s *SessionService) StartSession(ctx context.Context, hostID int64, code string) error {
	code = normalizeCode(code)
	log := s.log.WithFields(logrus.Fields{"host_id": hostID, "code": code})

	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, code, LockExclusive)
		if err != nil {
			return err
		}
		if session.HostUserID != hostID {
			return domain.ErrForbidden
		}
		if session.Started {
			return domain.ErrAlreadyStarted
		}
		count, err := tx.CountParticipants(ctx, session.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNoParticipants
		}
		return tx.MarkStarted(ctx, session.ID)
	})
	if err != nil {
		return s.fail(log, "start session", err)
	}

	log.Info("Session started")
	s.publish(ctx, domain.SessionEvent{Type: domain.EventSessionStarted, Code: code})
	return nil
}

// DeleteSession removes a session with its participants and invites. Host only.
func (s *SessionService) DeleteSession(ctx context.Context, hostID int64, code string) error {
	code = normalizeCode(code)
	log := s.log.WithFields(logrus.Fields{"host_id": hostID, "code": code})

	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, code, LockExclusive)
		if err != nil {
			return err
		}
		if session.HostUserID != hostID {
			return domain.ErrForbidden
		}
		return tx.DeleteSession(ctx, session.ID)
	})
	if err != nil {
		return s.fail(log, "delete session", err)
	}

	log.Info("Session deleted")
	s.publish(ctx, domain.SessionEvent{Type: domain.EventSessionDeleted, Code: code})
	return nil
}

// Join registers userID in the session or moves them to another team. Repeated calls are idempotent.
func (s *SessionService) Join(ctx context.Context, userID int64, code, team string) (domain.JoinResult, error) {
	code = normalizeCode(code)
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "code": code})

	var (
		action      domain.JoinAction
		participant domain.Participant
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, code, LockShared)
		if err != nil {
			return err
		}
		if session.Started {
			return domain.ErrAlreadyStarted
		}
		effective, err := effectiveTeam(session, team)
		if err != nil {
			return err
		}

		participant, err = tx.Participant(ctx, session.ID, userID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			participant = domain.Participant{
				SessionID:  session.ID,
				UserID:     userID,
				TeamNumber: effective,
				JoinedAt:   s.now().UTC(),
			}
			inserted, err := tx.InsertParticipant(ctx, &participant)
			if err != nil {
				return err
			}
			if inserted {
				action = domain.JoinActionJoined
				break
			}
			// A concurrent join by the same user won the insert; continue as an update.
			if participant, err = tx.Participant(ctx, session.ID, userID); err != nil {
				return err
			}
			action, err = switchTeam(ctx, tx, &participant, effective)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			action, err = switchTeam(ctx, tx, &participant, effective)
			if err != nil {
				return err
			}
		}

		_, err = tx.ResolveInvites(ctx, session.ID, userID)
		return err
	})
	if err != nil {
		return domain.JoinResult{}, s.fail(log, "join session", err)
	}

	log.WithField("action", action).Info("Join processed")
	switch action {
	case domain.JoinActionJoined:
		s.publish(ctx, domain.SessionEvent{Type: domain.EventParticipantJoined, Code: code, UserID: userID, TeamNumber: participant.TeamNumber})
	case domain.JoinActionSwitchedTeam:
		s.publish(ctx, domain.SessionEvent{Type: domain.EventTeamSwitched, Code: code, UserID: userID, TeamNumber: participant.TeamNumber})
	}

	names := s.usernames(ctx, []int64{userID})
	return domain.JoinResult{
		Action:      action,
		Message:     joinMessage(action, participant.TeamNumber),
		Participant: participantView(participant, names),
	}, nil
}

// SubmitScore overwrites the caller's score in the session.
func (s *SessionService) SubmitScore(ctx context.Context, userID int64, code, score string) (float64, error) {
	code = normalizeCode(code)
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "code": code})

	var value float64
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, code, LockShared)
		if err != nil {
			return err
		}
		participant, err := tx.Participant(ctx, session.ID, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotAParticipant
		}
		if err != nil {
			return err
		}
		if s.settings.RequireStartedForScores && !session.Started {
			return domain.ErrNotStarted
		}
		value, err = domain.ParseScore(score)
		if err != nil {
			return err
		}
		return tx.UpdateScore(ctx, participant.ID, value)
	})
	if err != nil {
		return 0, s.fail(log, "submit score", err)
	}

	log.WithField("score", value).Info("Score submitted")
	s.publish(ctx, domain.SessionEvent{Type: domain.EventScoreSubmitted, Code: code, UserID: userID, Score: &value})
	return value, nil
}

// GetSession returns the public view of a session.
func (s *SessionService) GetSession(ctx context.Context, code string) (domain.SessionView, error) {
	code = normalizeCode(code)
	log := s.log.WithField("code", code)

	var (
		session domain.Session
		count   int
	)
	err := s.view(ctx, log, func(ctx context.Context, tx Tx) error {
		var err error
		if session, err = loadSession(ctx, tx, code, LockNone); err != nil {
			return err
		}
		count, err = tx.CountParticipants(ctx, session.ID)
		return err
	})
	if err != nil {
		return domain.SessionView{}, s.fail(log, "get session", err)
	}

	names := s.usernames(ctx, []int64{session.HostUserID})
	return sessionView(session, s.quizName(ctx, session.QuizID), names[session.HostUserID], count), nil
}

// ListParticipants returns the roster of a session in join order.
func (s *SessionService) ListParticipants(ctx context.Context, code string) ([]domain.ParticipantView, error) {
	code = normalizeCode(code)
	log := s.log.WithField("code", code)

	_, participants, err := s.loadRoster(ctx, log, code)
	if err != nil {
		return nil, s.fail(log, "list participants", err)
	}

	names := s.usernames(ctx, userIDs(participants))
	views := make([]domain.ParticipantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, participantView(p, names))
	}
	return views, nil
}

// GetResults computes the individual and, in team mode, team leaderboards.
func (s *SessionService) GetResults(ctx context.Context, code string) (domain.Results, error) {
	code = normalizeCode(code)
	log := s.log.WithField("code", code)

	session, participants, err := s.loadRoster(ctx, log, code)
	if err != nil {
		return domain.Results{}, s.fail(log, "get results", err)
	}

	names := s.usernames(ctx, userIDs(participants))
	return domain.Results{
		Code:              session.Code,
		IsTeamMode:        session.IsTeamMode(),
		IndividualResults: rankIndividuals(participants, names),
		TeamResults:       rankTeams(session.NumTeams, participants, names),
	}, nil
}

// ListInvitable lists the users the host can still invite: everyone accepting invitations who is
// neither the host, a participant, nor holding an unread invite to the session.
func (s *SessionService) ListInvitable(ctx context.Context, hostID int64, code string) ([]domain.InvitableUser, error) {
	code = normalizeCode(code)
	log := s.log.WithFields(logrus.Fields{"host_id": hostID, "code": code})

	excluded := map[int64]bool{hostID: true}
	err := s.view(ctx, log, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, code, LockNone)
		if err != nil {
			return err
		}
		if session.HostUserID != hostID {
			return domain.ErrForbidden
		}
		if session.Started {
			return domain.ErrAlreadyStarted
		}
		participants, err := tx.Participants(ctx, session.ID)
		if err != nil {
			return err
		}
		for _, p := range participants {
			excluded[p.UserID] = true
		}
		invitees, err := tx.PendingInvitees(ctx, session.ID)
		if err != nil {
			return err
		}
		for _, id := range invitees {
			excluded[id] = true
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(log, "list invitable users", err)
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, s.fail(log, "list users", err)
	}
	out := make([]domain.InvitableUser, 0, len(users))
	for _, u := range users {
		if excluded[u.ID] || !u.NotificationsEnabled {
			continue
		}
		out = append(out, domain.InvitableUser{UserID: u.ID, Username: u.Username})
	}
	return out, nil
}

// ListInvites returns the caller's unread invites.
func (s *SessionService) ListInvites(ctx context.Context, userID int64) ([]domain.InviteView, error) {
	log := s.log.WithField("user_id", userID)

	var pending []PendingInvite
	err := s.view(ctx, log, func(ctx context.Context, tx Tx) error {
		var err error
		pending, err = tx.UnreadInvites(ctx, userID)
		return err
	})
	if err != nil {
		return nil, s.fail(log, "list invites", err)
	}

	senders := make([]int64, 0, len(pending))
	for _, p := range pending {
		senders = append(senders, p.Invite.SenderUserID)
	}
	names := s.usernames(ctx, senders)

	views := make([]domain.InviteView, 0, len(pending))
	for _, p := range pending {
		views = append(views, domain.InviteView{
			ID:             p.Invite.ID,
			SessionCode:    p.Session.Code,
			QuizID:         p.Session.QuizID,
			QuizName:       s.quizName(ctx, p.Session.QuizID),
			SenderID:       p.Invite.SenderUserID,
			SenderUsername: names[p.Invite.SenderUserID],
			CreatedAt:      p.Invite.CreatedAt,
		})
	}
	return views, nil
}

// AcknowledgeInvite marks one of the caller's invites as read.
func (s *SessionService) AcknowledgeInvite(ctx context.Context, userID, inviteID int64) error {
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "invite_id": inviteID})

	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		found, err := tx.MarkInviteRead(ctx, inviteID, userID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrInviteNotFound
		}
		return nil
	})
	if err != nil {
		return s.fail(log, "acknowledge invite", err)
	}
	return nil
}

// Drain waits for in-flight notification dispatches. Call it during shutdown.
func (s *SessionService) Drain() {
	s.inflight.Wait()
}

func (s *SessionService) loadRoster(ctx context.Context, log *logrus.Entry, code string) (domain.Session, []domain.Participant, error) {
	var (
		session      domain.Session
		participants []domain.Participant
	)
	err := s.view(ctx, log, func(ctx context.Context, tx Tx) error {
		var err error
		if session, err = loadSession(ctx, tx, code, LockNone); err != nil {
			return err
		}
		participants, err = tx.Participants(ctx, session.ID)
		return err
	})
	return session, participants, err
}

// view runs a read, retrying once when the store reports a transient failure.
func (s *SessionService) view(ctx context.Context, log *logrus.Entry, fn func(ctx context.Context, tx Tx) error) error {
	err := s.store.View(ctx, fn)
	if errors.Is(err, domain.ErrUnavailable) {
		log.WithError(err).Warn("Store unavailable, retrying read once")
		err = s.store.View(ctx, fn)
	}
	return err
}

// fail passes domain errors through and logs anything else as internal.
func (s *SessionService) fail(log *logrus.Entry, op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindInternal {
		log.WithError(err).Debugf("%s rejected", op)
		return err
	}
	log.WithError(err).Errorf("%s failed", op)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SessionService) publish(ctx context.Context, ev domain.SessionEvent) {
	ev.At = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"code": ev.Code, "event": ev.Type}).Warn("Failed to publish session event")
	}
}

// dispatchInvite notifies the recipient in the background; the caller never waits for the sink.
func (s *SessionService) dispatchInvite(ctx context.Context, session domain.Session, senderID, recipientID int64) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.NotifyTimeout)
		defer cancel()

		quizName := s.quizName(ctx, session.QuizID)
		sender := s.usernames(ctx, []int64{senderID})[senderID]
		n := domain.Notification{
			Kind:        domain.NotificationSessionInvite,
			RecipientID: recipientID,
			SenderID:    senderID,
			SessionCode: session.Code,
			QuizName:    quizName,
			Message:     inviteMessage(sender, quizName, session.Code),
			CreatedAt:   s.now().UTC(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"code": session.Code, "recipient_id": recipientID}).
				Warn("Failed to deliver invite notification")
		}
	}()
}

func (s *SessionService) quizName(ctx context.Context, quizID int64) string {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		s.log.WithError(err).WithField("quiz_id", quizID).Debug("Quiz name unavailable")
		return ""
	}
	return quiz.Name
}

func (s *SessionService) usernames(ctx context.Context, ids []int64) map[int64]string {
	if len(ids) == 0 {
		return map[int64]string{}
	}
	names, err := s.users.Usernames(ctx, ids)
	if err != nil {
		s.log.WithError(err).Warn("Failed to resolve usernames")
		return map[int64]string{}
	}
	return names
}

func loadSession(ctx context.Context, tx Tx, code string, lock LockMode) (domain.Session, error) {
	session, err := tx.SessionByCode(ctx, code, lock)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, err
}

// effectiveTeam validates a requested team against the session mode. Individual mode ignores it.
func effectiveTeam(session domain.Session, raw string) (*int, error) {
	if !session.IsTeamMode() {
		return nil, nil
	}
	team, err := domain.ParseTeamNumber(raw)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("%w: a team number is required", domain.ErrInvalidTeam)
	}
	if *team < 1 || *team > session.NumTeams {
		return nil, fmt.Errorf("%w: team must be between 1 and %d", domain.ErrInvalidTeam, session.NumTeams)
	}
	return team, nil
}

func switchTeam(ctx context.Context, tx Tx, p *domain.Participant, team *int) (domain.JoinAction, error) {
	if p.SameTeam(team) {
		return domain.JoinActionNoChange, nil
	}
	if err := tx.UpdateTeam(ctx, p.ID, team); err != nil {
		return "", err
	}
	p.TeamNumber = team
	return domain.JoinActionSwitchedTeam, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func joinMessage(action domain.JoinAction, team *int) string {
	switch action {
	case domain.JoinActionJoined:
		if team != nil {
			return fmt.Sprintf("Joined team %d", *team)
		}
		return "Joined session"
	case domain.JoinActionSwitchedTeam:
		if team != nil {
			return fmt.Sprintf("Switched to team %d", *team)
		}
		return "Switched team"
	default:
		return "Already joined"
	}
}

func inviteMessage(sender, quizName, code string) string {
	if sender == "" {
		sender = "Someone"
	}
	if quizName != "" {
		return fmt.Sprintf("%s invited you to join the quiz '%s'.", sender, quizName)
	}
	return fmt.Sprintf("%s invited you to join a session (Code: %s).", sender, code)
}

func sessionView(s domain.Session, quizName, hostName string, participants int) domain.SessionView {
	return domain.SessionView{
		Code:             s.Code,
		QuizID:           s.QuizID,
		QuizName:         quizName,
		HostID:           s.HostUserID,
		HostUsername:     hostName,
		NumTeams:         s.NumTeams,
		IsTeamMode:       s.IsTeamMode(),
		Started:          s.Started,
		CreatedAt:        s.CreatedAt,
		ParticipantCount: participants,
	}
}

func participantView(p domain.Participant, names map[int64]string) domain.ParticipantView {
	return domain.ParticipantView{
		UserID:     p.UserID,
		Username:   names[p.UserID],
		TeamNumber: p.TeamNumber,
		Score:      p.Score,
	}
}

func userIDs(participants []domain.Participant) []int64 {
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
