package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quiz-session-service/internal/domain"
)

// SessionService is the use-case surface the handlers drive.
type SessionService interface {
	CreateSession(ctx context.Context, hostID, quizID int64, numTeams string) (domain.SessionView, error)
	InviteToSession(ctx context.Context, hostID int64, code string, recipientID int64) (domain.InviteResult, error)
	StartSession(ctx context.Context, hostID int64, code string) error
	DeleteSession(ctx context.Context, hostID int64, code string) error
	Join(ctx context.Context, userID int64, code, team string) (domain.JoinResult, error)
	SubmitScore(ctx context.Context, userID int64, code, score string) (float64, error)
	GetSession(ctx context.Context, code string) (domain.SessionView, error)
	ListParticipants(ctx context.Context, code string) ([]domain.ParticipantView, error)
	GetResults(ctx context.Context, code string) (domain.Results, error)
	ListInvites(ctx context.Context, userID int64) ([]domain.InviteView, error)
	ListInvitable(ctx context.Context, hostID int64, code string) ([]domain.InvitableUser, error)
	AcknowledgeInvite(ctx context.Context, userID, inviteID int64) error
}

type SessionHandler struct {
	sessions SessionService
}

func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Numeric fields are kept raw so that "2", 2 and "" are all accepted and coerced by the service.
type createSessionRequest struct {
	QuizID   json.RawMessage `json:"quiz_id"`
	NumTeams json.RawMessage `json:"num_teams"`
}

type inviteRequest struct {
	RecipientID json.RawMessage `json:"recipient_id"`
}

type joinRequest struct {
	TeamNumber json.RawMessage `json:"team_number"`
}

type submitScoreRequest struct {
	Score json.RawMessage `json:"score"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type joinResponse struct {
	Message     string                 `json:"message"`
	Action      domain.JoinAction      `json:"action"`
	Participant domain.ParticipantView `json:"participant"`
}

type scoreResponse struct {
	Message string  `json:"message"`
	Score   float64 `json:"score"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleServiceError(c, err)
		return
	}
	quizID, err := requiredID(req.QuizID, "quiz_id")
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	view, err := h.sessions.CreateSession(c.Request.Context(), currentUser(c), quizID, rawString(req.NumTeams))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	view, err := h.sessions.GetSession(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.DeleteSession(c.Request.Context(), currentUser(c), c.Param("code")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleServiceError(c, err)
		return
	}
	recipientID, err := requiredID(req.RecipientID, "recipient_id")
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	res, err := h.sessions.InviteToSession(c.Request.Context(), currentUser(c), c.Param("code"), recipientID)
	if err != nil {
		HandleServiceError(c, err, lobbyClosed)
		return
	}
	status := http.StatusOK
	if res.Status == domain.InviteSent {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *SessionHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleServiceError(c, err)
		return
	}

	res, err := h.sessions.Join(c.Request.Context(), currentUser(c), c.Param("code"), rawString(req.TeamNumber))
	if err != nil {
		HandleServiceError(c, err, lobbyClosed)
		return
	}
	c.JSON(http.StatusOK, joinResponse{Message: res.Message, Action: res.Action, Participant: res.Participant})
}

func (h *SessionHandler) Start(c *gin.Context) {
	if err := h.sessions.StartSession(c.Request.Context(), currentUser(c), c.Param("code")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Session started"})
}

func (h *SessionHandler) Participants(c *gin.Context) {
	participants, err := h.sessions.ListParticipants(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

func (h *SessionHandler) SubmitScore(c *gin.Context) {
	var req submitScoreRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleServiceError(c, err)
		return
	}

	score, err := h.sessions.SubmitScore(c.Request.Context(), currentUser(c), c.Param("code"), rawString(req.Score))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, scoreResponse{Message: "Score submitted", Score: score})
}

func (h *SessionHandler) Results(c *gin.Context) {
	results, err := h.sessions.GetResults(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// ListInvitable serves GET /api/users/invitable?session_code=CODE.
func (h *SessionHandler) ListInvitable(c *gin.Context) {
	code := c.Query("session_code")
	if strings.TrimSpace(code) == "" {
		HandleServiceError(c, fmt.Errorf("%w: session_code is required", domain.ErrInvalidInput))
		return
	}
	users, err := h.sessions.ListInvitable(c.Request.Context(), currentUser(c), code)
	if err != nil {
		HandleServiceError(c, err, lobbyClosed)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *SessionHandler) ListInvites(c *gin.Context) {
	invites, err := h.sessions.ListInvites(c.Request.Context(), currentUser(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invites)
}

func (h *SessionHandler) AcknowledgeInvite(c *gin.Context) {
	inviteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		HandleServiceError(c, fmt.Errorf("%w: invite id must be an integer", domain.ErrInvalidInput))
		return
	}
	if err := h.sessions.AcknowledgeInvite(c.Request.Context(), currentUser(c), inviteID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Invite marked as read"})
}

// bindOptionalJSON decodes the body into v; an empty body leaves v untouched.
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if c.Request.Body == nil {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidInput)
	}
	return nil
}

// rawString turns a JSON scalar into its text form: "2" and 2 both yield "2"; null yields "".
func rawString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

func requiredID(raw json.RawMessage, field string) (int64, error) {
	s := rawString(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidInput, field)
	}
	return id, nil
}
