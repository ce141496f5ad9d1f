package domain

import "errors"

// Kind classifies an error for callers that need to branch on it (HTTP status mapping, tests).
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindInvalidInput       Kind = "invalid_input"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindUnauthenticated    Kind = "unauthenticated"
	KindInternal           Kind = "internal"
)

// Error is a domain failure with a machine-checkable kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	// ErrSessionNotFound is returned when no session matches the given code.
	ErrSessionNotFound = newError(KindNotFound, "session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = newError(KindNotFound, "quiz not found")
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = newError(KindNotFound, "user not found")
	// ErrInviteNotFound is returned when an invite does not exist or belongs to someone else.
	ErrInviteNotFound = newError(KindNotFound, "invite not found")

	// ErrForbidden is returned when a non-host attempts a host-only action.
	ErrForbidden = newError(KindForbidden, "only the session host can do this")
	// ErrNotAParticipant is returned when a user acts on a session they have not joined.
	ErrNotAParticipant = newError(KindForbidden, "you are not a participant in this session")

	// ErrInvalidInput covers malformed or missing request fields.
	ErrInvalidInput = newError(KindInvalidInput, "invalid input")
	// ErrInvalidTeam is returned when a team number is missing or out of range in team mode.
	ErrInvalidTeam = newError(KindInvalidInput, "invalid team number")
	// ErrInvalidScore is returned when a score is not a finite number.
	ErrInvalidScore = newError(KindInvalidInput, "score must be a finite number")

	// ErrQuizEmpty is returned when hosting a quiz that has no questions.
	ErrQuizEmpty = newError(KindPreconditionFailed, "quiz has no questions")
	// ErrAlreadyStarted is returned for lobby-only actions on a started session.
	ErrAlreadyStarted = newError(KindPreconditionFailed, "session has already started")
	// ErrNotStarted is returned for play-only actions on a session still in the lobby.
	ErrNotStarted = newError(KindPreconditionFailed, "session has not started")
	// ErrNoParticipants is returned when starting a session nobody has joined.
	ErrNoParticipants = newError(KindPreconditionFailed, "cannot start a session without participants")

	// ErrUnauthenticated is returned when the caller cannot be identified.
	ErrUnauthenticated = newError(KindUnauthenticated, "authentication required")

	// ErrCodeSpaceExhausted is returned when no free session code was found within the attempt budget.
	ErrCodeSpaceExhausted = newError(KindInternal, "could not allocate a unique session code")
)

// Storage-level signals. These never reach callers unwrapped.
var (
	// ErrUnavailable marks transient storage failures such as a dropped connection.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCodeTaken is returned by stores when a session code collides with an existing one.
	ErrCodeTaken = errors.New("session code already taken")
	// ErrNotFound is returned by stores for missing rows.
	ErrNotFound = errors.New("record not found")
)

// KindOf resolves the kind of err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
