package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindForbidden:          http.StatusForbidden,
	domain.KindInvalidInput:       http.StatusBadRequest,
	domain.KindConflict:           http.StatusConflict,
	domain.KindPreconditionFailed: http.StatusBadRequest,
	domain.KindUnauthenticated:    http.StatusUnauthorized,
	domain.KindInternal:           http.StatusInternalServerError,
}

// statusOverride remaps one error for a single route.
type statusOverride struct {
	err    error
	status int
}

// lobbyClosed is used by routes where acting on a started session is a permission problem.
var lobbyClosed = statusOverride{err: domain.ErrAlreadyStarted, status: http.StatusForbidden}

type errorBody struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

// HandleServiceError writes err as a JSON error response.
func HandleServiceError(c *gin.Context, err error, overrides ...statusOverride) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	for _, o := range overrides {
		if errors.Is(err, o.err) {
			status = o.status
			break
		}
	}

	if kind == domain.KindInternal {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		c.AbortWithStatusJSON(status, errorBody{Error: "An unexpected error occurred", Kind: kind})
		return
	}
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error(), Kind: kind})
}
