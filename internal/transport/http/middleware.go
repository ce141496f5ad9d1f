package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
)

const userIDKey = "user_id"

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// Auth identifies the caller from `Authorization: Bearer <jwt>`.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, false)
}

// StreamAuth is Auth for websocket routes. Browsers cannot set headers on a websocket
// handshake, so the token may also come as the access_token query parameter.
func StreamAuth(verifier TokenVerifier) gin.HandlerFunc {
	return authenticate(verifier, true)
}

func authenticate(verifier TokenVerifier, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if allowQuery {
			token = c.Query("access_token")
		}
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				HandleServiceError(c, domain.ErrUnauthenticated)
				return
			}
			token = parts[1]
		}
		if token == "" {
			HandleServiceError(c, domain.ErrUnauthenticated)
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			logrus.WithError(err).WithField("path", c.FullPath()).Debug("Rejected bearer token")
			HandleServiceError(c, domain.ErrUnauthenticated)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

// LoggerMiddleware logs one line per request through logrus.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"status_code": status,
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})
		if uid, ok := c.Get(userIDKey); ok {
			entry = entry.WithField("user_id", uid)
		}

		switch {
		case status >= 500:
			entry.Error("Server error")
		case status >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
