package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
)

type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter wires the public HTTP surface. Everything under /api requires a bearer token; only the
// watch stream also accepts it as a query parameter.
func NewRouter(sessions SessionService, events app.EventSubscriber, verifier TokenVerifier, opts RouterOptions) *gin.Engine {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logrus.StandardLogger()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	sh := NewSessionHandler(sessions)
	wh := NewWatchHandler(sessions, events)

	api := r.Group("/api")
	api.GET("/sessions/:code/watch", StreamAuth(verifier), wh.Watch)

	authed := api.Group("", Auth(verifier))
	{
		s := authed.Group("/sessions")
		s.POST("", sh.CreateSession)
		s.GET("/:code", sh.GetSession)
		s.DELETE("/:code", sh.DeleteSession)
		s.POST("/:code/invite", sh.Invite)
		s.POST("/:code/join", sh.Join)
		s.POST("/:code/start", sh.Start)
		s.GET("/:code/participants", sh.Participants)
		s.POST("/:code/submit-score", sh.SubmitScore)
		s.GET("/:code/results", sh.Results)

		authed.GET("/users/invitable", sh.ListInvitable)
		authed.GET("/invites", sh.ListInvites)
		authed.POST("/invites/:id/read", sh.AcknowledgeInvite)
	}
	return r
}
