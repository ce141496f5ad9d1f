package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
)

// WatchHandler streams session events to websocket clients.
type WatchHandler struct {
	sessions SessionService
	events   app.EventSubscriber
	upgrader websocket.Upgrader
}

func NewWatchHandler(sessions SessionService, events app.EventSubscriber) *WatchHandler {
	return &WatchHandler{
		sessions: sessions,
		events:   events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Watch sends a "session" snapshot, then one message per session event until the session is
// deleted or the client goes away.
func (h *WatchHandler) Watch(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := h.sessions.GetSession(ctx, c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	log := logrus.WithFields(logrus.Fields{"code": view.Code, "user_id": currentUser(c)})

	updates, cancel, err := h.events.Subscribe(ctx, view.Code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	// Server read/write timeouts carry over to the hijacked connection.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	// Watchers only listen; the read loop exists to notice the client closing.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(outboundMessage{Type: "session", Payload: view}); err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(outboundMessage{Type: string(ev.Type), Payload: ev}); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
		case <-clientGone:
			return
		case <-ctx.Done():
			return
		}
	}
}
