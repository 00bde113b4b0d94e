package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/orchestrator"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Event frame types.
const (
	FrameSubscribed = "subscribed"
	FrameProgress   = "progress"
	FrameClosed     = "closed"
)

// Frame is one message on the event stream.
type Frame struct {
	Type      string                      `json:"type"`
	SessionID string                      `json:"sessionId,omitempty"`
	Event     *orchestrator.ProgressEvent `json:"event,omitempty"`
}

// handleEvents streams progress events. With ?session=<id> only that
// session's events are sent. The first frame is "subscribed"; events
// emitted after it are delivered.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		s.logger.Debug("events: set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	events, unsubscribe := s.runner.Progress()
	defer unsubscribe()

	// Reader: the stream is one-way, but reading is what surfaces pongs and
	// the client's close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(f Frame) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(f) == nil
	}

	if !write(Frame{Type: FrameSubscribed, SessionID: sessionID}) {
		return
	}

	ticker := time.NewTicker(eventsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				write(Frame{Type: FrameClosed, SessionID: sessionID})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
					time.Now().Add(eventsWriteWait))
				return
			}
			if sessionID != "" && ev.SessionID != sessionID {
				continue
			}
			if !write(Frame{Type: FrameProgress, SessionID: ev.SessionID, Event: &ev}) {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
