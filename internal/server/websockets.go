package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/safequote/safequote/pkg/events"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB

	eventBuffer = 16
)

// The default origin check applies: the page and the socket share a host.
var upgrader = websocket.Upgrader{}

// handleEvents streams the session's search_completed events. The session
// must already exist since cookies cannot be set on an upgraded connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.existingSession(r)
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	log := s.log.WithField("session", sess.id)

	// Slow clients drop events instead of blocking the controller.
	out := make(chan events.SearchCompleted, eventBuffer)
	unsubscribe := sess.bus.Subscribe(func(ev events.SearchCompleted) {
		select {
		case out <- ev:
		default:
			log.Warn("Websocket client too slow, dropping search event")
		}
	})
	defer unsubscribe()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.readPump(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.WithError(err).Debug("Websocket ping failed")
				return
			}
		case ev := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(events.Envelope{Type: events.TYPE_SEARCH_COMPLETED, Data: ev}); err != nil {
				log.WithError(err).Debug("Websocket write failed")
				return
			}
		}
	}
}

// readPump drains incoming frames so control messages are handled, and
// closes done when the client goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
