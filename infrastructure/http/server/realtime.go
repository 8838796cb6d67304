package server

import (
	"estate-chat/domain/event"
	"estate-chat/errors"
	"estate-chat/sink"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// realtime upgrades to a websocket streaming the changes of the messages
// where the caller is a participant. Browsers cannot set headers on the
// upgrade request so the token travels in the query string.
func (s *Server) realtime(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, r, errors.ErrUnauthenticated)
		return
	}
	var requested []string
	if events := r.URL.Query().Get("events"); events != "" {
		requested = strings.Split(events, ",")
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.NewString()
	connSink := sink.NewRealtimeSink(claims.UserID, connectionID, event.ParseTypes(requested), s.connectionBufferSize)
	s.connections.RegisterConnection(claims.UserID, connectionID, connSink)
	defer s.connections.UnregisterConnection(claims.UserID, connectionID)
	defer connSink.Close()

	go s.readLoop(conn, connSink)

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(writeWait))
			return
		case <-connSink.Done():
			s.log.Debug("Client disconnected", "user", claims.UserID, "connection", connectionID)
			return
		case e := <-connSink.Events():
			frame := event.ToFrame(e)
			frame.Origin = ""
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Warn("Failed to push event to websocket",
					"user", claims.UserID,
					"connection", connectionID,
					"error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed.
// A missing pong for two ping intervals closes the connection.
func (s *Server) readLoop(conn *websocket.Conn, connSink *sink.RealtimeSink) {
	defer connSink.Close()
	deadline := 2 * s.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
