package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/statesync/pkg/models"
)

const (
	clientBuffer = 256
	writeTimeout = 5 * time.Second
)

// client is one push connection. Only its writer goroutine writes frames.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Push upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	s.logger.Debug("Push client connected")

	go s.writeLoop(c)

	// Clients never send data frames; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
	s.logger.Debug("Push client disconnected")
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.WithError(err).Debug("Push write failed")
				return
			}
		case <-c.done:
			s.flush(c)
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// flush writes frames queued before the client was dropped.
func (s *Server) flush(c *client) {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.done)
	}
}

// Push sends a notification to every connected client.
func (s *Server) Push(n models.ChangeNotification) {
	frame, err := json.Marshal(n)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal notification")
		return
	}
	s.PushRaw(frame)
}

// PushRaw sends an arbitrary frame to every connected client.
func (s *Server) PushRaw(frame []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			s.logger.Warn("Push client too slow, dropping frame")
		}
	}
}

// Clients returns the number of connected push clients.
func (s *Server) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// DisconnectAll closes every push connection.
func (s *Server) DisconnectAll() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.done)
	}
}
