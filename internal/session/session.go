// Package session implements a single WebSocket connection: one
// goroutine reading frames in receive order, one goroutine serialising
// writes to the socket, and a bounded outbound queue. Structure mirrors
// the teacher's session.go send/receive split.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Session represents one live bidirectional client connection, bound
// to exactly one authenticated user (§4.2: identity is bound at attach
// time, not re-checked per frame).
type Session struct {
	id     string
	ws     *websocket.Conn
	uid    uuid.UUID
	device string
	log    *zap.Logger

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps ws for uid. sendQueueSize is the bound outbound-queue depth
// (config.SendQueueSize); a session that cannot keep up is closed
// rather than allowed to buffer unboundedly (§5 Resource limits).
func New(id string, ws *websocket.Conn, uid uuid.UUID, device string, sendQueueSize int, log *zap.Logger) *Session {
	return &Session{
		id:     id,
		ws:     ws,
		uid:    uid,
		device: device,
		log:    log,
		send:   make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) UserID() uuid.UUID  { return s.uid }
func (s *Session) DeviceID() string   { return s.device }

// Send enqueues payload for the write pump without blocking. Returns
// false (and closes the session) on sustained overflow, per §5.
func (s *Session) Send(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	case <-s.closed:
		return false
	default:
		s.log.Warn("session: send queue overflow, closing", zap.String("session", s.id))
		s.Close()
		return false
	}
}

// Close is idempotent and safe to call from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.ws.Close()
	})
}

// Done returns a channel closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// ReadPump reads frames in receive order and invokes onFrame for each,
// cooperatively: onFrame must return before the next frame is read,
// preserving per-connection ordering (§5). maxFrameBytes bounds inbound
// frame size.
func (s *Session) ReadPump(maxFrameBytes int64, onFrame func(raw []byte)) {
	defer s.Close()

	s.ws.SetReadLimit(maxFrameBytes)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			return
		}
		onFrame(raw)
	}
}

// WritePump serialises every write to the underlying socket and sends
// periodic pings; it is the only goroutine that calls ws.Write*.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}
