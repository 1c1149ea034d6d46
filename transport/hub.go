package transport

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	sendQueueDepth = 64
)

// wsConn is the slice of a websocket connection the hub writes to.
// *websocket.Conn satisfies it; tests use a recording fake.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage

// Socket is one live connection of one user. Outbound messages go
// through a bounded queue drained by a single write pump; when the queue
// is full the message is dropped rather than stalling a broadcast sweep.
type Socket struct {
	UserID string

	hub  *Hub
	conn wsConn

	// mu orders Enqueue against Close: broadcast sweeps hold socket
	// snapshots taken before an Unregister, so an enqueue can arrive
	// after the socket was torn down and must not hit a closed channel.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Enqueue queues raw bytes for delivery. Non-blocking: a slow consumer
// loses messages, never slows the runtime. Enqueueing on a closed
// socket drops the message.
func (s *Socket) Enqueue(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- b:
	default:
		if s.hub != nil && s.hub.log != nil {
			s.hub.log.Warnw("socket send queue full, dropping message", "user", s.UserID)
		}
	}
}

// Send marshals and queues a typed message for this socket only.
func (s *Socket) Send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		if s.hub != nil && s.hub.log != nil {
			s.hub.log.Errorw("marshal outbound message", "err", err)
		}
		return
	}
	s.Enqueue(b)
}

// Close tears the socket down; the write pump exits when the queue closes.
// Idempotent, and safe against concurrent Enqueue.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()
	_ = s.conn.Close()
}

// writePump drains the send queue onto the wire.
func (s *Socket) writePump() {
	for msg := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(textMessage, msg); err != nil {
			return
		}
	}
}

// Hub is the process-wide socket registry: every connection of every
// user, across all games. The runtime publishes through it and never
// touches connections directly.
type Hub struct {
	log *zap.SugaredLogger

	mu    sync.RWMutex
	users map[string][]*Socket
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:   log,
		users: make(map[string][]*Socket),
	}
}

// Register wires a new connection for a user and starts its write pump.
func (h *Hub) Register(userID string, conn wsConn) *Socket {
	s := &Socket{
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendQueueDepth),
	}
	h.mu.Lock()
	h.users[userID] = append(h.users[userID], s)
	h.mu.Unlock()
	go s.writePump()
	return s
}

// Unregister drops a socket from the registry and closes it.
func (h *Hub) Unregister(s *Socket) {
	h.mu.Lock()
	socks := h.users[s.UserID]
	for i, candidate := range socks {
		if candidate == s {
			h.users[s.UserID] = append(socks[:i], socks[i+1:]...)
			break
		}
	}
	if len(h.users[s.UserID]) == 0 {
		delete(h.users, s.UserID)
	}
	h.mu.Unlock()
	s.Close()
}

// SocketsOf returns a snapshot of the user's current sockets.
func (h *Hub) SocketsOf(userID string) []*Socket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*Socket(nil), h.users[userID]...)
}

// SendToUser delivers one message to every socket the user has open.
// Marshals once, fans out.
func (h *Hub) SendToUser(userID string, v any) {
	socks := h.SocketsOf(userID)
	if len(socks) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Errorw("marshal outbound message", "err", err)
		return
	}
	for _, s := range socks {
		s.Enqueue(b)
	}
}

// SendToSockets delivers one message to an explicit socket list.
func (h *Hub) SendToSockets(socks []*Socket, v any) {
	if len(socks) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Errorw("marshal outbound message", "err", err)
		return
	}
	for _, s := range socks {
		s.Enqueue(b)
	}
}
