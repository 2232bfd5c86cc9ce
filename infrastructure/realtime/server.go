// Package realtime serves the websocket endpoint through which operators
// follow the live activity of their rooms.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/havaian/gossip/contract"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/services"
)

const (
	JoinRoom  = "join-room"
	LeaveRoom = "leave-room"

	readLimit          = 4 * 1024
	readTimeout        = 60 * time.Second
	defaultSendBufSize = 64
)

type inboundFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type ackFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server authenticates a connection once, then lets it join and leave rooms.
// The connection receives every event of the rooms it joined.
type Server struct {
	log             *slog.Logger
	access          services.IAccessService
	registry        contract.IRegistry
	upgrader        websocket.Upgrader
	bufferSize      int
	enforceRoomView bool

	mu          sync.Mutex
	connections map[string]*Connection
}

func NewServer(log *slog.Logger, access services.IAccessService, registry contract.IRegistry, bufferSize int) *Server {
	if bufferSize <= 0 {
		bufferSize = defaultSendBufSize
	}
	return &Server{
		log:        log,
		access:     access,
		registry:   registry,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		connections: make(map[string]*Connection),
	}
}

// WithRoomAccessCheck makes join-room require view access on the room.
func (s *Server) WithRoomAccessCheck(enabled bool) *Server {
	s.enforceRoomView = enabled
	return s
}

// ServeHTTP rejects unauthenticated clients before the upgrade.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.access.Authenticate(token(r))
	if err != nil {
		public := errors.Public(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(errors.MapToHTTPStatus(public))
		_ = json.NewEncoder(w).Encode(errorFrame{Type: "error", Code: public.Code, Message: public.Message})
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(s.access.CapabilityOf(identity), ws, s.bufferSize)
	s.attach(conn)
	defer s.detach(conn)
	go conn.writeLoop()

	s.log.Info("Realtime connection opened", "connection_id", conn.ID, "actor_id", identity.ID)
	s.reply(conn, ackFrame{Type: "connected"})
	s.readLoop(conn, ws)
}

func (s *Server) readLoop(conn *Connection, ws *websocket.Conn) {
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Debug("Realtime connection lost", "connection_id", conn.ID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.replyError(conn, errors.ErrInvalidInput)
			continue
		}
		frame.RoomID = strings.TrimSpace(frame.RoomID)

		switch frame.Type {
		case JoinRoom:
			s.join(conn, frame.RoomID)
		case LeaveRoom:
			s.leave(conn, frame.RoomID)
		default:
			s.replyError(conn, errors.ErrInvalidInput)
		}
	}
}

func (s *Server) join(conn *Connection, roomID string) {
	if roomID == "" {
		s.replyError(conn, errors.ErrInvalidInput)
		return
	}
	if s.enforceRoomView && !conn.Capability.CanView(roomID) {
		s.replyError(conn, errors.ErrRoomAccessDenied)
		return
	}
	s.registry.Subscribe(conn.ID, roomID, conn)
	s.log.Debug("Connection joined room", "connection_id", conn.ID, "room_id", roomID)
	s.reply(conn, ackFrame{Type: "joined", RoomID: roomID})
}

func (s *Server) leave(conn *Connection, roomID string) {
	if roomID == "" {
		s.replyError(conn, errors.ErrInvalidInput)
		return
	}
	s.registry.Unsubscribe(conn.ID, roomID)
	s.reply(conn, ackFrame{Type: "left", RoomID: roomID})
}

func (s *Server) reply(conn *Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func (s *Server) replyError(conn *Connection, err error) {
	public := errors.Public(err)
	s.reply(conn, errorFrame{Type: "error", Code: public.Code, Message: public.Message})
}

func (s *Server) attach(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.ID] = conn
}

// detach removes the connection from every room it joined.
func (s *Server) detach(conn *Connection) {
	s.registry.UnsubscribeAll(conn.ID)
	conn.Close(websocket.CloseNormalClosure, "session closed")

	s.mu.Lock()
	delete(s.connections, conn.ID)
	s.mu.Unlock()
	s.log.Info("Realtime connection closed", "connection_id", conn.ID)
}

// Close ends every open connection, used at shutdown.
func (s *Server) Close() {
	s.mu.Lock()
	connections := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		connections = append(connections, conn)
	}
	s.mu.Unlock()

	for _, conn := range connections {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

func token(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	header := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

var _ contract.EventSink = (*Connection)(nil)
