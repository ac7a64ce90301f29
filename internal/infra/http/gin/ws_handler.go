package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	appchat "bchat/internal/app/chat"
	"bchat/internal/app/dto"
	"bchat/internal/app/presence"
	"bchat/internal/app/realtime"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

const (
	frameTypeConversations = "conversations"
	frameTypeMessages      = "messages"
	frameTypeError         = "error"

	wsWriteTimeout = 10 * time.Second
)

// frame is one full-snapshot push. Every mutation re-sends the whole view;
// clients replace their state instead of patching it.
type frame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// RealtimeHandler upgrades to websocket and pushes snapshot frames for the
// subscribed view until the client disconnects.
type RealtimeHandler struct {
	Directory *appchat.Directory
	Sync      *realtime.Syncer
	Presence  *presence.Tracker
	Logger    *slog.Logger

	Upgrader websocket.Upgrader
}

func NewRealtimeHandler(directory *appchat.Directory, sync *realtime.Syncer, tracker *presence.Tracker, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		Directory: directory,
		Sync:      sync,
		Presence:  tracker,
		Logger:    logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Conversations streams the caller's conversation list. The connection also
// drives presence: online on open, offline on close.
func (h *RealtimeHandler) Conversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	userID := domainuser.ID(p.ID)
	if h.Presence != nil {
		if err := h.Presence.MarkOnline(c.Request.Context(), userID); err != nil && h.Logger != nil {
			h.Logger.Warn("presence online failed", "user", p.ID, "error", err)
		}
	}

	sender := newFrameSender(conn)
	unsubscribe := h.Sync.SubscribeConversations(c.Request.Context(), userID,
		func(views []realtime.ConversationView) {
			sender.send(frame{Type: frameTypeConversations, Data: dto.NewConversationCollection(views)})
		},
		func(err error) {
			sender.send(frame{Type: frameTypeError, Error: err.Error()})
		},
	)

	h.drain(conn)
	unsubscribe()
	sender.close()
	if h.Presence != nil {
		// The request context is gone once the peer disconnects; the
		// offline write still has to land.
		if err := h.Presence.MarkOffline(context.Background(), userID); err != nil && h.Logger != nil {
			h.Logger.Warn("presence offline failed", "user", p.ID, "error", err)
		}
	}
}

// Messages streams one conversation's full ordered log.
func (h *RealtimeHandler) Messages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := domainchat.ConversationID(c.Param("id"))
	conversation, err := h.Directory.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	member := false
	for _, participant := range conversation.Participants {
		if string(participant) == p.ID {
			member = true
			break
		}
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sender := newFrameSender(conn)
	unsubscribe := h.Sync.SubscribeMessages(c.Request.Context(), id,
		func(messages []*domainchat.Message) {
			sender.send(frame{Type: frameTypeMessages, Data: dto.NewMessageCollection(messages)})
		},
		func(err error) {
			sender.send(frame{Type: frameTypeError, Error: err.Error()})
		},
	)

	h.drain(conn)
	unsubscribe()
	sender.close()
}

// drain consumes client frames until the peer goes away. Inbound payloads
// are ignored; the socket is push-only.
func (h *RealtimeHandler) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// frameSender serializes writes from subscription callbacks, which fire on
// the syncer's goroutine while the read loop owns the connection lifecycle.
type frameSender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newFrameSender(conn *websocket.Conn) *frameSender {
	return &frameSender{conn: conn}
}

func (s *frameSender) send(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(f); err != nil {
		s.closed = true
	}
}

func (s *frameSender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteTimeout))
		s.closed = true
	}
	s.conn.Close()
}
