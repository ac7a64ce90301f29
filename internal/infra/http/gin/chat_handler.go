package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	appchat "bchat/internal/app/chat"
	"bchat/internal/app/dto"
	"bchat/internal/app/errbus"
	"bchat/internal/app/realtime"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	"bchat/internal/domain/identity"
	domainuser "bchat/internal/domain/user"
)

type ChatHandler struct {
	Directory *appchat.Directory
	Log       *appchat.Log
	Sync      *realtime.Syncer
	Logger    *slog.Logger
}

type startConversationRequest struct {
	With string `json:"with"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// Start resolves or creates the conversation with another user.
func (h ChatHandler) Start(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conversation, err := h.Directory.GetOrCreate(c.Request.Context(), domainuser.ID(p.ID), domainuser.ID(req.With))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConversationSummary(conversation, nil))
}

// List returns the caller's conversations, hydrated with fresh participant
// snapshots, most recent activity first.
func (h ChatHandler) List(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	views, err := h.Sync.SnapshotConversations(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConversationCollection(views))
}

func (h ChatHandler) Send(c *gin.Context) {
	p, conversation, ok := h.requireMember(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	message, err := h.Log.Append(c.Request.Context(), conversation, domainuser.ID(p.ID), req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewMessageView(message))
}

func (h ChatHandler) Messages(c *gin.Context) {
	_, conversation, ok := h.requireMember(c)
	if !ok {
		return
	}
	messages, err := h.Log.History(c.Request.Context(), conversation)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewMessageCollection(messages))
}

func (h ChatHandler) Delete(c *gin.Context) {
	p, conversation, ok := h.requireMember(c)
	if !ok {
		return
	}
	id := domainchat.MessageID(c.Param("messageID"))
	message, err := h.Log.Message(c.Request.Context(), conversation, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if string(message.SenderID) != p.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the sender"})
		return
	}
	if err := h.Log.SoftDelete(c.Request.Context(), conversation, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requireMember loads the conversation and rejects callers who are not a
// participant.
func (h ChatHandler) requireMember(c *gin.Context) (principal, domainchat.ConversationID, bool) {
	p, ok := requireAuth(c)
	if !ok {
		return principal{}, "", false
	}
	id := domainchat.ConversationID(c.Param("id"))
	conversation, err := h.Directory.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return principal{}, "", false
	}
	for _, member := range conversation.Participants {
		if string(member) == p.ID {
			return p, id, true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	return principal{}, "", false
}

func (h ChatHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrSameUser), errors.Is(err, identity.ErrIDRequired),
		errors.Is(err, domainchat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, domainchat.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, domainuser.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, errbus.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, uow.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
