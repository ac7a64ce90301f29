package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"bchat/internal/app/dto"
	"bchat/internal/app/errbus"
	appfriends "bchat/internal/app/friends"
	"bchat/internal/app/uow"
	domainfriends "bchat/internal/domain/friends"
	"bchat/internal/domain/identity"
	domainuser "bchat/internal/domain/user"
)

type FriendsHandler struct {
	Service *appfriends.Service
	Logger  *slog.Logger
}

type sendRequestBody struct {
	To string `json:"to"`
}

type respondBody struct {
	Accept bool `json:"accept"`
}

func (h FriendsHandler) Send(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req sendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	id, err := h.Service.SendRequest(c.Request.Context(), domainuser.ID(p.ID), domainuser.ID(req.To))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": string(id)})
}

func (h FriendsHandler) Respond(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var req respondBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	id := domainfriends.RequestID(c.Param("id"))
	if err := h.Service.Respond(c.Request.Context(), id, req.Accept); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h FriendsHandler) List(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	friends, err := h.Service.FriendsOf(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFriendCollection(friends))
}

func (h FriendsHandler) Incoming(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	requests, err := h.Service.Incoming(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFriendRequestCollection(requests))
}

func (h FriendsHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrSameUser), errors.Is(err, identity.ErrIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainfriends.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "request already exists"})
	case errors.Is(err, domainfriends.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
	case errors.Is(err, domainuser.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, errbus.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, uow.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		if h.Logger != nil {
			h.Logger.Error("friends operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
