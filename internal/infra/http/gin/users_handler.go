package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"bchat/internal/app/dto"
	"bchat/internal/app/uow"
	appusers "bchat/internal/app/users"
	domainuser "bchat/internal/domain/user"
)

type UsersHandler struct {
	Service *appusers.Service
	Logger  *slog.Logger
}

// Search matches accounts by display-name prefix or exact friend code.
func (h UsersHandler) Search(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	query := c.Query("q")
	limit, _ := strconv.Atoi(c.Query("limit"))
	found, err := h.Service.Search(c.Request.Context(), domainuser.ID(p.ID), query, limit)
	if err != nil {
		if errors.Is(err, uow.ErrStorageUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("user search failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, dto.NewUserList(found))
}
