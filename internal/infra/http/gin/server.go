package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"bchat/internal/infra/config"
	"bchat/internal/infra/obs"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
	UpdateMe(c *gin.Context)
}

type UsersHTTP interface {
	Search(c *gin.Context)
}

type FriendsHTTP interface {
	Send(c *gin.Context)
	Respond(c *gin.Context)
	List(c *gin.Context)
	Incoming(c *gin.Context)
}

type ChatHTTP interface {
	Start(c *gin.Context)
	List(c *gin.Context)
	Send(c *gin.Context)
	Messages(c *gin.Context)
	Delete(c *gin.Context)
}

type RealtimeHTTP interface {
	Conversations(c *gin.Context)
	Messages(c *gin.Context)
}

type Handlers struct {
	Auth           AuthHTTP
	Users          UsersHTTP
	Friends        FriendsHTTP
	Chat           ChatHTTP
	Realtime       RealtimeHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
		api.PATCH("/auth/me", h.Auth.UpdateMe)
	}
	if h.Users != nil {
		api.GET("/users/search", h.Users.Search)
	}
	if h.Friends != nil {
		friendGroup := api.Group("/friends")
		friendGroup.GET("", h.Friends.List)
		friendGroup.GET("/requests", h.Friends.Incoming)
		friendGroup.POST("/requests", h.Friends.Send)
		friendGroup.POST("/requests/:id/respond", h.Friends.Respond)
	}
	if h.Chat != nil {
		chatGroup := api.Group("/conversations")
		chatGroup.POST("", h.Chat.Start)
		chatGroup.GET("", h.Chat.List)
		chatGroup.GET("/:id/messages", h.Chat.Messages)
		chatGroup.POST("/:id/messages", h.Chat.Send)
		chatGroup.DELETE("/:id/messages/:messageID", h.Chat.Delete)
	}
	if h.Realtime != nil {
		wsGroup := api.Group("/ws")
		wsGroup.GET("/conversations", h.Realtime.Conversations)
		wsGroup.GET("/conversations/:id/messages", h.Realtime.Messages)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
