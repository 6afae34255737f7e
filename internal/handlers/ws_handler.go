package handlers

import (
	"log/slog"
	"net/http"
	"notification-service/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Admission is decided by the bearer credential, not the origin.
		return true
	},
}

type WSHandler struct {
	hub        *realtime.Hub
	middleware *Middleware
}

func NewWSHandler(hub *realtime.Hub, middleware *Middleware) *WSHandler {
	return &WSHandler{
		hub:        hub,
		middleware: middleware,
	}
}

// RegisterRoutes registers the websocket endpoint
func (h *WSHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/notification/ws", h.Connect)
}

// Connect performs the handshake. The credential arrives as a query
// parameter; a missing or invalid one is a hard rejection with no retry.
func (h *WSHandler) Connect(c *gin.Context) {
	tokenString := c.Query("token")
	userID, err := h.middleware.Authenticate(c.Request.Context(), tokenString)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := realtime.NewClient(userID, conn)
	h.hub.Register(userID, client)

	// Blocks until the peer disconnects.
	client.ReadLoop()

	h.hub.Unregister(userID, client)
	client.Close()
}
