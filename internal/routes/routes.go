package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcusgoll/cfipros-web-sub000/internal/handlers"
	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/ws"
)

// RegisterRoutes mounts the HTTP API under /api/v1 and the websocket hub under /ws.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	wsHandler *ws.WebSocketHandler,
	authMiddleware gin.HandlerFunc,
) {
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api)
		appHandlers.ProfileHandler.RegisterRoutes(api)
		appHandlers.SubscriptionHandler.RegisterRoutes(api)
		appHandlers.UploadHandler.RegisterRoutes(api)
		appHandlers.WebhookHandler.RegisterRoutes(api)
	}

	if wsHandler != nil {
		wsGroup := ginRouter.Group("/ws")
		wsGroup.Use(authMiddleware)
		{
			wsGroup.GET("", wsHandler.ServeWS)
		}
		logger.Info("WebSocket route /ws registered")
	}
}
