package routes

import (
	"bustrack/internal/controllers"

	"github.com/gin-gonic/gin"
)

func WebSocketRoutes(r *gin.Engine) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/live", controllers.HandleLiveWebSocket)
	}
}
