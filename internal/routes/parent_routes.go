package routes

import (
	"bustrack/internal/controllers"
	"bustrack/internal/middleware"

	"github.com/gin-gonic/gin"
)

// ParentRoutes is the guardian-facing surface: the notification inbox.
func ParentRoutes(r *gin.Engine) {
	me := r.Group("/me")
	me.Use(middleware.RequireAuth())
	{
		me.GET("/notifications", controllers.ListMyNotifications)
		me.PATCH("/notifications/:id/read", controllers.MarkNotificationRead)
	}
}
