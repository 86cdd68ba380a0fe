package routes

import (
	"bustrack/internal/controllers"
	"bustrack/internal/middleware"

	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole("admin"))
	{
		admin.POST("/schedules", controllers.CreateSchedule)
		admin.GET("/schedules/:id", controllers.GetSchedule)
		admin.PUT("/schedules/:id", controllers.UpdateSchedule)
		admin.DELETE("/schedules/:id", controllers.DeleteSchedule)

		admin.GET("/trips", controllers.ListTrips)
		admin.GET("/trips/:id", controllers.GetTrip)
		admin.POST("/trips/:id/reschedule", controllers.RescheduleTrip)
		admin.GET("/trips/:id/attendance", controllers.TripAttendance)
		admin.POST("/trips/:id/attendance", controllers.MarkAttendance)

		admin.POST("/broadcast", controllers.Broadcast)
		admin.POST("/emergency", controllers.EmergencyAlert)
	}
}
