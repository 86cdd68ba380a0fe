package routes

import (
	"bustrack/internal/controllers"
	"bustrack/internal/middleware"

	"github.com/gin-gonic/gin"
)

func DriverRoutes(r *gin.Engine) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireAuthWithRole("driver"))
	{
		driver.GET("/trips", controllers.ListMyTrips)
		driver.POST("/trips/:id/start", controllers.StartTrip)
		driver.POST("/trips/:id/end", controllers.EndTrip)
		driver.POST("/trips/:id/attendance", controllers.MarkAttendance)
		driver.GET("/trips/:id/attendance", controllers.TripAttendance)
		driver.POST("/attendance/verify", controllers.VerifyAttendance)
	}
}
