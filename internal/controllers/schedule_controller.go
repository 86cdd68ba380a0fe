package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bustrack/internal/engine"
	"bustrack/internal/middleware"
	"bustrack/internal/models"
)

// RouteResponse mirrors models.Route with Geometry as a GeoJSON string
// for API output.
type RouteResponse struct {
	ID        uint           `json:"ID"`
	CreatedAt time.Time      `json:"CreatedAt"`
	UpdatedAt time.Time      `json:"UpdatedAt"`
	Name      string         `json:"name"`
	BusID     uint           `json:"bus_id"`
	Geometry  string         `json:"geometry"`
	Stops     []models.Stop  `json:"stops"`
	DeletedAt gorm.DeletedAt `json:"DeletedAt,omitempty"`
}

// toRouteResponse converts a models.Route to a RouteResponse
func toRouteResponse(route models.Route) RouteResponse {
	jsonGeom, _ := convertWKBToGeoJSON(route.Geometry)
	return RouteResponse{
		ID:        route.ID,
		CreatedAt: route.CreatedAt,
		UpdatedAt: route.UpdatedAt,
		DeletedAt: route.DeletedAt,
		Name:      route.Name,
		BusID:     route.BusID,
		Geometry:  jsonGeom,
		Stops:     route.Stops,
	}
}

// CreateSchedule creates a schedule for a bus: resolves the effective
// driver, synthesizes the route from the bus's assigned passengers, and
// seeds the initial trip window.
func CreateSchedule(c *gin.Context) {
	var input struct {
		BusID        uint     `json:"bus_id" binding:"required"`
		DriverID     *uint    `json:"driver_id"`
		BoardingTime string   `json:"boarding_time" binding:"required"`
		ReturnTime   string   `json:"return_time"`
		Weekdays     []string `json:"weekdays"`
		Date         string   `json:"date"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateSchedule: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	schedule, created, err := eng.CreateSchedule(c.Request.Context(), engine.CreateScheduleInput{
		OrganizationID: middleware.OrgID(c),
		BusID:          input.BusID,
		DriverID:       input.DriverID,
		BoardingTime:   input.BoardingTime,
		ReturnTime:     input.ReturnTime,
		Weekdays:       input.Weekdays,
		Date:           input.Date,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"schedule":      schedule,
		"trips_created": created,
	})
}

// GetSchedule returns a schedule with its route rendered as GeoJSON.
func GetSchedule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule ID"})
		return
	}

	schedule, err := eng.ScheduleByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Schedule not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedule": schedule,
		"route":    toRouteResponse(schedule.Route),
	})
}

// UpdateSchedule modifies boarding time, weekday set or active flag.
func UpdateSchedule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule ID"})
		return
	}

	var input struct {
		BoardingTime *string  `json:"boarding_time"`
		Weekdays     []string `json:"weekdays"`
		Active       *bool    `json:"active"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := eng.UpdateSchedule(c.Request.Context(), uint(id), engine.UpdateScheduleInput{
		BoardingTime: input.BoardingTime,
		Weekdays:     input.Weekdays,
		Active:       input.Active,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedule": schedule})
}

// DeleteSchedule removes the schedule; already-materialized trips are kept.
func DeleteSchedule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule ID"})
		return
	}

	if err := eng.DeleteSchedule(c.Request.Context(), uint(id)); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted; existing trips preserved"})
}

// RescheduleTrip moves a one-time trip, or re-anchors a recurring
// schedule's materialization window.
func RescheduleTrip(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	var input struct {
		Date string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := eng.RescheduleTrip(c.Request.Context(), uint(id), input.Date)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
