package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bustrack/internal/config"
	"bustrack/internal/middleware"
	"bustrack/internal/models"
)

// StartTrip transitions a SCHEDULED trip to ONGOING after the boarding
// gate passes.
func StartTrip(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	result, err := eng.StartTrip(c.Request.Context(), uint(id))
	if err != nil {
		logrus.WithError(err).WithField("trip_id", id).Warn("StartTrip rejected")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trip":              result.Trip,
		"notified":          result.Notified,
		"delivery_failures": result.DeliveryFailures,
	})
}

// EndTrip transitions an ONGOING trip to COMPLETED, computing final
// distance and duration. An optional caller-supplied distance estimate is
// used when the routing service is unavailable.
func EndTrip(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	var input struct {
		DistanceKm *float64 `json:"distance_km"`
	}
	// Body is optional for EndTrip.
	_ = c.ShouldBindJSON(&input)

	result, err := eng.EndTrip(c.Request.Context(), uint(id), input.DistanceKm)
	if err != nil {
		logrus.WithError(err).WithField("trip_id", id).Warn("EndTrip rejected")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trip":              result.Trip,
		"degraded":          result.Degraded,
		"notified":          result.Notified,
		"delivery_failures": result.DeliveryFailures,
	})
}

// GetTrip returns a single trip for the caller's organization.
func GetTrip(c *gin.Context) {
	id := c.Param("id")
	orgID := middleware.OrgID(c)

	var trip models.Trip
	if err := config.DB.Where("id = ? AND organization_id = ?", id, orgID).First(&trip).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// ListTrips is the trip history read model: filter by status, bus and day.
// History filters accept CANCELLED even though no engine path produces it.
func ListTrips(c *gin.Context) {
	orgID := middleware.OrgID(c)

	query := config.DB.Where("organization_id = ?", orgID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if busID := c.Query("bus_id"); busID != "" {
		query = query.Where("bus_id = ?", busID)
	}
	if day := c.Query("date"); day != "" {
		query = query.Where("DATE(scheduled_start) = ?", day)
	}

	var trips []models.Trip
	if err := query.Order("scheduled_start desc").Find(&trips).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing trips: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trips})
}

// ListMyTrips returns the authenticated driver's trips.
func ListMyTrips(c *gin.Context) {
	userID := middleware.UserID(c)

	var driver models.Driver
	if err := config.DB.Where("user_id = ?", userID).First(&driver).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver profile not found"})
		return
	}

	query := config.DB.Where("driver_id = ?", driver.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var trips []models.Trip
	if err := query.Order("scheduled_start asc").Find(&trips).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching trips"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips})
}
