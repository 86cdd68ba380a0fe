package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bustrack/internal/engine"
)

// VerifyAttendance resolves a scanned QR token to its passenger and marks
// them PRESENT on the eligible trip.
func VerifyAttendance(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, trip, err := eng.VerifyByToken(c.Request.Context(), input.Token)
	if err != nil {
		logrus.WithError(err).Warn("VerifyAttendance rejected")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attendance": record,
		"trip":       trip,
	})
}

// MarkAttendance applies a manual boarding/absence override for one or
// more passengers on a trip.
func MarkAttendance(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	var input struct {
		PassengerID  *uint  `json:"passenger_id"`
		PassengerIDs []uint `json:"passenger_ids"`
		Action       string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := input.PassengerIDs
	if input.PassengerID != nil {
		ids = append(ids, *input.PassengerID)
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No passengers given"})
		return
	}

	result, err := eng.MarkManual(c.Request.Context(), uint(id), ids, engine.MarkAction(input.Action))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// TripAttendance returns the boarding summary for a trip.
func TripAttendance(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	summary, err := eng.TripAttendance(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendance": summary})
}
