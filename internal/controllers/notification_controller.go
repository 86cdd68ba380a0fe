package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bustrack/internal/config"
	"bustrack/internal/engine"
	"bustrack/internal/middleware"
	"bustrack/internal/models"
)

// Broadcast fans a message out to an audience within the caller's
// organization. Partial delivery failures are reported, not rolled back.
func Broadcast(c *gin.Context) {
	var input struct {
		Title    string `json:"title" binding:"required"`
		Message  string `json:"message" binding:"required"`
		Audience string `json:"audience" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := eng.Broadcast(c.Request.Context(), middleware.OrgID(c),
		engine.Audience(input.Audience), input.Title, input.Message)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// EmergencyAlert delivers a priority message to all organization admins.
func EmergencyAlert(c *gin.Context) {
	var input struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := eng.EmergencyAlert(c.Request.Context(), middleware.OrgID(c), input.Message)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// ListMyNotifications returns the caller's inbox, newest first.
func ListMyNotifications(c *gin.Context) {
	userID := middleware.UserID(c)

	query := config.DB.Where("recipient_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at desc").Limit(100).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

// MarkNotificationRead flags one inbox message as read.
func MarkNotificationRead(c *gin.Context) {
	userID := middleware.UserID(c)
	id := c.Param("id")

	var notification models.Notification
	if err := config.DB.Where("id = ? AND recipient_id = ?", id, userID).First(&notification).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	notification.Read = true
	config.DB.Save(&notification)
	c.JSON(http.StatusOK, gin.H{"notification": notification})
}
