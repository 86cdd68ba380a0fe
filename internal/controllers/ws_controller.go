package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bustrack/internal/config"
	"bustrack/internal/engine"
	"bustrack/internal/middleware"
	"bustrack/internal/models"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// LocationData is the incoming position frame from the driver app.
// Timestamp is handled by the custom UnmarshalJSON below.
type LocationData struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"` // GPS accuracy in meters
	Speed     float64   `json:"speed"`    // Speed in m/s
	Altitude  float64   `json:"altitude"` // Altitude in meters
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts timestamps with or without a timezone suffix;
// suffix-less values are assumed UTC.
func (ld *LocationData) UnmarshalJSON(data []byte) error {
	type alias LocationData
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(ld)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts := aux.Timestamp
	if len(ts) >= 6 && !(strings.HasSuffix(ts, "Z") || strings.ContainsAny(ts[len(ts)-6:], "+-")) {
		ts += "Z"
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	ld.Timestamp = t
	return nil
}

// authenticateWebSocket validates the token query parameter and resolves
// the caller: drivers get their driver profile id, viewers (admin/parent)
// get their organization id for hub registration.
func authenticateWebSocket(c *gin.Context) (role string, orgID uint, driverID uint, err error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return "", 0, 0, errors.New("missing authentication token")
	}

	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid token: %w", err)
	}

	userID, _ := claims["user_id"].(float64)
	role, _ = claims["role"].(string)
	orgFloat, _ := claims["org_id"].(float64)
	orgID = uint(orgFloat)

	switch role {
	case "driver":
		var driver models.Driver
		if err := config.DB.Where("user_id = ?", uint(userID)).First(&driver).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", 0, 0, fmt.Errorf("driver profile not found for user ID %d", uint(userID))
			}
			return "", 0, 0, fmt.Errorf("database error fetching driver profile: %w", err)
		}
		driverID = driver.ID
		orgID = driver.OrganizationID
	case "admin", "parent":
		// Viewers monitor their own organization's live feed.
	default:
		return "", 0, 0, errors.New("unauthorized role for WebSocket connection")
	}
	return role, orgID, driverID, nil
}

// HandleLiveWebSocket is the single live-update endpoint. Drivers stream
// position frames into the engine; admins and parents receive trip
// position and notification events for their organization.
func HandleLiveWebSocket(c *gin.Context) {
	role, orgID, driverID, authErr := authenticateWebSocket(c)
	if authErr != nil {
		logrus.WithError(authErr).Warn("WebSocket connection attempt failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	if role == "driver" {
		handleDriverStream(conn, driverID)
		return
	}
	handleViewerStream(conn, orgID)
}

// handleDriverStream reads position frames from a driver connection and
// feeds them to the engine's fire-and-forget ingestion path.
func handleDriverStream(conn *websocket.Conn, driverID uint) {
	logrus.WithFields(logrus.Fields{
		"driver_id": driverID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("Driver WebSocket connection established.")

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("driver_id", driverID).Info("Driver WebSocket closed.")
			} else {
				logrus.WithError(err).Errorf("Error reading WebSocket message from Driver ID %d", driverID)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame LocationData
		if err := json.Unmarshal(p, &frame); err != nil {
			logrus.WithError(err).WithField("driver_id", driverID).
				Error("Error unmarshaling location frame.")
			conn.WriteJSON(gin.H{"error": "Invalid location data format. Check timestamp format."})
			continue
		}

		result, err := eng.IngestLocation(context.Background(), engine.LocationUpdate{
			DriverID:  driverID,
			Latitude:  frame.Latitude,
			Longitude: frame.Longitude,
			Accuracy:  frame.Accuracy,
			Speed:     frame.Speed,
			Altitude:  frame.Altitude,
			Timestamp: frame.Timestamp,
		})
		if err != nil {
			if errors.Is(err, engine.ErrNoEligibleTrip) {
				conn.WriteJSON(gin.H{"error": "No ongoing trip for this driver."})
			} else {
				logrus.WithError(err).WithField("driver_id", driverID).Error("Failed to ingest location frame.")
				conn.WriteJSON(gin.H{"error": "Failed to save location."})
			}
			continue
		}

		conn.WriteJSON(gin.H{
			"status":     "ok",
			"saved":      result.Saved,
			"event_type": result.EventType,
			"distance":   result.Distance,
			"is_moving":  result.IsMoving,
			"timestamp":  frame.Timestamp.Format(time.RFC3339Nano),
		})
	}
}

// handleViewerStream registers an admin/parent connection with the live
// hub until the peer disconnects. Viewers only listen.
func handleViewerStream(conn *websocket.Conn, orgID uint) {
	hub.Register(orgID, conn)
	defer hub.Unregister(orgID, conn)

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("org_id", orgID).Info("Viewer WebSocket closed.")
			} else {
				logrus.WithError(err).Errorf("Error reading WebSocket message from viewer (org %d)", orgID)
			}
			break
		}
		logrus.WithField("org_id", orgID).Warn("Viewer sent unexpected message. Ignoring.")
	}
}
