package models

import (
	"gorm.io/gorm"
)

// Notification types emitted by the fanout component.
const (
	NotifyTripStarted   = "trip_started"
	NotifyTripCompleted = "trip_completed"
	NotifyTripDelayed   = "trip_delayed"
	NotifyBroadcast     = "broadcast"
	NotifyEmergency     = "emergency"
)

// Notification is a persisted inbox message for one recipient. The engine
// only writes these; reading and marking happen on the inbox endpoints.
type Notification struct {
	gorm.Model

	RecipientID uint   `json:"recipient_id" gorm:"index"`
	Type        string `json:"type" gorm:"type:varchar(32);index"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Metadata    []byte `json:"metadata" gorm:"type:jsonb"`
	Priority    bool   `json:"priority" gorm:"default:false"`
	Read        bool   `json:"read" gorm:"default:false"`
}
