package models

import (
	"time"

	"gorm.io/gorm"
)

type AttendanceStatus string

const (
	AttendancePending AttendanceStatus = "PENDING"
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

// AttendanceRecord is the per-trip, per-passenger boarding ledger row,
// created lazily on the first boarding/absence action. Exactly one record
// may exist per (trip, passenger) pair.
type AttendanceRecord struct {
	gorm.Model

	TripID      uint             `json:"trip_id" gorm:"uniqueIndex:idx_trip_passenger"`
	PassengerID uint             `json:"passenger_id" gorm:"uniqueIndex:idx_trip_passenger"`
	Status      AttendanceStatus `json:"status" gorm:"type:varchar(12);default:'PENDING'"`
	BoardedAt   *time.Time       `json:"boarded_at"`
	DroppedAt   *time.Time       `json:"dropped_at"`
}
