package models

import (
	"time"

	"gorm.io/gorm"
)

type TripStatus string

const (
	TripScheduled TripStatus = "SCHEDULED"
	TripOngoing   TripStatus = "ONGOING"
	TripCompleted TripStatus = "COMPLETED"
	// TripCancelled is reserved for history filters; no engine code path
	// produces it.
	TripCancelled TripStatus = "CANCELLED"
)

// Trip is one concrete occurrence of a Schedule. Created by the
// materializer, mutated only by the lifecycle controller, immutable once
// COMPLETED, and never deleted while attendance records reference it.
type Trip struct {
	gorm.Model

	OrganizationID uint       `json:"organization_id" gorm:"index"`
	BusID          uint       `json:"bus_id" gorm:"index"`
	DriverID       uint       `json:"driver_id" gorm:"index"`
	RouteID        uint       `json:"route_id"`
	ScheduleID     uint       `json:"schedule_id" gorm:"index"`
	Status         TripStatus `json:"status" gorm:"type:varchar(16);default:'SCHEDULED';index"`

	ScheduledStart time.Time  `json:"scheduled_start" gorm:"index"`
	ActualStart    *time.Time `json:"actual_start"`
	ActualEnd      *time.Time `json:"actual_end"`

	CurrentLat *float64 `json:"current_lat"`
	CurrentLng *float64 `json:"current_lng"`

	DistanceCoveredKm float64 `json:"distance_covered_km"`
	EstimatedDurMin   float64 `json:"estimated_duration_min"`

	// LongAnomaly is set when actualEnd-actualStart exceeded the sanity
	// threshold; the completion itself is not rejected.
	LongAnomaly bool `json:"long_anomaly" gorm:"default:false"`
}
