package models

import (
	"gorm.io/gorm"
)

// Stop is one pickup or depot point along a route. PassengerID is nil
// only for the depot origin (Seq 0) and depot return (last Seq); every
// passenger stop lies strictly between them.
type Stop struct {
	gorm.Model

	Name          string `json:"name"`
	Seq           int    `json:"seq"`
	Address       string `json:"address"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	EstimatedTime string  `json:"estimated_time"` // "15:04" time-of-day
	PassengerID   *uint   `json:"passenger_id"`

	RouteID uint `json:"route_id" gorm:"index"`
}
