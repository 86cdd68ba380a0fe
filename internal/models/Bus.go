// internal/models/bus.go
package models

import (
	"gorm.io/gorm"
)

type Bus struct {
	gorm.Model
	BusNo          string `json:"bus_no"`
	Registration   string `json:"registration"`
	Capacity       int    `json:"capacity"`
	OrganizationID uint   `json:"organization_id" gorm:"index"`
	DriverID       *uint  `json:"driver_id" gorm:"uniqueIndex"` // at most one bus per driver
	InService      bool   `json:"in_service" gorm:"default:true"`
	RouteID        uint   `json:"route_id"`
}
