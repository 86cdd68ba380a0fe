package models

import (
	"gorm.io/gorm"
)

// Organization represents a school or fleet operator that owns buses,
// passengers, routes and schedules. The depot is the implicit first and
// last stop of every synthesized route.
type Organization struct {
	gorm.Model

	Name    string `json:"name" binding:"required"`
	Email   string `gorm:"unique;not null" json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`

	// Depot location. A zero HasDepot means coordinates are unknown and
	// routes are synthesized without origin/return stops.
	DepotLat     float64 `json:"depot_lat"`
	DepotLng     float64 `json:"depot_lng"`
	DepotAddress string  `json:"depot_address"`
	HasDepot     bool    `json:"has_depot" gorm:"default:false"`

	Buses      []Bus       `gorm:"foreignKey:OrganizationID" json:"buses,omitempty"`
	Passengers []Passenger `gorm:"foreignKey:OrganizationID" json:"passengers,omitempty"`
}
