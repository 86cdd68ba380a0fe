package models

import (
	"gorm.io/gorm"
)

// Passenger is a rider managed by admin tooling and consumed here as
// scheduling input. GuardianID points at the parent User who receives
// trip notifications. QRToken is an opaque identity token resolved by
// the attendance ledger.
type Passenger struct {
	gorm.Model

	Name           string  `json:"name" binding:"required"`
	HomeLat        float64 `json:"home_lat"`
	HomeLng        float64 `json:"home_lng"`
	HomeAddress    string  `json:"home_address"`
	OrganizationID uint    `json:"organization_id" gorm:"index"`
	BusID          *uint   `json:"bus_id" gorm:"index"`
	RouteID        *uint   `json:"route_id"`
	GuardianID     uint    `json:"guardian_id" gorm:"index"`
	Guardian       User    `gorm:"foreignKey:GuardianID" json:"-"`
	QRToken        string  `json:"-" gorm:"uniqueIndex"`
}
