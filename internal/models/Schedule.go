package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Schedule is the admin-owned recurring or one-time plan binding a bus,
// driver and route to a boarding time. Weekdays empty means one-time;
// materialization of a one-time schedule is driven by an explicit date
// at creation.
type Schedule struct {
	gorm.Model

	OrganizationID uint   `json:"organization_id" gorm:"index"`
	BusID          uint   `json:"bus_id" gorm:"index"`
	DriverID       uint   `json:"driver_id"`
	RouteID        uint   `json:"route_id"`
	Route          Route  `gorm:"foreignKey:RouteID" json:"route,omitempty"`
	BoardingTime   string `json:"boarding_time"` // "15:04" time-of-day

	// Uppercase weekday names ("MONDAY", ...) for recurring schedules.
	Weekdays pq.StringArray `gorm:"type:text[]" json:"weekdays"`

	Active bool `json:"active" gorm:"default:true"`
}

// IsRecurring reports whether the schedule carries a weekday set.
func (s *Schedule) IsRecurring() bool {
	return len(s.Weekdays) > 0
}
