package models

import (
	"gorm.io/gorm"
)

// Route is the ordered stop list a bus serves, synthesized from the
// passengers assigned to that bus plus the organization depot.
// Stops are a single-owner ordered sequence; Seq is 0-based and contiguous.
type Route struct {
	gorm.Model

	Name           string `json:"name"`
	Description    string `json:"description"`
	BusID          uint   `json:"bus_id" gorm:"index"`
	OrganizationID uint   `json:"organization_id" gorm:"index"`

	// Geometry is the stop sequence rendered as a LINESTRING (SRID 4326),
	// stored as WKB. API responses convert it to GeoJSON.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	Stops []Stop `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
}
