package model

import "time"

// AreaType classifies a parking area.
type AreaType string

const (
	AreaTypeStreet AreaType = "street"
	AreaTypeGarage AreaType = "garage"
	AreaTypeLot    AreaType = "lot"
)

// Area represents a named parking structure or zoned area.
//
// OccupiedCount is a materialized projection over the latest observation of
// every slot in the area. It is rewritten inside the same transaction as each
// observation insert; AvailableCount derives from it and is not clamped.
type Area struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	AreaType      AreaType  `gorm:"size:32;not null" json:"area_type"`
	TotalCapacity int       `gorm:"not null" json:"total_capacity"`
	OccupiedCount int       `gorm:"not null;default:0" json:"occupied_count"`
	Boundary      string    `gorm:"type:text" json:"boundary,omitempty"` // JSON list of lat/lng pairs
	CreatedAt     time.Time `gorm:"not null" json:"-"`
	UpdatedAt     time.Time `gorm:"not null" json:"-"`

	// Associations
	Levels []Level `gorm:"foreignKey:AreaID" json:"-"`
	Slots  []Slot  `gorm:"foreignKey:AreaID" json:"-"`
}

// AvailableCount returns the declared capacity minus the cached occupied
// count. Negative when more slots report occupied than the area declares.
func (a *Area) AvailableCount() int {
	return a.TotalCapacity - a.OccupiedCount
}

// Level represents one floor of a multi-level garage within an Area.
type Level struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	AreaID   int64  `gorm:"uniqueIndex:idx_levels_area_name;not null" json:"area_id"`
	Name     string `gorm:"uniqueIndex:idx_levels_area_name;size:64;not null" json:"name"`
	Capacity int    `gorm:"not null" json:"capacity"`

	// Associations
	Area Area `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
