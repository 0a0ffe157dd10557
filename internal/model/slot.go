package model

import "time"

// Slot represents an individual, uniquely identifiable parking space.
type Slot struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex:idx_slots_area_code;size:32;not null" json:"code"`
	AreaID      int64     `gorm:"uniqueIndex:idx_slots_area_code;index;not null" json:"area_id"`
	LevelID     *int64    `gorm:"index" json:"level_id,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Handicapped bool      `gorm:"not null;default:false" json:"handicapped"`
	ReservedFor string    `gorm:"size:64" json:"reserved_for,omitempty"` // e.g. VIP, staff
	CreatedAt   time.Time `gorm:"not null" json:"-"`
	UpdatedAt   time.Time `gorm:"not null" json:"-"`

	// Associations
	Area    Area     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Level   *Level   `json:"-"`
	Sensors []Sensor `gorm:"foreignKey:SlotID" json:"-"`
}

// HasLocation reports whether the slot carries coordinates.
func (s *Slot) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Sensor represents an IoT device reporting occupancy for one slot.
type Sensor struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;size:64;not null" json:"code"`
	SlotID      int64     `gorm:"index;not null" json:"slot_id"`
	Description string    `gorm:"size:256" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"-"`

	// Associations
	Slot Slot `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
