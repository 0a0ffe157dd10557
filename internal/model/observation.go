package model

import "time"

// Observation is one timestamped occupancy reading for a slot.
//
// The table is append-only: rows are never updated or deleted by normal
// operation, and the full history of a slot is the set of its observations.
// The composite index (slot_id, timestamp DESC) backs the latest-wins query;
// see db.Init for the descending-index DDL.
type Observation struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	SlotID    int64     `gorm:"index:idx_observations_slot_ts;not null" json:"slot_id"`
	Occupied  bool      `gorm:"not null" json:"occupied"`
	Timestamp time.Time `gorm:"index:idx_observations_slot_ts;not null" json:"timestamp"`
	SensorID  *int64    `json:"sensor_id,omitempty"`

	// Associations
	Slot   Slot    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sensor *Sensor `json:"-"`
}
