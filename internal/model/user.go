package model

import "time"

// User identifies an end user by phone number. Created lazily on first
// login lookup.
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Phone     string    `gorm:"uniqueIndex;size:32;not null" json:"phone"`
	Name      string    `gorm:"size:128" json:"name,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Sessions []Session `gorm:"foreignKey:UserID"`
}
