package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// A subscriber picks the areas they want slot-freed notifications for.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Areas []*Area `gorm:"many2many:subscription_area_mapping;"`
}
