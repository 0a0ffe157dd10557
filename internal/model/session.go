package model

import "time"

// Session is one user's continuous claim on a slot, from occupy to leave.
// EndTime nil means the session is still active. At most one active session
// exists per (user, slot) pair; the store enforces this inside the occupy
// transaction rather than with a uniqueness constraint.
type Session struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	UserID     int64      `gorm:"index:idx_sessions_user_slot;not null" json:"user_id"`
	SlotID     int64      `gorm:"index:idx_sessions_user_slot;not null" json:"slot_id"`
	StartTime  time.Time  `gorm:"not null" json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	AmountDue  float64    `gorm:"not null;default:0" json:"amount_due"`
	AmountPaid float64    `gorm:"not null;default:0" json:"amount_paid"`
	Paid       bool       `gorm:"not null;default:false" json:"paid"`
	Feedback   string     `gorm:"size:512" json:"feedback,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"-"`
	UpdatedAt  time.Time  `gorm:"not null" json:"-"`

	// Associations
	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Slot Slot `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s.EndTime == nil
}
