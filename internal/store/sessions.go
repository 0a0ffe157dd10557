package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parking-availability-backend/internal/fee"
	"parking-availability-backend/internal/model"
)

// OccupyResult describes the outcome of an occupy request.
type OccupyResult string

const (
	OccupyOK            OccupyResult = "ok"
	OccupySlotTaken     OccupyResult = "slot_taken"
	OccupyAlreadyActive OccupyResult = "already_active"
)

// LeaveResult describes the outcome of a leave request.
type LeaveResult string

const (
	LeaveOK              LeaveResult = "ok"
	LeaveNoActiveSession LeaveResult = "no_active_session"
)

// Occupy starts a parking session for the user on the slot. The availability
// check, the active-session check, the session insert, and the occupied
// observation all run in one transaction so two concurrent occupies cannot
// both win the same slot.
//
// An unavailable slot or an already-active session yields a result variant,
// not an error; only a missing slot fails.
func (s *gormStore) Occupy(ctx context.Context, userID, slotID int64, now time.Time) (OccupyResult, *model.Session, error) {
	var session *model.Session
	result := OccupyOK

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.Slot
		if err := tx.First(&slot, slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("slot %d: %w", slotID, ErrNotFound)
			}
			return fmt.Errorf("failed to load slot %d: %w", slotID, err)
		}

		occupied, err := slotOccupied(tx, slot.ID)
		if err != nil {
			return err
		}
		if occupied {
			result = OccupySlotTaken
			return nil
		}

		active, err := activeSession(tx, userID, slotID)
		if err != nil {
			return err
		}
		if active != nil {
			result = OccupyAlreadyActive
			session = active
			return nil
		}

		session = &model.Session{
			UserID:    userID,
			SlotID:    slotID,
			StartTime: now,
		}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session for user %d on slot %d: %w", userID, slotID, err)
		}

		obs := model.Observation{SlotID: slot.ID, Occupied: true, Timestamp: now}
		if err := tx.Create(&obs).Error; err != nil {
			return fmt.Errorf("failed to append occupy observation for slot %d: %w", slot.ID, err)
		}

		return recountArea(tx, slot.AreaID)
	})
	if err != nil {
		return "", nil, err
	}
	return result, session, nil
}

// Leave closes the user's active session on the slot, computing the final
// amount due and attaching any feedback text. The free observation is
// appended unconditionally, even when no active session exists, matching the
// sensor-driven model where a leave is first of all an occupancy fact.
func (s *gormStore) Leave(ctx context.Context, userID, slotID int64, now time.Time, feedback string) (LeaveResult, *model.Session, error) {
	var session *model.Session
	result := LeaveOK

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.Slot
		if err := tx.First(&slot, slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("slot %d: %w", slotID, ErrNotFound)
			}
			return fmt.Errorf("failed to load slot %d: %w", slotID, err)
		}

		active, err := activeSession(tx, userID, slotID)
		if err != nil {
			return err
		}
		if active == nil {
			result = LeaveNoActiveSession
		} else {
			active.EndTime = &now
			active.AmountDue = fee.Calculate(s.ratePerHalfHour, active.StartTime, now)
			if feedback != "" {
				active.Feedback = feedback
			}
			if err := tx.Save(active).Error; err != nil {
				return fmt.Errorf("failed to close session %d: %w", active.ID, err)
			}
			session = active
		}

		obs := model.Observation{SlotID: slot.ID, Occupied: false, Timestamp: now}
		if err := tx.Create(&obs).Error; err != nil {
			return fmt.Errorf("failed to append leave observation for slot %d: %w", slot.ID, err)
		}

		return recountArea(tx, slot.AreaID)
	})
	if err != nil {
		return "", nil, err
	}
	return result, session, nil
}

// Pay marks the session paid. The amount recorded is always the session's
// AmountDue; there is no partial or over-payment handling.
func (s *gormStore) Pay(ctx context.Context, sessionID int64) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
			}
			return fmt.Errorf("failed to load session %d: %w", sessionID, err)
		}

		session.AmountPaid = session.AmountDue
		session.Paid = true
		if err := tx.Save(&session).Error; err != nil {
			return fmt.Errorf("failed to record payment for session %d: %w", sessionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSession returns the user's open session on the slot, or nil.
func (s *gormStore) ActiveSession(ctx context.Context, userID, slotID int64) (*model.Session, error) {
	return activeSession(s.db.WithContext(ctx), userID, slotID)
}

// SessionsForUser returns the user's sessions, active first, newest first.
func (s *gormStore) SessionsForUser(ctx context.Context, userID int64) ([]model.Session, error) {
	var sessions []model.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("end_time IS NOT NULL, start_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sessions for user %d: %w", userID, err)
	}
	return sessions, nil
}

func activeSession(tx *gorm.DB, userID, slotID int64) (*model.Session, error) {
	var session model.Session
	err := tx.Where("user_id = ? AND slot_id = ? AND end_time IS NULL", userID, slotID).
		Order("start_time DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session for user %d on slot %d: %w", userID, slotID, err)
	}
	return &session, nil
}
