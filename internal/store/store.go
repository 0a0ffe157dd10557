package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parking-availability-backend/internal/model"
)

// ErrNotFound is returned when a referenced slot, user, or session does not
// exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations on the parking
// core: the observation log, occupancy resolution, area aggregation, and the
// session lifecycle.
type Store interface {
	// Event log and occupancy resolution.
	AppendObservation(ctx context.Context, p AppendParams) (*model.Observation, bool, error)
	LatestObservation(ctx context.Context, slotID int64) (*model.Observation, error)
	IsAvailable(ctx context.Context, slotID int64) (bool, error)
	AreaOccupiedCount(ctx context.Context, areaID int64) (int, error)
	RecentObservations(ctx context.Context, limit int) ([]model.Observation, error)

	// Session lifecycle.
	Occupy(ctx context.Context, userID, slotID int64, now time.Time) (OccupyResult, *model.Session, error)
	Leave(ctx context.Context, userID, slotID int64, now time.Time, feedback string) (LeaveResult, *model.Session, error)
	Pay(ctx context.Context, sessionID int64) (*model.Session, error)
	ActiveSession(ctx context.Context, userID, slotID int64) (*model.Session, error)
	SessionsForUser(ctx context.Context, userID int64) ([]model.Session, error)

	// Identity.
	GetOrCreateUser(ctx context.Context, phone, name string) (*model.User, error)
	GetOrCreateSensor(ctx context.Context, code string, slotID int64) (*model.Sensor, error)

	// DB exposes the underlying handle for read-only handler queries.
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db              *gorm.DB
	ratePerHalfHour float64
}

// NewGormStore creates a new GORM-backed store charging the given rate per
// half hour of occupancy.
func NewGormStore(db *gorm.DB, ratePerHalfHour float64) Store {
	return &gormStore{db: db, ratePerHalfHour: ratePerHalfHour}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// AppendParams describes one occupancy reading to record.
type AppendParams struct {
	SlotID    int64
	Occupied  bool
	Timestamp time.Time // zero means now
	SensorID  *int64
}

// AppendObservation records an occupancy reading and rewrites the owning
// area's cached occupied count in the same transaction. The second return
// value reports whether the slot's resolved state flipped from occupied to
// free, so the caller can notify area subscribers.
func (s *gormStore) AppendObservation(ctx context.Context, p AppendParams) (*model.Observation, bool, error) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}

	var obs model.Observation
	var freed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.Slot
		if err := tx.First(&slot, p.SlotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("slot %d: %w", p.SlotID, ErrNotFound)
			}
			return fmt.Errorf("failed to load slot %d: %w", p.SlotID, err)
		}

		wasOccupied, err := slotOccupied(tx, slot.ID)
		if err != nil {
			return err
		}

		obs = model.Observation{
			SlotID:    slot.ID,
			Occupied:  p.Occupied,
			Timestamp: p.Timestamp,
			SensorID:  p.SensorID,
		}
		if err := tx.Create(&obs).Error; err != nil {
			return fmt.Errorf("failed to append observation for slot %d: %w", slot.ID, err)
		}

		if err := recountArea(tx, slot.AreaID); err != nil {
			return err
		}

		nowOccupied, err := slotOccupied(tx, slot.ID)
		if err != nil {
			return err
		}
		freed = wasOccupied && !nowOccupied
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &obs, freed, nil
}

// LatestObservation returns the most recent reading for a slot, or nil when
// the slot has no history. Ties on timestamp resolve to the highest ID.
func (s *gormStore) LatestObservation(ctx context.Context, slotID int64) (*model.Observation, error) {
	return latestObservation(s.db.WithContext(ctx), slotID)
}

// IsAvailable reports whether a slot is free: no observation yet, or the
// latest one is not occupied. Always recomputed from the log, never cached.
func (s *gormStore) IsAvailable(ctx context.Context, slotID int64) (bool, error) {
	occupied, err := slotOccupied(s.db.WithContext(ctx), slotID)
	if err != nil {
		return false, err
	}
	return !occupied, nil
}

// AreaOccupiedCount is the authoritative count of slots in the area whose
// latest observation reports occupied. The Area.OccupiedCount column must
// always match this value after each append.
func (s *gormStore) AreaOccupiedCount(ctx context.Context, areaID int64) (int, error) {
	return areaOccupiedCount(s.db.WithContext(ctx), areaID)
}

// RecentObservations returns the newest readings across all slots, for the
// dashboard feed.
func (s *gormStore) RecentObservations(ctx context.Context, limit int) ([]model.Observation, error) {
	if limit <= 0 {
		limit = 10
	}
	var obs []model.Observation
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&obs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent observations: %w", err)
	}
	return obs, nil
}

// --- shared transaction-scoped helpers ---

func latestObservation(tx *gorm.DB, slotID int64) (*model.Observation, error) {
	var obs model.Observation
	err := tx.Where("slot_id = ?", slotID).
		Order("timestamp DESC, id DESC").
		First(&obs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest observation for slot %d: %w", slotID, err)
	}
	return &obs, nil
}

func slotOccupied(tx *gorm.DB, slotID int64) (bool, error) {
	latest, err := latestObservation(tx, slotID)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.Occupied, nil
}

// areaOccupiedCount evaluates the latest observation of every slot in the
// area with one correlated top-1 subquery per slot.
func areaOccupiedCount(tx *gorm.DB, areaID int64) (int, error) {
	var count int64
	err := tx.Raw(`
		SELECT COUNT(*) FROM slots
		WHERE slots.area_id = ?
		  AND (
			SELECT observations.occupied FROM observations
			WHERE observations.slot_id = slots.id
			ORDER BY observations.timestamp DESC, observations.id DESC
			LIMIT 1
		  ) = ?`, areaID, true).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count occupied slots for area %d: %w", areaID, err)
	}
	return int(count), nil
}

// recountArea overwrites the area's cached occupied count with the
// authoritative recompute. Full recomputation is cheap at this update volume
// and keeps the cache equal to AreaOccupiedCount after every append.
func recountArea(tx *gorm.DB, areaID int64) error {
	count, err := areaOccupiedCount(tx, areaID)
	if err != nil {
		return err
	}
	if err := tx.Model(&model.Area{}).
		Where("id = ?", areaID).
		Update("occupied_count", count).Error; err != nil {
		return fmt.Errorf("failed to update occupied count for area %d: %w", areaID, err)
	}
	return nil
}
