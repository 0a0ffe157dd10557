package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"parking-availability-backend/config"
	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/notification"
	"parking-availability-backend/internal/store"
)

// Service generates randomized occupancy observations, standing in for a
// fleet of real parking sensors. It writes through the same store path as
// the web layer, so every generated reading updates the area counters and
// can trigger slot-freed notifications.
type Service struct {
	cfg   *config.Config
	store store.Store
	pool  *notification.WorkerPool
	rng   *rand.Rand
}

// NewService creates a new simulator. The worker pool may be nil; freed-slot
// events are then dropped.
func NewService(cfg *config.Config, s store.Store, pool *notification.WorkerPool) *Service {
	return &Service{
		cfg:   cfg,
		store: s,
		pool:  pool,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run starts the simulation loop, emitting a batch of updates every
// configured interval until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Simulator.Enabled {
		log.Println("Simulator is disabled. Not starting.")
		return
	}
	log.Printf("Starting IoT simulator: %d updates every %s", s.cfg.Simulator.UpdatesPerTick, s.cfg.Simulator.Interval)

	ticker := time.NewTicker(s.cfg.Simulator.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Printf("Simulator tick failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Simulator shutting down")
			return
		}
	}
}

// Tick emits one batch of random observations on random slots.
func (s *Service) Tick(ctx context.Context) error {
	return s.emit(ctx, s.cfg.Simulator.UpdatesPerTick)
}

// RunBatch emits count observations with a fixed delay between each, for
// the scripted simulation command.
func (s *Service) RunBatch(ctx context.Context, count int, interval time.Duration) error {
	for i := 0; i < count; i++ {
		if err := s.emit(ctx, 1); err != nil {
			return err
		}
		log.Printf("[%d/%d] observation emitted", i+1, count)

		if i == count-1 {
			break
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) emit(ctx context.Context, n int) error {
	var slots []model.Slot
	if err := s.store.DB().WithContext(ctx).Find(&slots).Error; err != nil {
		return fmt.Errorf("failed to list slots: %w", err)
	}
	if len(slots) == 0 {
		return fmt.Errorf("no slots found, load sample data first")
	}

	for i := 0; i < n; i++ {
		slot := slots[s.rng.Intn(len(slots))]
		occupied := s.rng.Float64() < s.cfg.Simulator.OccupiedProbability

		sensor, err := s.store.GetOrCreateSensor(ctx, "SIM-"+slot.Code, slot.ID)
		if err != nil {
			return err
		}

		_, freed, err := s.store.AppendObservation(ctx, store.AppendParams{
			SlotID:   slot.ID,
			Occupied: occupied,
			SensorID: &sensor.ID,
		})
		if err != nil {
			return err
		}
		if freed && s.pool != nil {
			s.pool.Dispatch(slot.ID)
		}
	}
	return nil
}
