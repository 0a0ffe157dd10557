package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/store"
)

// Base coordinates the sample slots scatter around.
const (
	baseLat = -17.825
	baseLng = 31.053
)

type sampleArea struct {
	name     string
	areaType model.AreaType
	capacity int
	levels   []string
}

var sampleAreas = []sampleArea{
	{name: "Central Garage", areaType: model.AreaTypeGarage, capacity: 20, levels: []string{"Level 1", "Level 2"}},
	{name: "Main Street Lot", areaType: model.AreaTypeLot, capacity: 15},
	{name: "Downtown Street Parking", areaType: model.AreaTypeStreet, capacity: 10},
}

// LoadSampleData wipes the parking tables and loads the sample areas, slots,
// sensors, and one random initial observation per slot.
func LoadSampleData(ctx context.Context, s store.Store) error {
	db := s.DB().WithContext(ctx)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Println("Clearing existing parking data...")
	for _, m := range []any{
		&model.Observation{}, &model.Sensor{}, &model.Session{},
		&model.Slot{}, &model.Level{}, &model.Area{},
	} {
		if err := db.Where("1 = 1").Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}
	}

	log.Println("Loading sample parking areas and slots...")
	for _, sample := range sampleAreas {
		area := model.Area{
			Name:          sample.name,
			AreaType:      sample.areaType,
			TotalCapacity: sample.capacity,
		}
		if err := db.Create(&area).Error; err != nil {
			return fmt.Errorf("failed to create area %q: %w", sample.name, err)
		}

		var levels []model.Level
		for _, name := range sample.levels {
			level := model.Level{AreaID: area.ID, Name: name, Capacity: sample.capacity / len(sample.levels)}
			if err := db.Create(&level).Error; err != nil {
				return fmt.Errorf("failed to create level %q: %w", name, err)
			}
			levels = append(levels, level)
		}

		prefix := strings.ToUpper(sample.name[:3])
		for i := 1; i <= sample.capacity; i++ {
			lat := baseLat + (rng.Float64()-0.5)*0.002
			lng := baseLng + (rng.Float64()-0.5)*0.002

			slot := model.Slot{
				Code:        fmt.Sprintf("%s-%d", prefix, i),
				AreaID:      area.ID,
				Latitude:    &lat,
				Longitude:   &lng,
				Handicapped: rng.Intn(10) == 0,
			}
			if len(levels) > 0 {
				slot.LevelID = &levels[(i-1)*len(levels)/sample.capacity].ID
			}
			if rng.Intn(5) == 0 {
				slot.ReservedFor = []string{"VIP", "Staff"}[rng.Intn(2)]
			}
			if err := db.Create(&slot).Error; err != nil {
				return fmt.Errorf("failed to create slot %q: %w", slot.Code, err)
			}

			sensor := model.Sensor{
				Code:        uuid.NewString(),
				SlotID:      slot.ID,
				Description: fmt.Sprintf("Sensor for %s in %s", slot.Code, area.Name),
			}
			if err := db.Create(&sensor).Error; err != nil {
				return fmt.Errorf("failed to create sensor for slot %q: %w", slot.Code, err)
			}

			// Random initial reading, through the append path so the area
			// counter stays in sync.
			if _, _, err := s.AppendObservation(ctx, store.AppendParams{
				SlotID:   slot.ID,
				Occupied: rng.Intn(2) == 0,
				SensorID: &sensor.ID,
			}); err != nil {
				return fmt.Errorf("failed to seed observation for slot %q: %w", slot.Code, err)
			}
		}
	}

	log.Println("Sample parking data loaded successfully!")
	return nil
}
