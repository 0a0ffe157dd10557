package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parking-availability-backend/config"
	"parking-availability-backend/internal/fee"
	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/sim"
	"parking-availability-backend/internal/store"
)

func setupDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	testDB, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, testDB.AutoMigrate(
		&model.Area{},
		&model.Level{},
		&model.Slot{},
		&model.Sensor{},
		&model.Observation{},
		&model.Session{},
		&model.User{},
	))
	return testDB
}

// TestParkingSessionLifecycle walks the canonical scenario: a single slot in
// a capacity-1 area is occupied, held for 45 minutes, and released.
func TestParkingSessionLifecycle(t *testing.T) {
	testDB := setupDB(t, "lifecycle")
	appStore := store.NewGormStore(testDB, fee.DefaultRatePerHalfHour)
	ctx := context.Background()

	area := model.Area{Name: "Area A", AreaType: model.AreaTypeLot, TotalCapacity: 1}
	require.NoError(t, testDB.Create(&area).Error)
	slot := model.Slot{Code: "S", AreaID: area.ID}
	require.NoError(t, testDB.Create(&slot).Error)

	user, err := appStore.GetOrCreateUser(ctx, "15550009999", "U")
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("occupy marks the slot and the area", func(t *testing.T) {
		result, session, err := appStore.Occupy(ctx, user.ID, slot.ID, start)
		require.NoError(t, err)
		require.Equal(t, store.OccupyOK, result)
		require.NotNil(t, session)

		available, err := appStore.IsAvailable(ctx, slot.ID)
		require.NoError(t, err)
		assert.False(t, available)

		var cached model.Area
		require.NoError(t, testDB.First(&cached, area.ID).Error)
		assert.Equal(t, 1, cached.OccupiedCount)
		assert.Equal(t, 0, cached.AvailableCount())
	})

	t.Run("leave after 45 minutes frees the slot and bills 0.75", func(t *testing.T) {
		result, session, err := appStore.Leave(ctx, user.ID, slot.ID, start.Add(45*time.Minute), "plenty of space")
		require.NoError(t, err)
		require.Equal(t, store.LeaveOK, result)
		require.NotNil(t, session)
		assert.InDelta(t, 0.75, session.AmountDue, 1e-9)

		available, err := appStore.IsAvailable(ctx, slot.ID)
		require.NoError(t, err)
		assert.True(t, available)

		var cached model.Area
		require.NoError(t, testDB.First(&cached, area.ID).Error)
		assert.Equal(t, 0, cached.OccupiedCount)
	})

	t.Run("payment records the amount due", func(t *testing.T) {
		var session model.Session
		require.NoError(t, testDB.Where("user_id = ?", user.ID).First(&session).Error)

		paid, err := appStore.Pay(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, paid.Paid)
		assert.InDelta(t, 0.75, paid.AmountPaid, 1e-9)
	})
}

// TestSimulatedBurstKeepsAggregatesConsistent hammers the append path with
// randomized simulator batches and verifies the cached area counters never
// drift from the authoritative recompute.
func TestSimulatedBurstKeepsAggregatesConsistent(t *testing.T) {
	testDB := setupDB(t, "burst")
	appStore := store.NewGormStore(testDB, fee.DefaultRatePerHalfHour)
	ctx := context.Background()

	var areas []model.Area
	for _, name := range []string{"North Garage", "South Lot"} {
		area := model.Area{Name: name, AreaType: model.AreaTypeGarage, TotalCapacity: 5}
		require.NoError(t, testDB.Create(&area).Error)
		for i := 0; i < 5; i++ {
			require.NoError(t, testDB.Create(&model.Slot{
				Code:   name[:1] + "-" + string(rune('1'+i)),
				AreaID: area.ID,
			}).Error)
		}
		areas = append(areas, area)
	}

	cfg := &config.Config{
		Simulator: config.SimulatorConfig{
			Enabled:             true,
			UpdatesPerTick:      20,
			OccupiedProbability: 0.5,
		},
	}
	svc := sim.NewService(cfg, appStore, nil)

	for tick := 0; tick < 5; tick++ {
		require.NoError(t, svc.Tick(ctx))

		for _, area := range areas {
			authoritative, err := appStore.AreaOccupiedCount(ctx, area.ID)
			require.NoError(t, err)

			var cached model.Area
			require.NoError(t, testDB.First(&cached, area.ID).Error)
			assert.Equal(t, authoritative, cached.OccupiedCount,
				"area %s diverged after tick %d", area.Name, tick)
		}
	}

	// Latest-wins holds for every slot: the resolved observation is the one
	// with the maximum (timestamp, id) in that slot's history.
	var slots []model.Slot
	require.NoError(t, testDB.Find(&slots).Error)
	for _, slot := range slots {
		latest, err := appStore.LatestObservation(ctx, slot.ID)
		require.NoError(t, err)
		if latest == nil {
			continue
		}
		var newer int64
		require.NoError(t, testDB.Model(&model.Observation{}).
			Where("slot_id = ? AND (timestamp > ? OR (timestamp = ? AND id > ?))",
				slot.ID, latest.Timestamp, latest.Timestamp, latest.ID).
			Count(&newer).Error)
		assert.Zero(t, newer, "slot %s has an observation newer than the resolved latest", slot.Code)
	}
}
