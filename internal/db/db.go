package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-availability-backend/config"
	"parking-availability-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := applyIndexDDL(db); err != nil {
		log.Printf("Warning: failed to apply some index DDL: %v. Continuing without them.", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate runs AutoMigrate for every model. Exposed separately so tests can
// set up an in-memory database without a real DSN.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Area{},
		&model.Level{},
		&model.Slot{},
		&model.Sensor{},
		&model.Observation{},
		&model.Session{},
		&model.User{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyIndexDDL creates the descending composite indexes AutoMigrate cannot
// express. The latest-wins query and the active-session lookup both need a
// bounded top-1 scan rather than a full history scan.
func applyIndexDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE INDEX IF NOT EXISTS idx_observations_slot_ts_desc ON observations (slot_id, timestamp DESC, id DESC);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions (user_id, slot_id) WHERE end_time IS NULL;",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
