package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-session-backend/config"
	"clinic-session-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate runs AutoMigrate plus the uniqueness DDL. Exposed separately so
// tests can run it against an in-memory database.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Clinic{},
		&model.Cabin{},
		&model.Equipment{},
		&model.EquipmentClinicAssignment{},
		&model.SmartPlugDevice{},
		&model.Service{},
		&model.ServiceEquipmentRequirement{},
		&model.Appointment{},
		&model.AppointmentService{},
		&model.UsageSession{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if err := applyUniquenessDDL(db); err != nil {
		return err
	}
	return nil
}

// applyUniquenessDDL creates the partial unique indexes that make concurrent
// session starts race-free: at most one ACTIVE/PAUSED session may exist per
// appointment and per equipment assignment. The in-transaction pre-checks in
// the store give a specific error to the loser; these indexes are the
// authoritative arbiter when two transactions pass the pre-check together.
// Partial indexes are supported by both postgres and sqlite.
func applyUniquenessDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_live_session_per_appointment " +
			"ON usage_sessions (appointment_id) WHERE current_status IN ('ACTIVE', 'PAUSED');",
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_live_session_per_assignment " +
			"ON usage_sessions (equipment_clinic_assignment_id) " +
			"WHERE current_status IN ('ACTIVE', 'PAUSED') AND equipment_clinic_assignment_id IS NOT NULL;",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
