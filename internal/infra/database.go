package infra

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and applies SQL
// migrations. Schema is managed exclusively via migrations — AutoMigrate
// cannot express the partial unique index that enforces one OPEN session
// per register, so it is not used at all.
func NewDatabase(dsn, migrationsDir string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if migrationsDir != "" {
		if err := RunMigrations(dsn, migrationsDir); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	return db, nil
}

// RunMigrations applies every pending migration from migrationsDir.
// Safe to re-run: an up-to-date schema is a no-op.
func RunMigrations(dsn, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
