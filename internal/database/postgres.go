// Package database owns the PostgreSQL connection and schema migration for
// the matching core's tables.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leasematch/leasematch/pkg/models"
)

// NewPostgresDB creates a PostgreSQL connection with pooling.
func NewPostgresDB(dsn string, maxOpen, maxIdle, connMaxLife int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if maxOpen == 0 {
		maxOpen = 25
	}
	if maxIdle == 0 {
		maxIdle = 5
	}
	if connMaxLife == 0 {
		connMaxLife = 3600
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLife) * time.Second)

	return db, nil
}

// Migrate creates or updates the tables the core owns or reads. The match
// record table carries the unique pair constraint that turns concurrent
// inserts of the same pair into updates.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DemandListing{},
		&models.PropertyListing{},
		&models.MatchRecord{},
		&models.Business{},
		&models.Message{},
	)
}
