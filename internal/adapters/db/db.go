/*
 * file: db.go
 * package: db
 * description:
 *     Establishes and configures the PostgreSQL connection via GORM,
 *     including pool tuning and schema auto-migration.
 */
package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kts-backend/fow-bot/internal/config"
	"github.com/kts-backend/fow-bot/internal/core/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a pooled connection to the database described by cfg
// and migrates the schema. GORM's own query logger is silenced and SQL
// statements are not logged anywhere; the shared zerolog logger only
// records the completed migration.
func Connect(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gdb.AutoMigrate(
		&domain.User{},
		&domain.Question{},
		&domain.Game{},
		&domain.GameScore{},
	); err != nil {
		return nil, fmt.Errorf("schema migration: %w", err)
	}
	log.Info().Msg("database schema migration completed")

	return gdb, nil
}
