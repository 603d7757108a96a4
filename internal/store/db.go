package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/campanio/backend/internal/config"
	"github.com/campanio/backend/internal/logger"
	"github.com/campanio/backend/internal/model/chat"
	"github.com/campanio/backend/internal/model/day"
)

// Open connects to the configured database. Errors are translated so unique
// violations surface as gorm.ErrDuplicatedKey on every driver.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.URL)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := gormLogger.Warn
	if cfg.Debug {
		logLevel = gormLogger.Info
	}

	log.Info("Connecting to database...", "driver", cfg.Driver)
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newQueryLogger(log, logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&day.Day{}, &chat.Chat{}, &chat.Message{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}
