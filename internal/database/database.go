package database

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/models"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
// The returned handle is passed down to services; nothing global.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.Database.DSNValue(),
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// Migrate runs GORM auto-migration for the tables this service owns. The
// library tables (articles, bases, concepts) belong to the platform and are
// never migrated here.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ContentRequestModel{},
		&models.ContentResponseModel{},
		&models.DiscussThreadModel{},
		&models.DiscussModel{},
	)
}
