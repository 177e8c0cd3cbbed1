package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gryphrace/paddock/internal/models"
)

var conn *gorm.DB

// Init opens (or creates) the sqlite database at path and migrates the schema.
func Init(path string) error {
	var err error
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	conn, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer; cap the pool accordingly.
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := conn.AutoMigrate(
		&models.User{},
		&models.VerifyingUser{},
		&models.CountdownChannel{},
		&models.CountdownEntry{},
		&models.FeatureFlag{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// Composite indexes that GORM doesn't auto-create from struct tags.
	conn.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_entry_channel_title ON countdown_entries(channel_id, title)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_verifying_created ON verifying_users(created_at)")

	return nil
}

func Conn() *gorm.DB {
	return conn
}
