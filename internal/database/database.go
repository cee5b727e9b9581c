package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens (creating if needed) the sqlite audit store at path and migrates
// the schema.
func Init(path string) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens the sqlite database at path without touching the package-level DB.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables used by the audit store.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&RotationRecord{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		DB = nil
		return sqlDB.Close()
	}
	return nil
}
