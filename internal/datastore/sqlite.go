package datastore

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open opens the SQLite database and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", dir).
					Build()
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("backend", "sqlite").
			Build()
	}

	// SQLite allows one writer, and each :memory: connection is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	GetLogger().Info("opened database",
		logger.String("backend", "sqlite"),
		logger.String("path", path))
	return store.DataStore.Open()
}
