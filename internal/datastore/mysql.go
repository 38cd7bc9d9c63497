package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/errors"
	"github.com/campusfit/campusfit-go/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func mysqlDSN(s conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Output.MySQL
	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("backend", "mysql").
			Context("host", cfg.Host).
			Build()
	}

	store.DB = db
	GetLogger().Info("opened database",
		logger.String("backend", "mysql"),
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database))
	return store.DataStore.Open()
}
