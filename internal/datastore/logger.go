package datastore

import "github.com/campusfit/campusfit-go/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
