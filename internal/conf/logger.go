package conf

import "github.com/campusfit/campusfit-go/internal/logger"

// GetLogger returns the conf module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
