package review

import "github.com/campusfit/campusfit-go/internal/logger"

// GetLogger returns the review module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("review")
}
