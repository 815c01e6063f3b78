package domain

import "errors"

// Domain errors
var (
	ErrServerNotRunning  = errors.New("server not running")
	ErrServerNotStarted  = errors.New("server did not write its pid file in time")
	ErrServerNotStopped  = errors.New("pid file still present after stop")
	ErrPIDFileUnreadable = errors.New("pid file unreadable")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeServerNotRunning  = "SERVER_NOT_RUNNING"
	ErrCodeServerNotStarted  = "SERVER_NOT_STARTED"
	ErrCodeServerNotStopped  = "SERVER_NOT_STOPPED"
	ErrCodePIDFileUnreadable = "PID_FILE_UNREADABLE"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrServerNotRunning):
		return ErrCodeServerNotRunning
	case errors.Is(err, ErrServerNotStarted):
		return ErrCodeServerNotStarted
	case errors.Is(err, ErrServerNotStopped):
		return ErrCodeServerNotStopped
	case errors.Is(err, ErrPIDFileUnreadable):
		return ErrCodePIDFileUnreadable
	default:
		return "INTERNAL_ERROR"
	}
}
