package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charliek/railsvisor/internal/domain"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors
func Validate(config *Config) error {
	var errs []string

	if config.Port < 1 || config.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port: must be between 1 and 65535, got %d", config.Port))
	}
	if config.Timeout < 1 {
		errs = append(errs, fmt.Sprintf("timeout: must be positive, got %d", config.Timeout))
	}
	if err := ValidateEnvironment(config.Environment); err != nil {
		errs = append(errs, err.Error())
	}

	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	if config.Watch.Debounce != "" {
		if d, err := time.ParseDuration(config.Watch.Debounce); err != nil {
			errs = append(errs, fmt.Sprintf("watch.debounce: invalid duration %q", config.Watch.Debounce))
		} else if d < 0 {
			errs = append(errs, "watch.debounce: must be non-negative")
		}
	}

	for i, p := range config.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("watch.paths[%d]: path cannot be empty", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidateEnvironment checks that an environment name can be used in a pid
// file name and on a shell command line without quoting
func ValidateEnvironment(name string) error {
	if name == "" {
		return &ValidationError{Field: "environment", Message: "environment cannot be empty"}
	}
	if strings.ContainsAny(name, " \t\n/\\'\"") {
		return &ValidationError{Field: "environment", Message: "environment cannot contain whitespace, quotes or path separators"}
	}
	return nil
}
