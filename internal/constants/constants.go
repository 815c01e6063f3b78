// Package constants provides shared configuration values used across the railsvisor application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "railsvisor.yaml"

	// EnvVarName is the environment variable carrying the application environment
	EnvVarName = "RAILS_ENV"
)

// Server defaults
const (
	// DefaultHost is the address the server binds to
	DefaultHost = "localhost"

	// DefaultPort is the port the server listens on
	DefaultPort = 3000

	// DefaultEnvironment is the application environment
	DefaultEnvironment = "development"

	// DefaultTimeoutSeconds bounds how long start and stop wait for the pid file
	DefaultTimeoutSeconds = 30

	// DefaultZeusPlan is the zeus plan used when none is configured
	DefaultZeusPlan = "server"

	// PIDDir is the pid file directory relative to the application root
	PIDDir = "tmp/pids"

	// ServerCommand is the default server launch command
	ServerCommand = "rails server"

	// ZeusCommand is the external orchestrator executable
	ZeusCommand = "zeus"
)

// Wait loop
const (
	// MaxWaitCount is the number of sleeps a wait loop performs before giving up
	MaxWaitCount = 10
)

// Watcher defaults
const (
	// DefaultDebounce is the quiet period before a batch of file changes is delivered
	DefaultDebounce = 500 * time.Millisecond
)

var (
	// DefaultWatchPaths are watched when the config names none
	DefaultWatchPaths = []string{"Gemfile.lock", "config", "lib"}

	// DefaultIgnorePatterns are never watched
	DefaultIgnorePatterns = []string{"tmp", "log", ".git", "node_modules"}
)

// API defaults
const (
	// DefaultAPIHost is the default host for the control API
	DefaultAPIHost = "127.0.0.1"

	// DefaultShutdownTimeout is the default timeout for graceful API shutdown
	DefaultShutdownTimeout = 10 * time.Second
)
