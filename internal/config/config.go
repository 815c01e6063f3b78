package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charliek/railsvisor/internal/constants"
	"github.com/charliek/railsvisor/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level railsvisor configuration.
//
// A Config is mutable while it is being loaded and overridden by flags.
// Once Resolve has run it is treated as immutable by the supervisor.
type Config struct {
	Root        string `yaml:"root"`
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Server      string `yaml:"server"`
	Daemon      bool   `yaml:"daemon"`
	Debugger    bool   `yaml:"debugger"`
	PIDFile     string `yaml:"pid_file"`
	Timeout     int    `yaml:"timeout"`

	// CLI replaces the whole launch command; only --pid is appended.
	CLI string `yaml:"cli"`

	Zeus     bool   `yaml:"zeus"`
	ZeusPlan string `yaml:"zeus_plan"`

	// ForceRun kills whatever already listens on Port before launching.
	ForceRun bool `yaml:"force_run"`

	StartOnStart *bool  `yaml:"start_on_start,omitempty"` // nil = true
	EnvFile      string `yaml:"env_file"`

	Watch WatchConfig `yaml:"watch"`
	API   APIConfig   `yaml:"api"`
}

// WatchConfig defines which files trigger a restart
type WatchConfig struct {
	Paths    []string `yaml:"paths"`
	Ignore   []string `yaml:"ignore"`
	Debounce string   `yaml:"debounce"`
}

// APIConfig defines the optional HTTP control API
type APIConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"` // 0 disables the API
	Token string `yaml:"token"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	// First check if file exists
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	// Check file permissions for security
	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	config.ApplyDefaults()

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults fills every unset field with its default value
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = constants.DefaultEnvironment
	}
	if c.Host == "" {
		c.Host = constants.DefaultHost
	}
	if c.Port == 0 {
		c.Port = constants.DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = constants.DefaultTimeoutSeconds
	}
	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = append([]string(nil), constants.DefaultWatchPaths...)
	}
	if c.Watch.Ignore == nil {
		c.Watch.Ignore = append([]string(nil), constants.DefaultIgnorePatterns...)
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = constants.DefaultDebounce.String()
	}
	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
}

// Resolve turns Root and PIDFile into absolute paths. A relative Root is
// taken relative to baseDir; an empty Root means baseDir itself. A relative
// PIDFile is taken relative to the resolved Root.
func (c *Config) Resolve(baseDir string) error {
	root, err := filepath.Abs(resolvePath(c.Root, baseDir))
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	c.Root = root

	pidFile := c.PIDFile
	if pidFile == "" {
		pidFile = filepath.Join(constants.PIDDir, c.Environment+".pid")
	}
	pidFile, err = filepath.Abs(resolvePath(pidFile, c.Root))
	if err != nil {
		return fmt.Errorf("resolving pid file: %w", err)
	}
	c.PIDFile = pidFile

	return nil
}

// ShouldStartOnStart reports whether the server is launched when watching begins
func (c *Config) ShouldStartOnStart() bool {
	return c.StartOnStart == nil || *c.StartOnStart
}

// TimeoutDuration returns the configured timeout as a duration
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// DebounceDuration parses the watch debounce interval
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return constants.DefaultDebounce, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("parsing watch.debounce: %w", err)
	}
	return d, nil
}

// APIEnabled reports whether the control API should be served
func (c *Config) APIEnabled() bool {
	return c.API.Port > 0
}
