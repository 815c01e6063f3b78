package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charliek/railsvisor/internal/domain"
	"github.com/joho/godotenv"
)

// LoadEnvFile reads a .env file and returns the variables as a map
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	return env, nil
}

// MergeEnv merges multiple environment maps in order, with later maps taking precedence
func MergeEnv(envMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envMaps {
		for k, v := range env {
			result[k] = v
		}
	}
	return result
}

// LoadEnv loads the configured env_file, resolved against Root.
// Returns nil when no env_file is configured.
func (c *Config) LoadEnv() (map[string]string, error) {
	if c.EnvFile == "" {
		return nil, nil
	}
	env, err := LoadEnvFile(resolvePath(c.EnvFile, c.Root))
	if err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return env, nil
}

// resolvePath resolves a potentially relative path against a base directory
func resolvePath(path, baseDir string) string {
	if path == "" {
		return baseDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	if baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// FindConfigFile searches dir for a config file under its standard names,
// in order of preference
func FindConfigFile(dir string) (string, error) {
	candidates := []string{
		"railsvisor.yaml",
		"railsvisor.yml",
		".railsvisor.yaml",
		".railsvisor.yml",
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w in %s (tried: %v)", domain.ErrConfigNotFound, dir, candidates)
}

// CheckFilePermissions checks if a file has secure permissions.
// On Unix-like systems, it verifies the file is not world-writable.
func CheckFilePermissions(path string) error {
	// Skip permission check on Windows
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking file permissions: %w", err)
	}

	// The config names commands to execute, so others must not be able to edit it
	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("config file %s has insecure permissions: world-writable files can be modified by any user. Please run: chmod o-w %s", path, path)
	}

	return nil
}
