// Package pidfile reads and removes the pid file a supervised server writes
// for itself. The supervisor never creates the file in normal operation; the
// launched server owns it and the supervisor only observes it.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charliek/railsvisor/internal/domain"
	"github.com/shirou/gopsutil/v3/process"
)

// PIDFile accesses a pid file at a fixed absolute path.
//
// PIDFile holds no open handles, so each call observes the file system
// afresh. It assumes the server is the only writer.
type PIDFile struct {
	path string
}

// New creates a PIDFile for the given path, made absolute
func New(path string) (*PIDFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving pid file path: %w", err)
	}
	return &PIDFile{path: abs}, nil
}

// Path returns the absolute pid file path
func (p *PIDFile) Path() string {
	return p.path
}

// Exists reports whether the path refers to a regular file
func (p *PIDFile) Exists() bool {
	info, err := os.Stat(p.path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Read returns the pid stored in the file. ok is false when the file is
// absent or does not hold an integer. err is only set for I/O failures
// other than absence.
func (p *PIDFile) Read() (pid int, ok bool, err error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", domain.ErrPIDFileUnreadable, err)
	}

	pid, ok = ParsePID(data)
	return pid, ok, nil
}

// Remove deletes the file. Removing an absent file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// ParsePID parses pid file contents. Surrounding whitespace is ignored;
// anything else that is not a base-10 integer yields ok == false.
func ParsePID(data []byte) (pid int, ok bool) {
	pidStr := strings.TrimSpace(string(data))

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, false
	}
	return pid, true
}

// ProcessExists checks if a process with the given PID exists
func ProcessExists(pid int) bool {
	if pid <= 0 || pid > math.MaxInt32 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}
