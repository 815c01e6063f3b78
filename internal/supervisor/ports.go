package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// portScanTimeout bounds a single lsof run
const portScanTimeout = 10 * time.Second

// PortScanner finds an unmanaged process listening on a TCP port
type PortScanner interface {
	// FindProcessOnPort returns the pid of the single process listening on
	// port on all interfaces. ok is false when none or several are found.
	FindProcessOnPort(port int) (pid int, ok bool)
}

// NewPortScanner returns an lsof based scanner when lsof is installed and
// a connection table scanner otherwise
func NewPortScanner(logger *slog.Logger) PortScanner {
	if logger == nil {
		logger = slog.Default()
	}
	if path, err := exec.LookPath("lsof"); err == nil {
		return &LsofScanner{path: path, logger: logger}
	}
	return NewConnectionScanner(logger)
}

// LsofScanner asks lsof for the listeners on a port
type LsofScanner struct {
	path   string
	logger *slog.Logger
}

// FindProcessOnPort implements PortScanner
func (s *LsofScanner) FindProcessOnPort(port int) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), portScanTimeout)
	defer cancel()

	// -P keeps port numbers numeric; lsof exits 1 when nothing matches
	out, err := exec.CommandContext(ctx, s.path, "-n", "-P", "-i", fmt.Sprintf("TCP:%d", port)).Output()
	if err != nil && len(out) == 0 {
		s.logger.Debug("lsof found no listener", "port", port, "error", err)
		return 0, false
	}
	return ParseLsof(string(out), port)
}

// ParseLsof extracts the listener pid from `lsof -n -P -i TCP:<port>`
// output. A line qualifies when its address column is "*:<port>" and it is
// in LISTEN state; the pid is the second column. Lines for the same pid
// (IPv4 and IPv6) collapse; several different pids yield no pid.
func ParseLsof(output string, port int) (int, bool) {
	addr := fmt.Sprintf("*:%d ", port)

	pids := make(map[int]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, addr) || !strings.HasSuffix(strings.TrimSpace(line), "(LISTEN)") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil || pid <= 0 {
			continue
		}
		pids[pid] = struct{}{}
	}
	return singlePID(pids)
}

// ConnectionScanner reads the OS TCP connection table through gopsutil.
// It stands in for lsof on hosts that do not have it.
type ConnectionScanner struct {
	connections func() ([]psnet.ConnectionStat, error)
	logger      *slog.Logger
}

// NewConnectionScanner creates a ConnectionScanner
func NewConnectionScanner(logger *slog.Logger) *ConnectionScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionScanner{
		connections: func() ([]psnet.ConnectionStat, error) { return psnet.Connections("tcp") },
		logger:      logger,
	}
}

// FindProcessOnPort implements PortScanner
func (s *ConnectionScanner) FindProcessOnPort(port int) (int, bool) {
	conns, err := s.connections()
	if err != nil {
		s.logger.Debug("reading connection table failed", "error", err)
		return 0, false
	}
	return listenerPID(conns, port)
}

// listenerPID applies the lsof rule to connection table entries: LISTEN
// state on a wildcard address for port
func listenerPID(conns []psnet.ConnectionStat, port int) (int, bool) {
	pids := make(map[int]struct{})
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) || c.Pid <= 0 {
			continue
		}
		if !isWildcard(c.Laddr.IP) {
			continue
		}
		pids[int(c.Pid)] = struct{}{}
	}
	return singlePID(pids)
}

func isWildcard(ip string) bool {
	switch ip {
	case "", "*", "0.0.0.0", "::", "[::]":
		return true
	}
	return false
}

func singlePID(pids map[int]struct{}) (int, bool) {
	if len(pids) != 1 {
		return 0, false
	}
	for pid := range pids {
		return pid, true
	}
	return 0, false
}
