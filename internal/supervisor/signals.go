package supervisor

import (
	"errors"
	"log/slog"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/charliek/railsvisor/internal/domain"
	"github.com/charliek/railsvisor/internal/metrics"
	"github.com/charliek/railsvisor/internal/notify"
)

// Signal names used by the supervisor
const (
	SignalInterrupt = "INT"
	SignalKill      = "KILL"
)

// permissionDeniedMessage is shown when a pid cannot be signalled at all
const permissionDeniedMessage = "[railsvisor] error: don't have permission to KILL!"

// Signaller delivers named signals to processes
type Signaller interface {
	// Kill reports whether signal reached pid.
	Kill(signal string, pid int) bool
}

// killFunc matches unix.Kill
type killFunc func(pid int, sig syscall.Signal) error

// SignalController sends signals and classifies the outcome. Only a
// permission failure is surfaced to the user; a missing process or a bad
// signal name is an expected race and stays quiet.
type SignalController struct {
	kill     killFunc
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewSignalController creates a SignalController that reports permission
// failures to notifier
func NewSignalController(notifier notify.Notifier, logger *slog.Logger) *SignalController {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalController{
		kill:     unix.Kill,
		notifier: notifier,
		logger:   logger,
	}
}

// Kill sends signal to pid and reports whether it was delivered
func (c *SignalController) Kill(signal string, pid int) bool {
	return c.Send(signal, pid).OK()
}

// Send sends signal to pid and returns the classified outcome
func (c *SignalController) Send(signal string, pid int) domain.Delivery {
	d := c.send(signal, pid)
	metrics.ObserveSignal(signalLabel(signal), d.String())

	if d == domain.PermissionDenied {
		c.notifier.Info(permissionDeniedMessage)
	}
	c.logger.Debug("signal sent", "signal", signal, "pid", pid, "result", d.String())
	return d
}

func (c *SignalController) send(signal string, pid int) domain.Delivery {
	sig, ok := ParseSignal(signal)
	if !ok {
		return domain.InvalidSignal
	}
	// kill(2) treats 0 and negative pids as process groups
	if pid <= 0 {
		return domain.InvalidPID
	}

	err := c.kill(pid, sig)
	switch {
	case err == nil:
		return domain.Delivered
	case errors.Is(err, syscall.EPERM):
		return domain.PermissionDenied
	case errors.Is(err, syscall.ESRCH):
		return domain.NoSuchProcess
	case errors.Is(err, syscall.EINVAL):
		return domain.InvalidSignal
	default:
		// kill(2) documents only EINVAL, EPERM and ESRCH
		c.logger.Debug("unexpected signal error", "signal", signal, "pid", pid, "error", err)
		return domain.NoSuchProcess
	}
}

// ParseSignal resolves a signal name such as "INT" or "SIGKILL". Unknown
// names report false. Signal 0 is not accepted.
func ParseSignal(name string) (syscall.Signal, bool) {
	if name == "" {
		return 0, false
	}
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, false
	}
	return sig, true
}

func signalLabel(name string) string {
	if sig, ok := ParseSignal(name); ok {
		return unix.SignalName(sig)
	}
	return "invalid"
}
