package supervisor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/charliek/railsvisor/internal/config"
	"github.com/charliek/railsvisor/internal/constants"
	"github.com/charliek/railsvisor/internal/domain"
	"github.com/charliek/railsvisor/internal/metrics"
	"github.com/charliek/railsvisor/internal/notify"
	"github.com/charliek/railsvisor/internal/pidfile"
)

// Wait phases, used as metric labels
const (
	phaseStart   = "start"
	phaseStop    = "stop"
	phaseCleanup = "cleanup"
)

// Supervisor starts and stops one server through its pid file.
//
// Lifecycle operations are serialized: the watcher and the control API may
// call in concurrently. Two supervisors sharing a pid file are not supported.
type Supervisor struct {
	mu sync.Mutex // serializes Start, Stop and Restart

	cfg      *config.Config
	pidFile  *pidfile.PIDFile
	launcher Launcher
	signals  Signaller
	scanner  PortScanner
	sleep    Sleeper
	logger   *slog.Logger

	stateMu sync.RWMutex
	state   domain.ServerState
}

// Option customizes a Supervisor
type Option func(*Supervisor)

// WithLauncher replaces the shell launcher
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// WithSignaller replaces the signal controller
func WithSignaller(sig Signaller) Option {
	return func(s *Supervisor) { s.signals = sig }
}

// WithPortScanner replaces the port scanner used by force run
func WithPortScanner(ps PortScanner) Option {
	return func(s *Supervisor) { s.scanner = ps }
}

// WithSleeper replaces time.Sleep in wait loops
func WithSleeper(sleep Sleeper) Option {
	return func(s *Supervisor) { s.sleep = sleep }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// New creates a Supervisor for cfg. The supervisor works on a copy whose
// root and pid file are made absolute, relative paths resolving against the
// working directory, so the launch command and the watched pid file always
// agree. notifier receives permission diagnostics from the default signal
// controller.
func New(cfg *config.Config, notifier notify.Notifier, opts ...Option) (*Supervisor, error) {
	resolved := *cfg
	cfg = &resolved
	if err := cfg.Resolve(""); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	pf, err := pidfile.New(cfg.PIDFile)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:     cfg,
		pidFile: pf,
		sleep:   time.Sleep,
		logger:  slog.Default(),
		state:   domain.ServerStateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.launcher == nil {
		s.launcher = NewShellLauncher(LauncherConfig{}, s.logger)
	}
	if s.signals == nil {
		s.signals = NewSignalController(notifier, s.logger)
	}
	if s.scanner == nil {
		s.scanner = NewPortScanner(s.logger)
	}

	return s, nil
}

// Config returns the supervisor configuration
func (s *Supervisor) Config() *config.Config {
	return s.cfg
}

// Command returns the launch command
func (s *Supervisor) Command() string {
	return BuildCommand(s.cfg)
}

// Environment returns the launch environment overrides
func (s *Supervisor) Environment() map[string]*string {
	return Environment(s.cfg)
}

// PIDFile returns the absolute pid file path
func (s *Supervisor) PIDFile() string {
	return s.pidFile.Path()
}

// PID returns the pid recorded in the pid file, if any
func (s *Supervisor) PID() (int, bool) {
	if !s.pidFile.Exists() {
		return 0, false
	}
	pid, ok, err := s.pidFile.Read()
	if err != nil {
		s.logger.Debug("reading pid file failed", "path", s.pidFile.Path(), "error", err)
		return 0, false
	}
	return pid, ok
}

// SleepTime is the pause between pid file checks. The wait loops sleep at
// most MaxWaitCount times, so a full wait lasts about the configured timeout.
func (s *Supervisor) SleepTime() time.Duration {
	return s.cfg.TimeoutDuration() / constants.MaxWaitCount
}

// State returns the lifecycle state
func (s *Supervisor) State() domain.ServerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Info returns a snapshot of the supervised server
func (s *Supervisor) Info() domain.ServerInfo {
	info := domain.ServerInfo{
		State:       s.State(),
		PIDFile:     s.pidFile.Path(),
		Environment: s.cfg.Environment,
		Host:        s.cfg.Host,
		Port:        s.cfg.Port,
		Command:     s.Command(),
	}
	if pid, ok := s.PID(); ok {
		info.PID = pid
		info.Alive = pidfile.ProcessExists(pid)
	}
	return info
}

// Start launches the server and waits for its pid file. It reports whether
// the pid file appeared within the timeout.
func (s *Supervisor) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.start()
	metrics.ObserveLifecycle("start", started)
	return started
}

// Stop stops the server recorded in the pid file: INT, a bounded wait, then
// KILL regardless, then removal of the pid file. Without a pid file it does
// nothing. It reports whether the pid file is gone; err is only set when
// the pid file exists but cannot be read.
func (s *Supervisor) Stop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped, err := s.stop()
	metrics.ObserveLifecycle("stop", stopped && err == nil)
	return stopped, err
}

// Restart stops then starts the server. A stop failure is returned as is;
// otherwise the start result is reported.
func (s *Supervisor) Restart() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stop(); err != nil {
		metrics.ObserveLifecycle("restart", false)
		return false, fmt.Errorf("stopping server: %w", err)
	}
	started := s.start()
	metrics.ObserveLifecycle("restart", started)
	return started, nil
}

func (s *Supervisor) start() bool {
	s.setState(domain.ServerStateStarting)

	if s.cfg.ForceRun {
		s.killUnmanaged()
	}

	command := s.Command()
	s.logger.Info("starting server", "command", command, "pid_file", s.pidFile.Path())

	if !s.launcher.Launch(command, s.Environment(), usesExternalTool(s.cfg)) {
		s.setState(domain.ServerStateIdle)
		return false
	}

	if !s.waitFor(phaseStart, s.pidFile.Exists) {
		s.logger.Warn("server did not write its pid file in time",
			"pid_file", s.pidFile.Path(), "timeout", s.cfg.TimeoutDuration())
		s.setState(domain.ServerStateIdle)
		return false
	}

	s.setState(domain.ServerStateRunning)
	return true
}

func (s *Supervisor) stop() (bool, error) {
	if !s.pidFile.Exists() {
		s.setState(domain.ServerStateIdle)
		return true, nil
	}

	previous := s.State()
	s.setState(domain.ServerStateStopping)

	pid, ok, err := s.pidFile.Read()
	if err != nil {
		s.setState(previous)
		return false, err
	}

	if ok {
		s.logger.Info("stopping server", "pid", pid)
		if s.signals.Kill(SignalInterrupt, pid) {
			s.waitFor(phaseStop, s.pidFileAbsent)
		}
		// The process may outlive its pid file
		s.signals.Kill(SignalKill, pid)
	} else {
		s.logger.Warn("pid file holds no pid, removing it", "pid_file", s.pidFile.Path())
	}

	stopped := s.removePIDFileAndWait()
	s.setState(domain.ServerStateIdle)
	return stopped, nil
}

// killUnmanaged kills a process holding the port that this supervisor did
// not start
func (s *Supervisor) killUnmanaged() {
	pid, ok := s.scanner.FindProcessOnPort(s.cfg.Port)
	if !ok {
		return
	}
	s.logger.Info("killing unmanaged process on port", "port", s.cfg.Port, "pid", pid)
	s.signals.Kill(SignalKill, pid)
	s.removePIDFileAndWait()
}

func (s *Supervisor) removePIDFileAndWait() bool {
	return s.waitFor(phaseCleanup, func() bool {
		if err := s.pidFile.Remove(); err != nil {
			s.logger.Debug("removing pid file failed", "error", err)
		}
		return s.pidFileAbsent()
	})
}

func (s *Supervisor) pidFileAbsent() bool {
	return !s.pidFile.Exists()
}

func (s *Supervisor) waitFor(phase string, cond func() bool) bool {
	began := time.Now()
	ok := WaitUntil(cond, constants.MaxWaitCount, s.SleepTime(), s.sleep)
	metrics.ObserveWait(phase, time.Since(began))
	return ok
}

func (s *Supervisor) setState(state domain.ServerState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	metrics.SetServerUp(state == domain.ServerStateRunning)
	s.logger.Debug("server state changed", "state", state.String())
}
