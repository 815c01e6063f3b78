// Package reloader restarts the supervised server in response to file
// changes and announces each step to the user.
package reloader

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charliek/railsvisor/internal/config"
	"github.com/charliek/railsvisor/internal/notify"
)

// Reload actions
const (
	ActionStart   = "start"
	ActionRestart = "restart"
)

// Server is the part of the supervisor the reloader drives
type Server interface {
	Restart() (bool, error)
	Stop() (bool, error)
	PID() (int, bool)
}

// Reloader ties a Server to user notifications
type Reloader struct {
	server   Server
	cfg      *config.Config
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates a Reloader
func New(server Server, cfg *config.Config, notifier notify.Notifier, logger *slog.Logger) *Reloader {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		server:   server,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
	}
}

// Start announces the reloader and launches the server unless
// start_on_start is disabled
func (r *Reloader) Start() bool {
	r.notifier.Info(fmt.Sprintf("railsvisor will now restart your app on port %d using %s environment.",
		r.cfg.Port, r.cfg.Environment))
	if !r.cfg.ShouldStartOnStart() {
		return true
	}
	return r.Reload(ActionStart)
}

// Reload restarts the server. action only changes the wording and must be
// ActionStart or ActionRestart.
func (r *Reloader) Reload(action string) bool {
	title := capitalize(action) + "ing Rails..."
	r.notifier.Info(title)
	r.notifier.Notify(
		fmt.Sprintf("Rails %sing on port %d in %s environment...", action, r.cfg.Port, r.cfg.Environment),
		notify.Options{Title: title, Image: notify.ImagePending},
	)

	ok, err := r.server.Restart()
	if err != nil {
		r.logger.Error("restart failed", "action", action, "error", err)
	}

	if !ok {
		msg := fmt.Sprintf("Rails NOT %sed, check your log files.", action)
		r.notifier.Info(msg)
		r.notifier.Notify(msg, notify.Options{
			Title: fmt.Sprintf("Rails NOT %sed!", action),
			Image: notify.ImageFailed,
		})
		return false
	}

	pid, _ := r.server.PID()
	r.notifier.Info(fmt.Sprintf("Rails %sed, pid %d", action, pid))
	r.notifier.Notify(
		fmt.Sprintf("Rails %sed on port %d.", action, r.cfg.Port),
		notify.Options{Title: fmt.Sprintf("Rails %sed!", action), Image: notify.ImageSuccess},
	)
	return true
}

// Stop says goodbye and stops the server
func (r *Reloader) Stop() bool {
	r.notifier.Notify("Until next time...", notify.Options{
		Title: "Rails shutting down.",
		Image: notify.ImagePending,
	})
	ok, err := r.server.Stop()
	if err != nil {
		r.logger.Error("stop failed", "error", err)
		return false
	}
	return ok
}

// RunOnChange restarts the server after paths changed
func (r *Reloader) RunOnChange(paths []string) bool {
	r.logger.Info("files changed", "count", len(paths), "paths", paths)
	return r.Reload(ActionRestart)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
