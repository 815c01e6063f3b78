package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/charliek/railsvisor/internal/domain"
)

// Controller is the lifecycle surface the API drives
type Controller interface {
	Info() domain.ServerInfo
	Start() bool
	Stop() (bool, error)
	Restart() (bool, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	controller Controller
	configFile string
	startedAt  time.Time
	logger     *slog.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(controller Controller, configFile string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		controller: controller,
		configFile: configFile,
		startedAt:  time.Now(),
		logger:     logger,
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := ToStatusResponse(h.controller.Info())
	resp.UptimeSeconds = int64(time.Since(h.startedAt).Seconds())
	resp.ConfigFile = h.configFile

	writeJSON(w, http.StatusOK, resp)
}

// Start handles POST /api/v1/start
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	if !h.controller.Start() {
		h.writeError(w, domain.ErrServerNotStarted)
		return
	}
	h.writeAction(w, "start")
}

// Stop handles POST /api/v1/stop
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.controller.Stop()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !stopped {
		h.writeError(w, domain.ErrServerNotStopped)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Success: true, Action: "stop"})
}

// Restart handles POST /api/v1/restart
func (h *Handlers) Restart(w http.ResponseWriter, r *http.Request) {
	started, err := h.controller.Restart()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !started {
		h.writeError(w, domain.ErrServerNotStarted)
		return
	}
	h.writeAction(w, "restart")
}

func (h *Handlers) writeAction(w http.ResponseWriter, action string) {
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Action:  action,
		PID:     h.controller.Info().PID,
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "an internal error occurred"

	switch {
	case errors.Is(err, domain.ErrServerNotStarted):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, domain.ErrServerNotStopped):
		message = err.Error()
	case errors.Is(err, domain.ErrPIDFileUnreadable):
		message = domain.ErrPIDFileUnreadable.Error()
		h.logger.Error("pid file unreadable", "error", err)
	case errors.Is(err, domain.ErrServerNotRunning):
		status = http.StatusConflict
		message = err.Error()
	default:
		// Log the actual error but return a sanitized message so internal
		// paths are not leaked
		h.logger.Error("internal error", "error", err)
	}

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  domain.ErrorCode(err),
	})
}
