package api

import (
	"github.com/charliek/railsvisor/internal/domain"
)

// StatusResponse represents the response for GET /api/v1/status
type StatusResponse struct {
	Status        string `json:"status"`
	PID           int    `json:"pid,omitempty"`
	Alive         bool   `json:"alive"`
	PIDFile       string `json:"pid_file"`
	Environment   string `json:"environment"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Command       string `json:"command"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ConfigFile    string `json:"config_file,omitempty"`
	APIVersion    string `json:"api_version"`
}

// ActionResponse represents the response for a successful lifecycle action
type ActionResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	PID     int    `json:"pid,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToStatusResponse converts domain.ServerInfo to StatusResponse
func ToStatusResponse(info domain.ServerInfo) StatusResponse {
	return StatusResponse{
		Status:      info.State.String(),
		PID:         info.PID,
		Alive:       info.Alive,
		PIDFile:     info.PIDFile,
		Environment: info.Environment,
		Host:        info.Host,
		Port:        info.Port,
		Command:     info.Command,
		APIVersion:  "v1",
	}
}
