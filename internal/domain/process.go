package domain

// ServerState represents where the supervised server is in its lifecycle.
// A supervisor moves Idle -> Starting -> Running -> Stopping -> Idle, and
// falls back from Starting to Idle when the pid file never appears.
type ServerState string

const (
	// ServerStateIdle indicates no server is being managed
	ServerStateIdle ServerState = "idle"
	// ServerStateStarting indicates a launch is waiting for the pid file
	ServerStateStarting ServerState = "starting"
	// ServerStateRunning indicates the pid file appeared after a launch
	ServerStateRunning ServerState = "running"
	// ServerStateStopping indicates signals are being delivered
	ServerStateStopping ServerState = "stopping"
)

// String returns the string representation of ServerState
func (s ServerState) String() string {
	return string(s)
}

// IsRunning returns true if the server is in a running state
func (s ServerState) IsRunning() bool {
	return s == ServerStateRunning
}

// IsTransitioning returns true while a start or stop is in flight
func (s ServerState) IsTransitioning() bool {
	return s == ServerStateStarting || s == ServerStateStopping
}

// ServerInfo is a point-in-time view of the supervised server
type ServerInfo struct {
	State       ServerState `json:"status"`
	PID         int         `json:"pid,omitempty"`
	Alive       bool        `json:"alive"`
	PIDFile     string      `json:"pid_file"`
	Environment string      `json:"environment"`
	Host        string      `json:"host"`
	Port        int         `json:"port"`
	Command     string      `json:"command"`
}
