package domain

// Delivery is the outcome of sending a signal to a process
type Delivery int

const (
	// Delivered means the kernel accepted the signal
	Delivered Delivery = iota
	// PermissionDenied means the caller may not signal the process
	PermissionDenied
	// NoSuchProcess means the pid does not exist, usually because it already exited
	NoSuchProcess
	// InvalidSignal means the signal name is unknown
	InvalidSignal
	// InvalidPID means the pid can never name a single process
	InvalidPID
)

var deliveryNames = map[Delivery]string{
	Delivered:        "delivered",
	PermissionDenied: "permission_denied",
	NoSuchProcess:    "no_such_process",
	InvalidSignal:    "invalid_signal",
	InvalidPID:       "invalid_pid",
}

// String returns the label used in logs and metrics
func (d Delivery) String() string {
	if name, ok := deliveryNames[d]; ok {
		return name
	}
	return "unknown"
}

// OK reports whether the signal reached the process
func (d Delivery) OK() bool {
	return d == Delivered
}
