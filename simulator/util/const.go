package util

// Simulator run states
const (
	Stopped = iota
	Running
	// Terminated means the node loop reached its final state and cannot be
	// started again.
	Terminated
)

// StateName returns the name of a run state.
func StateName(s uint8) string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}
