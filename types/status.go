package types

// Status is the conversation lifecycle state.
// IDLE -> ACTIVE <-> {PAUSED, COMPLETED, ERROR}.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
)

// Terminal reports whether the status stops automatic turn execution.
// Any status other than ACTIVE halts the loop until a user intent arrives.
func (s Status) Terminal() bool {
	return s != StatusActive
}
