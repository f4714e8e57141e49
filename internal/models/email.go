package models

import "time"

// Email represents a parsed unseen message, scoped to a single scan cycle
type Email struct {
	UID          uint32
	From         string
	FromRaw      string
	Subject      string
	MessageID    string
	InternalDate time.Time
	TraceID      string
}

// Credentials are the session credentials supplied at login. They are never persisted.
type Credentials struct {
	Address string
	Secret  string
	Phone   string
}

// IsZero reports whether no credentials are set
func (c Credentials) IsZero() bool {
	return c.Address == "" || c.Secret == ""
}

// RunState is the lifecycle state of the poll worker as tracked by the controller
type RunState int

const (
	Stopped RunState = iota
	Running
	StopRequested
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop-requested"
	default:
		return "stopped"
	}
}
