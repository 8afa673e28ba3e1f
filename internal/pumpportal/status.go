package pumpportal

// State is the connection state machine:
// DISCONNECTED -> CONNECTING -> CONNECTED -> DISCONNECTED, and CLOSED after Close.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateClosed       State = "CLOSED"
)

// Status is the connection state plus the last human-readable error, if any.
type Status struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

// Connected reports whether the feed is live.
func (s Status) Connected() bool {
	return s.State == StateConnected
}
