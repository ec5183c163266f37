package session

// State is where a session is in its lifecycle. A session moves through
// these states once, in order, and may skip Active and Closing when
// negotiation fails.
type State int

const (
	StateNegotiating State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}
