package broker

import "github.com/BioHazard786/warpcast/internal/signaling"

// slot holds the connection bound to one role and the messages addressed to
// that role while nothing is bound. pending is only non-empty while conn is nil.
type slot struct {
	role    signaling.Role
	conn    *Conn
	pending [][]byte
}

// SlotStatus is a point-in-time view of a slot.
type SlotStatus struct {
	Role    signaling.Role `json:"role"`
	Bound   bool           `json:"bound"`
	Remote  string         `json:"remote,omitempty"`
	Pending int            `json:"pending"`
}

func (s *slot) status() SlotStatus {
	st := SlotStatus{Role: s.role, Pending: len(s.pending)}
	if s.conn != nil {
		st.Bound = true
		st.Remote = s.conn.remote
	}
	return st
}
