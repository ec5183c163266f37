package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role is one of the two fixed negotiation participants.
type Role string

const (
	// RoleSender is the initiator: it produces the offer.
	RoleSender Role = "sender"
	// RoleReceiver is the responder: it answers the offer.
	RoleReceiver Role = "receiver"
)

// Roles lists every role a broker has a slot for.
var Roles = [...]Role{RoleSender, RoleReceiver}

var ErrUnknownRole = errors.New("unknown role")

// ParseRole validates a role declaration token.
func ParseRole(token string) (Role, error) {
	switch Role(token) {
	case RoleSender, RoleReceiver:
		return Role(token), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, token)
}

// Opposite returns the role messages from r are relayed to.
func (r Role) Opposite() Role {
	if r == RoleSender {
		return RoleReceiver
	}
	return RoleSender
}

func (r Role) String() string { return string(r) }

// Descriptor kinds.
const (
	DescriptorOffer  = "offer"
	DescriptorAnswer = "answer"
)

// Descriptor is an offer or answer session description. Its SDP body is
// owned by the RTC engine and carried verbatim.
type Descriptor struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

var ErrInvalidDescriptor = errors.New("invalid negotiation descriptor")

// Encode renders the descriptor as the JSON text frame sent on the wire.
func (d Descriptor) Encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeDescriptor parses a wire message and checks it is of the wanted kind.
func DecodeDescriptor(text, want string) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if d.Type != want {
		if e, ok := DecodeError(text); ok {
			return Descriptor{}, fmt.Errorf("%w: broker error: %s", ErrInvalidDescriptor, e)
		}
		return Descriptor{}, fmt.Errorf("%w: got type %q, want %q", ErrInvalidDescriptor, d.Type, want)
	}
	if d.SDP == "" {
		return Descriptor{}, fmt.Errorf("%w: empty sdp", ErrInvalidDescriptor)
	}
	return d, nil
}

// MessageTypeError tags the broker's error replies.
const MessageTypeError = "error"

// ErrorPayload is what the broker sends before closing a rejected connection.
type ErrorPayload struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// EncodeError builds an error reply frame.
func EncodeError(reason string) []byte {
	b, _ := json.Marshal(ErrorPayload{Type: MessageTypeError, Error: reason})
	return b
}

// DecodeError reports whether text is a broker error reply and returns its reason.
func DecodeError(text string) (string, bool) {
	var p ErrorPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil || p.Type != MessageTypeError {
		return "", false
	}
	return p.Error, true
}
