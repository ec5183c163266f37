package session

import (
	"errors"
	"fmt"
)

var (
	ErrNegotiationTimeout = errors.New("negotiation timeout")
	ErrChannel            = errors.New("signaling channel error")
	ErrEngine             = errors.New("rtc engine error")
	ErrProtocol           = errors.New("unexpected signaling message")
	ErrCancelled          = errors.New("session cancelled")
	ErrNoTracks           = errors.New("capture source has no tracks")
	ErrConnectionFailed   = errors.New("peer connection failed")
)

// Phase names the step of a session that failed.
type Phase string

const (
	PhaseCapture     Phase = "capture"
	PhaseConnect     Phase = "connect"
	PhaseRoleDeclare Phase = "role-declare"
	PhaseOfferSend   Phase = "offer-send"
	PhaseOfferWait   Phase = "offer-wait"
	PhaseAnswerWait  Phase = "answer-wait"
	PhaseAnswerSend  Phase = "answer-send"
	PhaseEngineApply Phase = "engine-apply"
	PhaseActive      Phase = "active"
)

// Error is a session failure and the phase it happened in.
type Error struct {
	Phase   Phase
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Phase, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(phase Phase, err error) *Error {
	return &Error{Phase: phase, Err: err}
}

func WrapError(phase Phase, err error, details string) *Error {
	return &Error{Phase: phase, Err: err, Details: details}
}

// engineErr tags a collaborator failure as ErrEngine while keeping the cause.
func engineErr(err error) error {
	return fmt.Errorf("%w: %w", ErrEngine, err)
}

func channelErr(err error) error {
	return fmt.Errorf("%w: %w", ErrChannel, err)
}
