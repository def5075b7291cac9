package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSignalStale        = errors.New("signal is older than the staleness window")
	ErrSignalVersion      = errors.New("signal schema version mismatch")
	ErrStreamNotLive      = errors.New("broadcaster is not live")
	ErrStreamNotFound     = errors.New("stream not found")
	ErrTransportClosed    = errors.New("transport reported failed or disconnected")
	ErrSessionReplaced    = errors.New("session replaced by a newer offer")
	ErrSessionClosed      = errors.New("session is closed")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
)

// NegotiationError wraps a failure of one offer/answer step so callers can
// render consistent feedback instead of each call site inventing its own.
type NegotiationError struct {
	Stage string // "offer", "answer", "remote-description", "candidate", "await"
	Err   error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation failed at %s: %v", e.Stage, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
