package domain

import (
	"encoding/json"
	"time"
)

// SchemaVersion is stamped on every outgoing Signal. Receivers discard
// signals carrying a different version instead of feeding an incompatible
// payload shape into the transport.
const SchemaVersion = 1

type SignalType string

const (
	SignalViewerOffer  SignalType = "viewer-offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
)

// Signal is one unit of session-negotiation data in flight between two
// peers. It is created by the sender, consumed at most once by the receiver
// and deleted after processing. There is no update.
type Signal struct {
	ID            string          `json:"id"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Type          SignalType      `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	StreamID      string          `json:"streamId"`
	SchemaVersion int             `json:"schemaVersion"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Stale reports whether the signal is older than the given window and must
// be discarded without processing.
func (s Signal) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(s.CreatedAt) > window
}

// Validate reports whether the signal may be processed at all. Stale signals
// yield ErrSignalStale, foreign schema versions ErrSignalVersion; either way
// the receiver deletes the signal without feeding it to a handler.
func (s Signal) Validate(now time.Time, window time.Duration) error {
	if s.Stale(now, window) {
		return ErrSignalStale
	}
	if s.SchemaVersion != SchemaVersion {
		return ErrSignalVersion
	}
	return nil
}
