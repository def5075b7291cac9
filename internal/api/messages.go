package api

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Signal payload envelopes. These travel as the opaque payload of a Signal
// through the document store.

// OfferPayload is carried by a viewer-offer signal.
type OfferPayload struct {
	ViewerName string                    `json:"viewerName"`
	WithCamera bool                      `json:"withCamera"`
	SDP        webrtc.SessionDescription `json:"sdp"`
}

// AnswerPayload is carried by an answer signal.
type AnswerPayload struct {
	SDP webrtc.SessionDescription `json:"sdp"`
}

// CandidatePayload is carried by an ice-candidate signal.
type CandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// Status socket messages pushed to UI clients.

type StatusEvent string

const (
	StatusEventRoster      StatusEvent = "roster"
	StatusEventStreamEnded StatusEvent = "stream:ended"
	StatusEventPing        StatusEvent = "ping"
)

type StatusMessage struct {
	Event  StatusEvent    `json:"event"`
	Roster *RosterMessage `json:"roster,omitempty"`
	Ping   *PingMessage   `json:"ping,omitempty"`
}

type PingMessage struct {
	Timestamp int64 `json:"timestamp"`
}

type RosterMessage struct {
	StreamID string       `json:"streamId"`
	Count    int          `json:"count"`
	Viewers  []ViewerInfo `json:"viewers"`
}

type ViewerInfo struct {
	ViewerID   string    `json:"viewerId"`
	ViewerName string    `json:"viewerName"`
	WithCamera bool      `json:"withCamera"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// REST responses.

type StreamInfo struct {
	ID              string    `json:"id"`
	BroadcasterID   string    `json:"broadcasterId"`
	BroadcasterName string    `json:"broadcasterName"`
	Title           string    `json:"title"`
	StartedAt       time.Time `json:"startedAt"`
	ViewerCount     int       `json:"viewerCount"`
}
