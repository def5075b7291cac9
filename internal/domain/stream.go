package domain

import "time"

// Stream is the discovery document a broadcaster registers so viewers can
// find the broadcast. It carries no negotiation state.
type Stream struct {
	ID              string    `json:"id"`
	BroadcasterID   string    `json:"broadcasterId"`
	BroadcasterName string    `json:"broadcasterName"`
	Title           string    `json:"title"`
	StartedAt       time.Time `json:"startedAt"`
}

// RosterEntry is one active viewer of a broadcast. Unique by ViewerID within
// one broadcaster's roster.
type RosterEntry struct {
	ViewerID   string    `json:"viewerId"`
	ViewerName string    `json:"viewerName"`
	WithCamera bool      `json:"withCamera"`
	JoinedAt   time.Time `json:"joinedAt"`
}
