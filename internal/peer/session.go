// Package peer owns one negotiated (or negotiating) media connection to
// exactly one counterparty: the transport handle, the locally attached
// tracks and the teardown of both.
package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/metrics"
)

type Role string

const (
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
)

type State int

const (
	StateIdle State = iota
	StateOffering
	StateAnswering
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type Options struct {
	// NegotiationTimeout moves a session stuck in offering/answering to
	// failed. Zero disables the timer.
	NegotiationTimeout time.Duration
	// OnTerminal fires exactly once when the session reaches failed or
	// closed, after the transport and tracks have been released. reason is
	// nil for an explicit Close.
	OnTerminal func(s *Session, reason error)
}

// Session is one bidirectional media connection to one counterparty. The
// transport handle is exclusively owned by the session and never shared.
type Session struct {
	peerID    string
	streamID  string
	role      Role
	transport Transport
	queue     CandidateQueue
	createdAt time.Time

	mu         sync.Mutex
	state      State
	remoteSet  bool
	senders    []*webrtc.RTPSender
	terminated bool
	timer      *time.Timer
	onTerminal func(*Session, error)
}

// NewSession creates a session in the idle state and arms the negotiation
// timer. peerID names the counterparty.
func NewSession(peerID, streamID string, role Role, t Transport, opts Options) *Session {
	s := &Session{
		peerID:     peerID,
		streamID:   streamID,
		role:       role,
		transport:  t,
		state:      StateIdle,
		createdAt:  time.Now(),
		onTerminal: opts.OnTerminal,
	}

	t.OnConnectionStateChange(s.handleConnectionState)

	if opts.NegotiationTimeout > 0 {
		s.timer = time.AfterFunc(opts.NegotiationTimeout, s.negotiationTimedOut)
	}

	metrics.SessionsCreatedTotal.WithLabelValues(string(role)).Inc()
	metrics.ActiveSessions.WithLabelValues(string(role)).Inc()
	return s
}

func (s *Session) PeerID() string   { return s.peerID }
func (s *Session) StreamID() string { return s.streamID }
func (s *Session) Role() Role       { return s.role }

// Transport exposes the underlying handle for callback registration by the
// session's owner (track arrival, candidate discovery). Ownership stays with
// the session.
func (s *Session) Transport() Transport { return s.transport }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RemoteDescriptionSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteSet
}

// StartOffer creates and sets the local offer (viewer-initiated path). The
// session transitions idle → offering.
func (s *Session) StartOffer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return webrtc.SessionDescription{}, fmt.Errorf("cannot offer from state %s", s.state)
	}

	offer, err := s.transport.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, s.failLocked(&domain.NegotiationError{Stage: "offer", Err: err})
	}
	if err := s.transport.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, s.failLocked(&domain.NegotiationError{Stage: "offer", Err: err})
	}

	s.state = StateOffering
	return offer, nil
}

// AttachLocalTracks hands the session exclusive ownership of local media
// tracks. The broadcaster must call this before Answer so the first
// offer/answer round-trip already advertises the outbound media.
func (s *Session) AttachLocalTracks(tracks []webrtc.TrackLocal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return domain.ErrSessionClosed
	}

	for _, track := range tracks {
		sender, err := s.transport.AddTrack(track)
		if err != nil {
			return s.failLocked(&domain.NegotiationError{Stage: "answer", Err: err})
		}
		s.senders = append(s.senders, sender)
	}
	return nil
}

// SetRemoteDescription applies the counterparty's description and drains any
// candidates queued while it was missing. A malformed payload moves the
// session directly to failed; the triggering signal is never retried.
func (s *Session) SetRemoteDescription(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return domain.ErrSessionClosed
	}

	if err := s.transport.SetRemoteDescription(desc); err != nil {
		return s.failLocked(&domain.NegotiationError{Stage: "remote-description", Err: err})
	}
	s.remoteSet = true

	if err := s.queue.Drain(s.transport.AddICECandidate); err != nil {
		// Individual candidate failures degrade connectivity but do not
		// abort the negotiation.
		slog.Warn("failed to apply queued candidate", "peer", s.peerID, "error", err)
	}
	return nil
}

// Answer creates and sets the local answer (broadcaster-initiated path).
// The session transitions idle → answering. Local tracks must already be
// attached.
func (s *Session) Answer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return webrtc.SessionDescription{}, domain.ErrSessionClosed
	}
	if !s.remoteSet {
		return webrtc.SessionDescription{}, fmt.Errorf("cannot answer before remote description is set")
	}

	answer, err := s.transport.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, s.failLocked(&domain.NegotiationError{Stage: "answer", Err: err})
	}
	if err := s.transport.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, s.failLocked(&domain.NegotiationError{Stage: "answer", Err: err})
	}

	s.state = StateAnswering
	return answer, nil
}

// AddRemoteCandidate applies the candidate immediately when the remote
// description is set, otherwise queues it. Callers never choose between
// apply and enqueue themselves.
func (s *Session) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return domain.ErrSessionClosed
	}

	if !s.remoteSet {
		s.queue.Enqueue(candidate)
		return nil
	}
	if err := s.transport.AddICECandidate(candidate); err != nil {
		return &domain.NegotiationError{Stage: "candidate", Err: err}
	}
	return nil
}

// Close tears the session down on explicit leave/stop.
func (s *Session) Close() {
	s.mu.Lock()
	done := s.teardownLocked(StateClosed)
	s.mu.Unlock()
	if done != nil {
		done(nil)
	}
}

// Fail tears the session down with the given reason.
func (s *Session) Fail(reason error) {
	s.mu.Lock()
	err := s.failLocked(reason)
	s.mu.Unlock()
	_ = err
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.mu.Lock()
		if !s.terminated {
			s.state = StateConnected
			if s.timer != nil {
				s.timer.Stop()
			}
			metrics.NegotiationDuration.WithLabelValues(string(s.role)).Observe(time.Since(s.createdAt).Seconds())
		}
		s.mu.Unlock()
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
		s.Fail(domain.ErrTransportClosed)
	}
}

func (s *Session) negotiationTimedOut() {
	s.mu.Lock()
	if s.state != StateOffering && s.state != StateAnswering && s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	_ = s.failLocked(&domain.NegotiationError{Stage: "await", Err: domain.ErrNegotiationTimeout})
	s.mu.Unlock()
}

// failLocked tears down and returns the reason so call sites can propagate
// it in one statement. The onTerminal hook runs outside the lock.
func (s *Session) failLocked(reason error) error {
	done := s.teardownLocked(StateFailed)
	if done != nil {
		metrics.SessionFailuresTotal.WithLabelValues(failureReason(reason)).Inc()
		s.mu.Unlock()
		done(reason)
		s.mu.Lock()
	}
	return reason
}

// teardownLocked releases the transport and the exclusively owned tracks.
// Returns the deferred terminal callback, or nil if already terminated.
func (s *Session) teardownLocked(final State) func(error) {
	if s.terminated {
		return nil
	}
	s.terminated = true
	s.state = final

	if s.timer != nil {
		s.timer.Stop()
	}
	for _, sender := range s.senders {
		if err := s.transport.RemoveTrack(sender); err != nil {
			slog.Debug("failed to detach track", "peer", s.peerID, "error", err)
		}
	}
	s.senders = nil
	if err := s.transport.Close(); err != nil {
		slog.Debug("transport close failed", "peer", s.peerID, "error", err)
	}

	metrics.ActiveSessions.WithLabelValues(string(s.role)).Dec()

	hook := s.onTerminal
	self := s
	return func(reason error) {
		if hook != nil {
			hook(self, reason)
		}
	}
}

func failureReason(err error) string {
	var negErr *domain.NegotiationError
	switch {
	case err == nil:
		return "closed"
	case errors.As(err, &negErr):
		return negErr.Stage
	default:
		return "transport"
	}
}
