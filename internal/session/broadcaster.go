// Package session implements both ends of the negotiation protocol: the
// broadcaster answering viewer offers and the viewer initiating them. All
// coordination between the two runs over the signal channel; neither side
// ever talks to the other directly before media flows.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Elephantprime/Unhinged-sub000/internal/api"
	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/peer"
	"github.com/Elephantprime/Unhinged-sub000/internal/roster"
	"github.com/Elephantprime/Unhinged-sub000/internal/signal"
	"github.com/Elephantprime/Unhinged-sub000/internal/stream"
	"github.com/Elephantprime/Unhinged-sub000/internal/utils"
)

const (
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultReconcileInterval  = 15 * time.Second
)

type Config struct {
	NegotiationTimeout time.Duration
	ReconcileInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.NegotiationTimeout <= 0 {
		c.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}
	return c
}

// Broadcaster runs one live stream: it answers incoming viewer offers with
// one peer session per viewer, feeds every session the stream's local
// tracks and keeps the viewer roster in step with the sessions that are
// actually alive.
type Broadcaster struct {
	stream   domain.Stream
	channel  *signal.Channel
	registry *stream.Registry
	roster   *roster.Roster
	factory  peer.TransportFactory
	tracks   []webrtc.TrackLocal
	config   Config

	mu        sync.Mutex
	live      bool
	sessions  map[string]*peer.Session
	cancel    context.CancelFunc
	reconcile utils.IntervalTimer
}

func NewBroadcaster(
	s domain.Stream,
	ch *signal.Channel,
	reg *stream.Registry,
	ros *roster.Roster,
	factory peer.TransportFactory,
	tracks []webrtc.TrackLocal,
	cfg Config,
) *Broadcaster {
	return &Broadcaster{
		stream:   s,
		channel:  ch,
		registry: reg,
		roster:   ros,
		factory:  factory,
		tracks:   tracks,
		config:   cfg.withDefaults(),
		sessions: make(map[string]*peer.Session),
	}
}

func (b *Broadcaster) Stream() domain.Stream { return b.stream }
func (b *Broadcaster) Roster() *roster.Roster { return b.roster }

// Start registers the stream as live and begins consuming signals addressed
// to the broadcaster. It returns once the subscription is established.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.live {
		b.mu.Unlock()
		return fmt.Errorf("stream %s is already live", b.stream.ID)
	}
	subCtx, cancel := context.WithCancel(ctx)
	b.live = true
	b.cancel = cancel
	b.mu.Unlock()

	if err := b.channel.Subscribe(subCtx, b.stream.BroadcasterID, b.handleSignal); err != nil {
		cancel()
		b.mu.Lock()
		b.live = false
		b.mu.Unlock()
		return fmt.Errorf("subscribe broadcaster %s: %w", b.stream.BroadcasterID, err)
	}

	if err := b.registry.Register(ctx, b.stream); err != nil {
		cancel()
		b.mu.Lock()
		b.live = false
		b.mu.Unlock()
		return err
	}

	b.mu.Lock()
	b.reconcile = utils.SetIntervalTimer(b.config.ReconcileInterval, func() {
		b.roster.Reconcile(context.Background(), b.LiveSessionIDs())
	})
	b.mu.Unlock()

	slog.Info("broadcast started", "stream", b.stream.ID, "broadcaster", b.stream.BroadcasterID)
	return nil
}

// Stop ends the broadcast: the stream leaves the live directory, every
// viewer session is closed and the roster is reset to zero.
func (b *Broadcaster) Stop(ctx context.Context) {
	b.mu.Lock()
	if !b.live {
		b.mu.Unlock()
		return
	}
	b.live = false
	cancel := b.cancel
	reconcile := b.reconcile
	b.cancel = nil
	b.reconcile = nil
	sessions := make([]*peer.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if reconcile != nil {
		reconcile.Stop()
	}
	for _, s := range sessions {
		s.Close()
	}

	if err := b.registry.Unregister(ctx, b.stream.ID); err != nil {
		slog.Warn("failed to unregister stream", "stream", b.stream.ID, "error", err)
	}
	b.roster.Reset(ctx)
	b.roster.Clear(ctx)

	slog.Info("broadcast stopped", "stream", b.stream.ID)
}

// LiveSessionIDs returns the viewer ids with a session that has not yet
// terminated. Used as the source of truth for roster reconciliation.
func (b *Broadcaster) LiveSessionIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SessionCount is the number of active or negotiating viewer sessions.
func (b *Broadcaster) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Broadcaster) handleSignal(ctx context.Context, sig domain.Signal) error {
	b.mu.Lock()
	live := b.live
	b.mu.Unlock()
	if !live {
		return domain.ErrStreamNotLive
	}
	if sig.StreamID != b.stream.ID {
		// The recipient key is the broadcaster id; another stream hosted by
		// the same broadcaster shares it.
		slog.Debug("ignoring signal for another stream", "stream", b.stream.ID, "signalStream", sig.StreamID, "from", sig.From)
		return nil
	}

	switch sig.Type {
	case domain.SignalViewerOffer:
		return b.handleOffer(ctx, sig)
	case domain.SignalICECandidate:
		return b.handleCandidate(sig)
	default:
		slog.Debug("ignoring unexpected signal type", "stream", b.stream.ID, "type", sig.Type, "from", sig.From)
		return nil
	}
}

func (b *Broadcaster) handleOffer(ctx context.Context, sig domain.Signal) error {
	var payload api.OfferPayload
	if err := json.Unmarshal(sig.Payload, &payload); err != nil {
		return fmt.Errorf("decode offer from %s: %w", sig.From, err)
	}

	transport, err := b.factory.NewTransport()
	if err != nil {
		return fmt.Errorf("create transport for %s: %w", sig.From, err)
	}

	sess := peer.NewSession(sig.From, b.stream.ID, peer.RoleBroadcaster, transport, peer.Options{
		NegotiationTimeout: b.config.NegotiationTimeout,
		OnTerminal:         b.sessionTerminated,
	})

	// A second offer from the same viewer replaces the first. Replace the
	// map entry before closing the loser so its terminal hook cannot evict
	// the winner.
	b.mu.Lock()
	old := b.sessions[sig.From]
	b.sessions[sig.From] = sess
	b.mu.Unlock()
	if old != nil {
		slog.Info("replacing existing session after repeated offer", "stream", b.stream.ID, "viewer", sig.From)
		old.Fail(domain.ErrSessionReplaced)
	}

	transport.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		b.sendCandidate(sig.From, candidate.ToJSON())
	})

	if err := sess.AttachLocalTracks(b.tracks); err != nil {
		return fmt.Errorf("attach tracks for %s: %w", sig.From, err)
	}
	if err := sess.SetRemoteDescription(payload.SDP); err != nil {
		return fmt.Errorf("apply offer from %s: %w", sig.From, err)
	}
	answer, err := sess.Answer()
	if err != nil {
		return fmt.Errorf("answer %s: %w", sig.From, err)
	}

	answerData, err := json.Marshal(api.AnswerPayload{SDP: answer})
	if err != nil {
		sess.Fail(err)
		return fmt.Errorf("encode answer for %s: %w", sig.From, err)
	}
	if err := b.channel.Send(ctx, sig.From, b.stream.BroadcasterID, domain.SignalAnswer, answerData, b.stream.ID); err != nil {
		sess.Fail(err)
		return err
	}

	b.roster.Add(ctx, sig.From, payload.ViewerName, payload.WithCamera)
	return nil
}

func (b *Broadcaster) handleCandidate(sig domain.Signal) error {
	var payload api.CandidatePayload
	if err := json.Unmarshal(sig.Payload, &payload); err != nil {
		return fmt.Errorf("decode candidate from %s: %w", sig.From, err)
	}

	b.mu.Lock()
	sess := b.sessions[sig.From]
	b.mu.Unlock()
	if sess == nil {
		slog.Debug("discarding candidate without session", "stream", b.stream.ID, "from", sig.From)
		return nil
	}
	if err := sess.AddRemoteCandidate(payload.Candidate); err != nil {
		return fmt.Errorf("apply candidate from %s: %w", sig.From, err)
	}
	return nil
}

func (b *Broadcaster) sendCandidate(viewerID string, candidate webrtc.ICECandidateInit) {
	data, err := json.Marshal(api.CandidatePayload{Candidate: candidate})
	if err != nil {
		slog.Error("failed to encode candidate", "viewer", viewerID, "error", err)
		return
	}
	if err := b.channel.Send(context.Background(), viewerID, b.stream.BroadcasterID, domain.SignalICECandidate, data, b.stream.ID); err != nil {
		slog.Warn("failed to send candidate", "viewer", viewerID, "error", err)
	}
}

// sessionTerminated removes a finished session and its roster entry, unless
// a replacement session already took over the slot.
func (b *Broadcaster) sessionTerminated(s *peer.Session, reason error) {
	b.mu.Lock()
	current, ok := b.sessions[s.PeerID()]
	if ok && current == s {
		delete(b.sessions, s.PeerID())
	} else {
		ok = false
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	if reason != nil {
		slog.Info("viewer session ended", "stream", b.stream.ID, "viewer", s.PeerID(), "reason", reason)
	}
	b.roster.Remove(context.Background(), s.PeerID())
}
