package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/Elephantprime/Unhinged-sub000/internal/api"
	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/peer"
	"github.com/Elephantprime/Unhinged-sub000/internal/signal"
)

// TrackHandler receives remote media as it starts arriving.
type TrackHandler func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

// Viewer joins one broadcast at a time. It initiates the offer, waits for
// the broadcaster's answer over the signal channel and feeds candidates
// both ways. Watching a new stream replaces the previous session.
type Viewer struct {
	viewerID   string
	viewerName string
	withCamera bool
	channel    *signal.Channel
	factory    peer.TransportFactory
	config     Config
	onTrack    TrackHandler

	mu       sync.Mutex
	session  *peer.Session
	streamID string
	cancel   context.CancelFunc
}

type ViewerOption func(*Viewer)

func WithTrackHandler(h TrackHandler) ViewerOption {
	return func(v *Viewer) { v.onTrack = h }
}

func NewViewer(viewerID, viewerName string, withCamera bool, ch *signal.Channel, factory peer.TransportFactory, cfg Config, opts ...ViewerOption) *Viewer {
	v := &Viewer{
		viewerID:   viewerID,
		viewerName: viewerName,
		withCamera: withCamera,
		channel:    ch,
		factory:    factory,
		config:     cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Viewer) ViewerID() string { return v.viewerID }

// Session returns the current peer session, nil when not watching.
func (v *Viewer) Session() *peer.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

// Watch joins the given broadcast. localTracks are attached when the viewer
// joins with a camera; they are ignored otherwise. Watch returns after the
// offer has been sent; media flows once the broadcaster answers.
func (v *Viewer) Watch(ctx context.Context, s domain.Stream, localTracks []webrtc.TrackLocal) error {
	transport, err := v.factory.NewTransport()
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	sess := peer.NewSession(s.BroadcasterID, s.ID, peer.RoleViewer, transport, peer.Options{
		NegotiationTimeout: v.config.NegotiationTimeout,
		OnTerminal:         v.sessionTerminated,
	})

	subCtx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	old := v.session
	oldCancel := v.cancel
	v.session = sess
	v.streamID = s.ID
	v.cancel = cancel
	v.mu.Unlock()
	if old != nil {
		slog.Info("leaving previous stream before joining new one", "viewer", v.viewerID, "new", s.ID)
		if oldCancel != nil {
			oldCancel()
		}
		old.Fail(domain.ErrSessionReplaced)
	}

	transport.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		v.sendCandidate(s, candidate.ToJSON())
	})
	transport.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			// Kick the sender for a keyframe so the first rendered frame
			// does not wait out a full keyframe interval.
			pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
			if err := transport.WriteRTCP([]rtcp.Packet{pli}); err != nil {
				slog.Debug("failed to request keyframe", "viewer", v.viewerID, "error", err)
			}
		}
		if v.onTrack != nil {
			v.onTrack(track, receiver)
		}
	})

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := transport.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
			sess.Fail(err)
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	if v.withCamera && len(localTracks) > 0 {
		if err := sess.AttachLocalTracks(localTracks); err != nil {
			return fmt.Errorf("attach local tracks: %w", err)
		}
	}

	// Subscribe before the offer leaves so a fast answer cannot slip past.
	if err := v.channel.Subscribe(subCtx, v.viewerID, v.handleSignal); err != nil {
		sess.Fail(err)
		return fmt.Errorf("subscribe viewer %s: %w", v.viewerID, err)
	}

	offer, err := sess.StartOffer()
	if err != nil {
		return fmt.Errorf("create offer for %s: %w", s.ID, err)
	}
	offerData, err := json.Marshal(api.OfferPayload{
		ViewerName: v.viewerName,
		WithCamera: v.withCamera,
		SDP:        offer,
	})
	if err != nil {
		sess.Fail(err)
		return fmt.Errorf("encode offer: %w", err)
	}
	if err := v.channel.Send(ctx, s.BroadcasterID, v.viewerID, domain.SignalViewerOffer, offerData, s.ID); err != nil {
		sess.Fail(err)
		return err
	}

	slog.Info("joined stream", "viewer", v.viewerID, "stream", s.ID)
	return nil
}

// Leave closes the current session. Safe to call when not watching.
func (v *Viewer) Leave() {
	v.mu.Lock()
	sess := v.session
	cancel := v.cancel
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		sess.Close()
	}
}

func (v *Viewer) handleSignal(_ context.Context, sig domain.Signal) error {
	v.mu.Lock()
	sess := v.session
	streamID := v.streamID
	v.mu.Unlock()

	if sess == nil {
		return nil
	}
	if sig.StreamID != streamID {
		slog.Debug("discarding signal for a different stream", "viewer", v.viewerID, "stream", sig.StreamID)
		return nil
	}

	switch sig.Type {
	case domain.SignalAnswer:
		var payload api.AnswerPayload
		if err := json.Unmarshal(sig.Payload, &payload); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		if err := sess.SetRemoteDescription(payload.SDP); err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}
		return nil
	case domain.SignalICECandidate:
		var payload api.CandidatePayload
		if err := json.Unmarshal(sig.Payload, &payload); err != nil {
			return fmt.Errorf("decode candidate: %w", err)
		}
		if err := sess.AddRemoteCandidate(payload.Candidate); err != nil {
			return fmt.Errorf("apply candidate: %w", err)
		}
		return nil
	default:
		slog.Debug("ignoring unexpected signal type", "viewer", v.viewerID, "type", sig.Type)
		return nil
	}
}

func (v *Viewer) sendCandidate(s domain.Stream, candidate webrtc.ICECandidateInit) {
	data, err := json.Marshal(api.CandidatePayload{Candidate: candidate})
	if err != nil {
		slog.Error("failed to encode candidate", "viewer", v.viewerID, "error", err)
		return
	}
	if err := v.channel.Send(context.Background(), s.BroadcasterID, v.viewerID, domain.SignalICECandidate, data, s.ID); err != nil {
		slog.Warn("failed to send candidate", "viewer", v.viewerID, "error", err)
	}
}

func (v *Viewer) sessionTerminated(s *peer.Session, reason error) {
	v.mu.Lock()
	if v.session == s {
		v.session = nil
		v.streamID = ""
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	}
	v.mu.Unlock()

	if reason != nil {
		slog.Info("viewing session ended", "viewer", v.viewerID, "stream", s.StreamID(), "reason", reason)
	}
}
