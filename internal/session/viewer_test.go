package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Elephantprime/Unhinged-sub000/internal/api"
	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/peer"
	"github.com/Elephantprime/Unhinged-sub000/internal/signal"
	"github.com/Elephantprime/Unhinged-sub000/internal/store/memory"
)

type viewerEnv struct {
	store   *memory.Store
	channel *signal.Channel
	factory *fakeFactory
	viewer  *Viewer
	stream  domain.Stream
}

func newViewerEnv(t *testing.T) *viewerEnv {
	t.Helper()
	st := memory.NewStore()
	ch := signal.NewChannel(st)
	factory := &fakeFactory{}

	v := NewViewer("viewer-1", "Sam", false, ch, factory, Config{
		NegotiationTimeout: 5 * time.Second,
	})
	s := domain.Stream{
		ID:            "stream-1",
		BroadcasterID: "bcast-1",
		StartedAt:     time.Now().UTC(),
	}
	return &viewerEnv{store: st, channel: ch, factory: factory, viewer: v, stream: s}
}

func (e *viewerEnv) offerSentToBroadcaster(t *testing.T) *domain.Signal {
	t.Helper()
	docs, err := e.store.List(context.Background(), "signals", e.stream.BroadcasterID, 0)
	if err != nil {
		t.Fatalf("list signals: %v", err)
	}
	if len(docs) == 0 {
		return nil
	}
	var sig domain.Signal
	if err := json.Unmarshal(docs[0].Data, &sig); err != nil {
		t.Fatalf("decode signal: %v", err)
	}
	return &sig
}

func TestWatchSendsOfferToBroadcaster(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newViewerEnv(t)
	if err := env.viewer.Watch(ctx, env.stream, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer env.viewer.Leave()

	sig := env.offerSentToBroadcaster(t)
	if sig == nil {
		t.Fatal("expected offer signal for broadcaster")
	}
	if sig.Type != domain.SignalViewerOffer || sig.From != "viewer-1" || sig.StreamID != "stream-1" {
		t.Fatalf("unexpected signal %+v", sig)
	}
	var payload api.OfferPayload
	if err := json.Unmarshal(sig.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ViewerName != "Sam" || payload.WithCamera {
		t.Errorf("unexpected payload %+v", payload)
	}
	if payload.SDP.Type != webrtc.SDPTypeOffer {
		t.Errorf("expected offer description, got %v", payload.SDP.Type)
	}
	if env.viewer.Session().State() != peer.StateOffering {
		t.Errorf("expected offering state, got %v", env.viewer.Session().State())
	}
}

func TestAnswerCompletesViewerNegotiation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newViewerEnv(t)
	if err := env.viewer.Watch(ctx, env.stream, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer env.viewer.Leave()

	answer, _ := json.Marshal(api.AnswerPayload{
		SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"},
	})
	if err := env.channel.Send(ctx, "viewer-1", env.stream.BroadcasterID, domain.SignalAnswer, answer, env.stream.ID); err != nil {
		t.Fatalf("send answer: %v", err)
	}

	waitUntil(t, func() bool { return env.factory.latest().remoteDescription() != nil },
		"expected answer applied as remote description")
	if !env.viewer.Session().RemoteDescriptionSet() {
		t.Error("expected remote description flag set")
	}
}

func TestCandidatesFromBroadcasterQueueUntilAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newViewerEnv(t)
	if err := env.viewer.Watch(ctx, env.stream, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer env.viewer.Leave()

	cand, _ := json.Marshal(api.CandidatePayload{Candidate: webrtc.ICECandidateInit{Candidate: "early"}})
	if err := env.channel.Send(ctx, "viewer-1", env.stream.BroadcasterID, domain.SignalICECandidate, cand, env.stream.ID); err != nil {
		t.Fatalf("send candidate: %v", err)
	}

	// The candidate is consumed but held until the answer lands.
	waitUntil(t, func() bool {
		docs, err := env.store.List(ctx, "signals", "viewer-1", 0)
		return err == nil && len(docs) == 0
	}, "expected candidate signal consumed")
	if got := env.factory.latest().appliedCandidates(); len(got) != 0 {
		t.Fatalf("expected candidate queued, got %v applied", got)
	}

	answer, _ := json.Marshal(api.AnswerPayload{
		SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"},
	})
	if err := env.channel.Send(ctx, "viewer-1", env.stream.BroadcasterID, domain.SignalAnswer, answer, env.stream.ID); err != nil {
		t.Fatalf("send answer: %v", err)
	}

	waitUntil(t, func() bool {
		got := env.factory.latest().appliedCandidates()
		return len(got) == 1 && got[0] == "early"
	}, "expected queued candidate drained after answer")
}

func TestSignalsForOtherStreamsIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newViewerEnv(t)
	if err := env.viewer.Watch(ctx, env.stream, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer env.viewer.Leave()

	answer, _ := json.Marshal(api.AnswerPayload{
		SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"},
	})
	if err := env.channel.Send(ctx, "viewer-1", "someone-else", domain.SignalAnswer, answer, "other-stream"); err != nil {
		t.Fatalf("send answer: %v", err)
	}

	waitUntil(t, func() bool {
		docs, err := env.store.List(ctx, "signals", "viewer-1", 0)
		return err == nil && len(docs) == 0
	}, "expected mismatched signal consumed")
	if env.factory.latest().remoteDescription() != nil {
		t.Error("expected answer for another stream ignored")
	}
}

func TestLeaveClosesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newViewerEnv(t)
	if err := env.viewer.Watch(ctx, env.stream, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}

	transport := env.factory.latest()
	env.viewer.Leave()

	if !transport.isClosed() {
		t.Error("expected transport closed on leave")
	}
	if env.viewer.Session() != nil {
		t.Error("expected no session after leave")
	}

	// Leave again is a no-op.
	env.viewer.Leave()
}

func TestWatchingNewStreamReplacesOldSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newViewerEnv(t)
	if err := env.viewer.Watch(ctx, env.stream, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}
	first := env.factory.latest()

	second := domain.Stream{ID: "stream-2", BroadcasterID: "bcast-2", StartedAt: time.Now().UTC()}
	if err := env.viewer.Watch(ctx, second, nil); err != nil {
		t.Fatalf("watch second: %v", err)
	}
	defer env.viewer.Leave()

	if !first.isClosed() {
		t.Error("expected first transport closed when switching streams")
	}
	if got := env.viewer.Session().StreamID(); got != "stream-2" {
		t.Errorf("expected session for stream-2, got %s", got)
	}
}
