package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/peer"
	"github.com/Elephantprime/Unhinged-sub000/internal/roster"
	"github.com/Elephantprime/Unhinged-sub000/internal/signal"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
	"github.com/Elephantprime/Unhinged-sub000/internal/stream"
)

// Hub tracks the broadcasts hosted by this process and wires new ones with
// the shared channel, registry and transport factory.
type Hub struct {
	channel  *signal.Channel
	registry *stream.Registry
	factory  peer.TransportFactory
	docs     store.DocumentStore
	config   Config

	mu           sync.Mutex
	broadcasters map[string]*Broadcaster
}

func NewHub(ch *signal.Channel, reg *stream.Registry, factory peer.TransportFactory, docs store.DocumentStore, cfg Config) *Hub {
	return &Hub{
		channel:      ch,
		registry:     reg,
		factory:      factory,
		docs:         docs,
		config:       cfg.withDefaults(),
		broadcasters: make(map[string]*Broadcaster),
	}
}

// StartBroadcast creates and starts a broadcaster for the stream. Starting
// an id that is already live is an error.
func (h *Hub) StartBroadcast(ctx context.Context, s domain.Stream, tracks []webrtc.TrackLocal) (*Broadcaster, error) {
	h.mu.Lock()
	if _, ok := h.broadcasters[s.ID]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("stream %s is already broadcasting", s.ID)
	}
	b := NewBroadcaster(s, h.channel, h.registry, roster.NewRoster(s.ID, h.docs), h.factory, tracks, h.config)
	h.broadcasters[s.ID] = b
	h.mu.Unlock()

	if err := b.Start(ctx); err != nil {
		h.mu.Lock()
		delete(h.broadcasters, s.ID)
		h.mu.Unlock()
		return nil, err
	}
	return b, nil
}

// StopBroadcast stops a locally hosted broadcast.
func (h *Hub) StopBroadcast(ctx context.Context, streamID string) error {
	h.mu.Lock()
	b, ok := h.broadcasters[streamID]
	if ok {
		delete(h.broadcasters, streamID)
	}
	h.mu.Unlock()

	if !ok {
		return domain.ErrStreamNotFound
	}
	b.Stop(ctx)
	return nil
}

// StopAll stops every broadcast, used during shutdown.
func (h *Hub) StopAll(ctx context.Context) {
	h.mu.Lock()
	all := make([]*Broadcaster, 0, len(h.broadcasters))
	for _, b := range h.broadcasters {
		all = append(all, b)
	}
	h.broadcasters = make(map[string]*Broadcaster)
	h.mu.Unlock()

	for _, b := range all {
		b.Stop(ctx)
	}
}

// Get returns the locally hosted broadcaster for streamID.
func (h *Hub) Get(streamID string) (*Broadcaster, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.broadcasters[streamID]
	return b, ok
}

// List returns every locally hosted broadcaster.
func (h *Hub) List() []*Broadcaster {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := make([]*Broadcaster, 0, len(h.broadcasters))
	for _, b := range h.broadcasters {
		all = append(all, b)
	}
	return all
}
