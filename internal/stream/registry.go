// Package stream maintains the discovery directory of live broadcasts.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/metrics"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

const (
	collectionStreams = "streams"
	keyLive           = "live"
)

// Registry is the store-backed directory viewers query to find live
// broadcasts.
type Registry struct {
	store store.DocumentStore
}

func NewRegistry(st store.DocumentStore) *Registry {
	return &Registry{store: st}
}

// Register publishes the discovery document for a broadcast going live.
func (r *Registry) Register(ctx context.Context, s domain.Stream) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal stream: %w", err)
	}
	doc := store.Document{ID: s.ID, Data: data, CreatedAt: s.StartedAt}
	if err := r.store.Add(ctx, collectionStreams, keyLive, doc); err != nil {
		return fmt.Errorf("register stream %s: %w", s.ID, err)
	}
	metrics.ActiveStreams.Inc()
	return nil
}

// Unregister removes the discovery document when the broadcast stops.
func (r *Registry) Unregister(ctx context.Context, streamID string) error {
	if err := r.store.Delete(ctx, collectionStreams, keyLive, streamID); err != nil {
		return fmt.Errorf("unregister stream %s: %w", streamID, err)
	}
	metrics.ActiveStreams.Dec()
	return nil
}

// ListLive returns currently registered broadcasts, most recent first.
func (r *Registry) ListLive(ctx context.Context, limit int) ([]domain.Stream, error) {
	docs, err := r.store.List(ctx, collectionStreams, keyLive, limit)
	if err != nil {
		return nil, fmt.Errorf("list live streams: %w", err)
	}

	streams := make([]domain.Stream, 0, len(docs))
	for _, doc := range docs {
		var s domain.Stream
		if err := json.Unmarshal(doc.Data, &s); err != nil {
			continue
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// Get returns one live stream by id.
func (r *Registry) Get(ctx context.Context, streamID string) (domain.Stream, error) {
	streams, err := r.ListLive(ctx, 0)
	if err != nil {
		return domain.Stream{}, err
	}
	for _, s := range streams {
		if s.ID == streamID {
			return s, nil
		}
	}
	return domain.Stream{}, domain.ErrStreamNotFound
}
