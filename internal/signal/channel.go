// Package signal implements the store-backed channel peers use to exchange
// session-negotiation payloads. A signal is addressed to exactly one
// recipient, consumed at most once and deleted after processing whether
// processing succeeded or not.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/metrics"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

const (
	collectionSignals = "signals"

	// DefaultWindow bounds how much backlog a new subscription replays.
	DefaultWindow = 10

	// DefaultStalenessWindow is the age beyond which a received signal is
	// deleted without processing.
	DefaultStalenessWindow = 2 * time.Minute

	// seenCap bounds the per-subscription duplicate-suppression set.
	seenCap = 256
)

// Handler consumes one signal. A returned error is recorded and logged; the
// signal is deleted either way and never retried.
type Handler func(ctx context.Context, sig domain.Signal) error

type Channel struct {
	store      store.DocumentStore
	window     int
	staleAfter time.Duration
}

type Option func(*Channel)

func WithWindow(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.window = n
		}
	}
}

func WithStalenessWindow(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

func NewChannel(st store.DocumentStore, opts ...Option) *Channel {
	c := &Channel{
		store:      st,
		window:     DefaultWindow,
		staleAfter: DefaultStalenessWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send writes one signal addressed to the given peer. Best effort: the
// caller does not retry at this layer.
func (c *Channel) Send(ctx context.Context, to, from string, typ domain.SignalType, payload json.RawMessage, streamID string) error {
	sig := domain.Signal{
		ID:            uuid.NewString(),
		From:          from,
		To:            to,
		Type:          typ,
		Payload:       payload,
		StreamID:      streamID,
		SchemaVersion: domain.SchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	doc := store.Document{ID: sig.ID, Data: data, CreatedAt: sig.CreatedAt}
	if err := c.store.Add(ctx, collectionSignals, to, doc); err != nil {
		return fmt.Errorf("send %s signal to %s: %w", typ, to, err)
	}

	metrics.SignalsSentTotal.WithLabelValues(string(typ)).Inc()
	return nil
}

// Subscribe opens a live feed of signals addressed to recipientID and
// dispatches each newly added signal to the handler exactly once. A bounded
// backlog window is replayed first so a receiver that was briefly offline
// still sees recent signals; anything older than the staleness window is
// deleted unprocessed. Subscribe returns once the feed is established; the
// dispatch loop runs until ctx is done.
func (c *Channel) Subscribe(ctx context.Context, recipientID string, h Handler) error {
	changes, err := c.store.Watch(ctx, collectionSignals, recipientID)
	if err != nil {
		return fmt.Errorf("watch signals for %s: %w", recipientID, err)
	}

	backlog, err := c.store.List(ctx, collectionSignals, recipientID, c.window)
	if err != nil {
		slog.Warn("failed to read signal backlog", "recipient", recipientID, "error", err)
	}

	go func() {
		seen := newSeenSet(seenCap)

		// Backlog arrives newest first; dispatch oldest first.
		for i := len(backlog) - 1; i >= 0; i-- {
			c.dispatch(ctx, recipientID, backlog[i], h, seen)
		}

		for change := range changes {
			if change.Kind != store.ChangeAdded {
				continue // signals are immutable once sent
			}
			c.dispatch(ctx, recipientID, change.Doc, h, seen)
		}
	}()
	return nil
}

func (c *Channel) dispatch(ctx context.Context, recipientID string, doc store.Document, h Handler, seen *seenSet) {
	var sig domain.Signal
	if err := json.Unmarshal(doc.Data, &sig); err != nil {
		slog.Warn("deleting undecodable signal", "recipient", recipientID, "id", doc.ID, "error", err)
		c.delete(ctx, recipientID, doc.ID)
		return
	}

	if seen.contains(sig.ID) {
		metrics.SignalsProcessedTotal.WithLabelValues(string(sig.Type), "duplicate").Inc()
		return
	}
	seen.add(sig.ID)

	switch err := sig.Validate(time.Now().UTC(), c.staleAfter); {
	case errors.Is(err, domain.ErrSignalStale):
		slog.Debug("discarding stale signal", "recipient", recipientID, "type", sig.Type, "from", sig.From, "age", time.Since(sig.CreatedAt))
		metrics.SignalsProcessedTotal.WithLabelValues(string(sig.Type), "stale").Inc()
	case errors.Is(err, domain.ErrSignalVersion):
		slog.Warn("discarding signal with mismatched schema version", "recipient", recipientID, "from", sig.From, "version", sig.SchemaVersion)
		metrics.SignalsProcessedTotal.WithLabelValues(string(sig.Type), "version").Inc()
	default:
		if err := h(ctx, sig); err != nil {
			if !errors.Is(err, domain.ErrStreamNotLive) {
				slog.Error("signal handler failed", "recipient", recipientID, "type", sig.Type, "from", sig.From, "error", err)
			}
			metrics.SignalsProcessedTotal.WithLabelValues(string(sig.Type), "error").Inc()
		} else {
			metrics.SignalsProcessedTotal.WithLabelValues(string(sig.Type), "ok").Inc()
		}
	}

	// Processed or rejected, the signal is consumed either way.
	c.delete(ctx, recipientID, sig.ID)
}

func (c *Channel) delete(ctx context.Context, recipientID, id string) {
	if err := c.store.Delete(ctx, collectionSignals, recipientID, id); err != nil {
		slog.Debug("best-effort signal cleanup failed", "recipient", recipientID, "id", id, "error", err)
	}
}

// seenSet is a FIFO-bounded set of already-consumed signal ids guarding
// against duplicate change notifications for the same document.
type seenSet struct {
	ids   map[string]struct{}
	order []string
	cap   int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, capacity), cap: capacity}
}

func (s *seenSet) contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *seenSet) add(id string) {
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}
