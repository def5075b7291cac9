// Package roster tracks who is currently receiving a broadcast. The
// in-memory set is authoritative; a mirror document in the store feeds the
// UI's viewer count and participant list.
package roster

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/metrics"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

type Roster struct {
	streamID string
	store    store.DocumentStore // nil disables mirroring

	mu      sync.Mutex
	entries map[string]domain.RosterEntry
}

func NewRoster(streamID string, st store.DocumentStore) *Roster {
	return &Roster{
		streamID: streamID,
		store:    st,
		entries:  make(map[string]domain.RosterEntry),
	}
}

func mirrorPath(streamID string) string {
	return "rosters/" + streamID
}

// Add registers a viewer. Adding an already-present viewerId is a no-op so
// a duplicate-join race cannot double-count.
func (r *Roster) Add(ctx context.Context, viewerID, viewerName string, withCamera bool) {
	r.mu.Lock()
	if _, ok := r.entries[viewerID]; ok {
		r.mu.Unlock()
		return
	}
	r.entries[viewerID] = domain.RosterEntry{
		ViewerID:   viewerID,
		ViewerName: viewerName,
		WithCamera: withCamera,
		JoinedAt:   time.Now().UTC(),
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(ctx, snapshot)
}

// Remove is idempotent.
func (r *Roster) Remove(ctx context.Context, viewerID string) {
	r.mu.Lock()
	if _, ok := r.entries[viewerID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, viewerID)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(ctx, snapshot)
}

// Reconcile purges entries whose viewer has no live peer session, guarding
// against viewers that disconnected without an explicit leave. Returns the
// number of entries purged.
func (r *Roster) Reconcile(ctx context.Context, liveSessionIDs []string) int {
	live := make(map[string]struct{}, len(liveSessionIDs))
	for _, id := range liveSessionIDs {
		live[id] = struct{}{}
	}

	r.mu.Lock()
	var purged int
	for id := range r.entries {
		if _, ok := live[id]; !ok {
			delete(r.entries, id)
			purged++
		}
	}
	if purged == 0 {
		r.mu.Unlock()
		return 0
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	metrics.RosterPurgesTotal.Add(float64(purged))
	slog.Debug("roster reconciliation purged stale viewers", "stream", r.streamID, "purged", purged)
	r.publish(ctx, snapshot)
	return purged
}

// Reset empties the roster immediately. Used when the broadcaster stops: a
// stale positive count is a worse failure than a momentarily-wrong zero.
func (r *Roster) Reset(ctx context.Context) {
	r.mu.Lock()
	r.entries = make(map[string]domain.RosterEntry)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(ctx, snapshot)
}

func (r *Roster) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns the roster ordered by join time.
func (r *Roster) Entries() []domain.RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Roster) snapshotLocked() []domain.RosterEntry {
	entries := make([]domain.RosterEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	return entries
}

// publish mirrors the roster into the store, best effort.
func (r *Roster) publish(ctx context.Context, entries []domain.RosterEntry) {
	metrics.RosterSize.WithLabelValues(r.streamID).Set(float64(len(entries)))

	if r.store == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		slog.Error("failed to marshal roster mirror", "stream", r.streamID, "error", err)
		return
	}
	if err := r.store.SetDoc(ctx, mirrorPath(r.streamID), data); err != nil {
		slog.Warn("failed to mirror roster", "stream", r.streamID, "error", err)
	}
}

// Clear removes the mirror document, called after the final Reset when the
// broadcast is gone for good.
func (r *Roster) Clear(ctx context.Context) {
	if r.store == nil {
		return
	}
	if err := r.store.DeleteDoc(ctx, mirrorPath(r.streamID)); err != nil {
		slog.Debug("failed to delete roster mirror", "stream", r.streamID, "error", err)
	}
}
