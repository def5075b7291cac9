package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

func doc(id string) store.Document {
	return store.Document{ID: id, Data: []byte(`{}`), CreatedAt: time.Now().UTC()}
}

func TestListReturnsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	for i := 0; i < 5; i++ {
		if err := s.Add(ctx, "signals", "bob", doc(fmt.Sprintf("d%d", i))); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	docs, err := s.List(ctx, "signals", "bob", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	want := []string{"d4", "d3", "d2"}
	for i := range want {
		if docs[i].ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], docs[i].ID)
		}
	}

	all, err := s.List(ctx, "signals", "bob", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected all documents with zero limit, got %d", len(all))
	}
}

func TestDeleteMissingDocumentIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.Delete(ctx, "signals", "bob", "never-added"); err != nil {
		t.Fatalf("expected no error deleting missing document, got %v", err)
	}
}

func TestWatchDeliversAddsAndRemoves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewStore()

	changes, err := s.Watch(ctx, "signals", "bob")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := s.Add(ctx, "signals", "bob", doc("d1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Delete(ctx, "signals", "bob", "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	first := <-changes
	if first.Kind != store.ChangeAdded || first.Doc.ID != "d1" {
		t.Errorf("expected added d1, got %+v", first)
	}
	second := <-changes
	if second.Kind != store.ChangeRemoved || second.Doc.ID != "d1" {
		t.Errorf("expected removed d1, got %+v", second)
	}
}

func TestWatchScopedToCollectionAndKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewStore()

	changes, err := s.Watch(ctx, "signals", "bob")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := s.Add(ctx, "signals", "alice", doc("other")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, "signals", "bob", doc("mine")); err != nil {
		t.Fatalf("add: %v", err)
	}

	change := <-changes
	if change.Doc.ID != "mine" {
		t.Fatalf("expected only bob's change, got %s", change.Doc.ID)
	}
}

func TestWatchChannelClosedOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStore()

	changes, err := s.Watch(ctx, "signals", "bob")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()

	select {
	case _, ok := <-changes:
		if ok {
			t.Fatal("expected channel closed without values")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestPathDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.SetDoc(ctx, "rosters/s1", []byte(`[1,2]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, err := s.GetDoc(ctx, "rosters/s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `[1,2]` {
		t.Errorf("unexpected data %s", data)
	}

	if err := s.DeleteDoc(ctx, "rosters/s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDoc(ctx, "rosters/s1"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
