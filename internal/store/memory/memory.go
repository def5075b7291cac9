// Package memory provides an in-process DocumentStore used by tests and
// single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

type watcher struct {
	ch     chan store.Change
	ctx    context.Context
	cancel context.CancelFunc
}

type Store struct {
	mu          sync.Mutex
	collections map[string][]store.Document // "<collection>/<key>" -> docs, oldest first
	docs        map[string][]byte
	watchers    map[string][]*watcher
}

func NewStore() *Store {
	return &Store{
		collections: make(map[string][]store.Document),
		docs:        make(map[string][]byte),
		watchers:    make(map[string][]*watcher),
	}
}

func entryKey(collection, key string) string {
	return collection + "/" + key
}

func (s *Store) Add(ctx context.Context, collection, key string, doc store.Document) error {
	ek := entryKey(collection, key)

	s.mu.Lock()
	s.collections[ek] = append(s.collections[ek], doc)
	s.notifyLocked(ek, store.Change{Kind: store.ChangeAdded, Doc: doc})
	s.mu.Unlock()
	return nil
}

func (s *Store) List(ctx context.Context, collection, key string, limit int) ([]store.Document, error) {
	ek := entryKey(collection, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[ek]
	if limit <= 0 || limit > len(docs) {
		limit = len(docs)
	}

	// Stored oldest first, returned newest first.
	out := make([]store.Document, 0, limit)
	for i := len(docs) - 1; i >= len(docs)-limit; i-- {
		out = append(out, docs[i])
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection, key, id string) error {
	ek := entryKey(collection, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[ek]
	for i, doc := range docs {
		if doc.ID == id {
			s.collections[ek] = append(docs[:i:i], docs[i+1:]...)
			s.notifyLocked(ek, store.Change{Kind: store.ChangeRemoved, Doc: doc})
			return nil
		}
	}
	return nil
}

func (s *Store) Watch(ctx context.Context, collection, key string) (<-chan store.Change, error) {
	ek := entryKey(collection, key)
	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{ch: make(chan store.Change, 64), ctx: wctx, cancel: cancel}

	s.mu.Lock()
	s.watchers[ek] = append(s.watchers[ek], w)
	s.mu.Unlock()

	go func() {
		<-wctx.Done()
		s.mu.Lock()
		ws := s.watchers[ek]
		for i, cur := range ws {
			if cur == w {
				s.watchers[ek] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		close(w.ch)
		s.mu.Unlock()
	}()

	return w.ch, nil
}

func (s *Store) notifyLocked(ek string, change store.Change) {
	for _, w := range s.watchers[ek] {
		select {
		case w.ch <- change:
		default:
			// Slow watcher, drop rather than block the store.
		}
	}
}

func (s *Store) SetDoc(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetDoc(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) DeleteDoc(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}
