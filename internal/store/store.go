package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: document not found")

// Document is one entry in a keyed collection.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
)

// Change is one live-feed event for a watched collection key.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// DocumentStore is the slice of the backing document database the signaling
// core relies on: append/list/delete on keyed collections with a live change
// feed, plus single documents addressed by path.
type DocumentStore interface {
	// Add appends a document under (collection, key) and notifies watchers.
	Add(ctx context.Context, collection, key string, doc Document) error
	// List returns up to limit documents under (collection, key),
	// most recent first.
	List(ctx context.Context, collection, key string, limit int) ([]Document, error)
	// Delete removes one document by id. Deleting a missing document is not
	// an error.
	Delete(ctx context.Context, collection, key, id string) error
	// Watch opens a change feed for (collection, key). The returned channel
	// is closed when ctx is done.
	Watch(ctx context.Context, collection, key string) (<-chan Change, error)

	// SetDoc writes a single document at path, replacing any previous value.
	SetDoc(ctx context.Context, path string, data []byte) error
	// GetDoc reads the document at path, returning ErrNotFound if absent.
	GetDoc(ctx context.Context, path string) ([]byte, error)
	// DeleteDoc removes the document at path. Missing documents are ignored.
	DeleteDoc(ctx context.Context, path string) error
}
