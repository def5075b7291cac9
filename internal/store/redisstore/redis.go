// Package redisstore implements DocumentStore on Redis: a hash plus sorted
// set per collection key for the bounded window, pub/sub for the change feed
// and plain string keys for path documents.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

type Store struct {
	rdb    *redis.Client
	prefix string
}

type wireChange struct {
	Kind store.ChangeKind `json:"kind"`
	Doc  store.Document   `json:"doc"`
}

func NewStore(rdb *redis.Client, prefix string) *Store {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "unhinged"
	}
	return &Store{rdb: rdb, prefix: p}
}

func (s *Store) hashKey(collection, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, key)
}

func (s *Store) indexKey(collection, key string) string {
	return s.hashKey(collection, key) + ":idx"
}

func (s *Store) eventsChannel(collection, key string) string {
	return s.hashKey(collection, key) + ":events"
}

func (s *Store) docKey(path string) string {
	return fmt.Sprintf("%s:doc:%s", s.prefix, path)
}

func (s *Store) Add(ctx context.Context, collection, key string, doc store.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.hashKey(collection, key), doc.ID, data)
	pipe.ZAdd(ctx, s.indexKey(collection, key), redis.Z{
		Score:  float64(doc.CreatedAt.UnixNano()),
		Member: doc.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	event, err := json.Marshal(wireChange{Kind: store.ChangeAdded, Doc: doc})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return s.rdb.Publish(ctx, s.eventsChannel(collection, key), event).Err()
}

func (s *Store) List(ctx context.Context, collection, key string, limit int) ([]store.Document, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1 // full range
	}

	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(collection, key), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.rdb.HMGet(ctx, s.hashKey(collection, key), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	docs := make([]store.Document, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue // deleted between ZRevRange and HMGet
		}
		var doc store.Document
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			slog.Warn("skipping undecodable document", "collection", collection, "key", key, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Delete(ctx context.Context, collection, key, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.HDel(ctx, s.hashKey(collection, key), id)
	pipe.ZRem(ctx, s.indexKey(collection, key), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	event, err := json.Marshal(wireChange{Kind: store.ChangeRemoved, Doc: store.Document{ID: id}})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return s.rdb.Publish(ctx, s.eventsChannel(collection, key), event).Err()
}

func (s *Store) Watch(ctx context.Context, collection, key string) (<-chan store.Change, error) {
	sub := s.rdb.Subscribe(ctx, s.eventsChannel(collection, key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe change feed: %w", err)
	}

	changes := make(chan store.Change, 64)
	go func() {
		defer close(changes)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change wireChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					slog.Warn("skipping undecodable change event", "collection", collection, "key", key, "error", err)
					continue
				}
				select {
				case changes <- store.Change(change):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return changes, nil
}

func (s *Store) SetDoc(ctx context.Context, path string, data []byte) error {
	return s.rdb.Set(ctx, s.docKey(path), data, 0).Err()
}

func (s *Store) GetDoc(ctx context.Context, path string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return data, nil
}

func (s *Store) DeleteDoc(ctx context.Context, path string) error {
	return s.rdb.Del(ctx, s.docKey(path)).Err()
}
