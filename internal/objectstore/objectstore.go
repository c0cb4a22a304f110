// Package objectstore persists JSON documents (backtest reports) under
// opaque keys. It is a thin external collaborator: the engine only needs
// put and get.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned by GetJSON when no object exists for a key.
var ErrNotFound = errors.New("objectstore: object not found")

// ObjectStore stores and retrieves JSON-serialised documents.
type ObjectStore interface {
	// PutJSON serialises v and stores it under key, overwriting any
	// previous object.
	PutJSON(ctx context.Context, key string, v interface{}) error

	// GetJSON loads the object under key into v.
	GetJSON(ctx context.Context, key string, v interface{}) error
}

// redisObjectStore keeps report blobs in Redis under a dedicated key
// namespace, without expiry.
type redisObjectStore struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed ObjectStore.
func NewRedis(client *redis.Client) ObjectStore {
	return &redisObjectStore{client: client}
}

func objectKey(key string) string {
	return "object:" + key
}

func (s *redisObjectStore) PutJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal object %s: %w", key, err)
	}
	if err := s.client.Set(ctx, objectKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *redisObjectStore) GetJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := s.client.Get(ctx, objectKey(key)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get object %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal object %s: %w", key, err)
	}
	return nil
}
