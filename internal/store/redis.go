package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultPageSize = 100

// redisStore implements Store on Redis. Values live in plain keys; range
// queries are served from a per-prefix sorted-set index whose members are
// the record keys (score 0, ordered lexicographically). The index prefix
// of a key is everything up to and including its last '#' segment, so
// "trade#bot-1#2024-05-01T00:00:00Z" is indexed under "trade#bot-1#".
type redisStore struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed Store.
func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client}
}

// NewRedisClient dials Redis and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func indexKey(prefix string) string {
	return "idx:" + prefix
}

// keyPrefix derives the index prefix from a record key.
func keyPrefix(key string) string {
	i := strings.LastIndex(key, "#")
	if i < 0 {
		return ""
	}
	return key[:i+1]
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (s *redisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	if prefix := keyPrefix(key); prefix != "" {
		pipe.ZAdd(ctx, indexKey(prefix), &redis.Z{Score: 0, Member: key})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Query(ctx context.Context, prefix string, opts QueryOptions) (QueryPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	rangeBy := &redis.ZRangeBy{Min: "-", Max: "+", Count: int64(limit)}
	if opts.Cursor != "" {
		// Exclusive bound: continue strictly after the cursor key.
		if opts.Descending {
			rangeBy.Max = "(" + opts.Cursor
		} else {
			rangeBy.Min = "(" + opts.Cursor
		}
	}

	var (
		keys []string
		err  error
	)
	if opts.Descending {
		keys, err = s.client.ZRevRangeByLex(ctx, indexKey(prefix), rangeBy).Result()
	} else {
		keys, err = s.client.ZRangeByLex(ctx, indexKey(prefix), rangeBy).Result()
	}
	if err != nil {
		return QueryPage{}, fmt.Errorf("query %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return QueryPage{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return QueryPage{}, fmt.Errorf("query %s values: %w", prefix, err)
	}

	page := QueryPage{Records: make([]Record, 0, len(keys))}
	var expired []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Value expired out from under the index; drop the member lazily.
			expired = append(expired, keys[i])
			continue
		}
		page.Records = append(page.Records, Record{Key: keys[i], Value: []byte(raw)})
	}

	if len(expired) > 0 {
		members := make([]interface{}, len(expired))
		for i, k := range expired {
			members[i] = k
		}
		s.client.ZRem(ctx, indexKey(prefix), members...)
	}

	// A full page may have more behind it; hand back the last key as the
	// continuation cursor.
	if len(keys) == limit {
		page.Cursor = keys[len(keys)-1]
	}
	return page, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if prefix := keyPrefix(key); prefix != "" {
		pipe.ZRem(ctx, indexKey(prefix), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) BatchDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
		if prefix := keyPrefix(key); prefix != "" {
			pipe.ZRem(ctx, indexKey(prefix), key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch delete %d keys: %w", len(keys), err)
	}
	return nil
}
