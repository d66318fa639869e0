package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sprite-ai/reqevo/internal/model"
)

const (
	redisKeyPrefix = "reqevo:run:"
	redisIndexKey  = "reqevo:runs"
)

// RedisStore keeps each snapshot under its own key and a sorted set of
// names scored by save time.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore connects to redisURL and pings it.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) key(name string) string {
	return redisKeyPrefix + name
}

// Save writes the snapshot and its index entry in one transaction.
func (s *RedisStore) Save(ctx context.Context, name string, st *model.RunState) error {
	if err := checkName(name, "save"); err != nil {
		return err
	}
	data, err := encode(st)
	if err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(name), data, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(s.now().UnixMilli()), Member: name})
		return nil
	})
	if err != nil {
		return &model.PersistenceError{Name: name, Op: "save", Err: err}
	}
	return nil
}

// Load reads the snapshot key.
func (s *RedisStore) Load(ctx context.Context, name string) (*model.RunState, error) {
	if err := checkName(name, "load"); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
	}

	st, err := decode(data)
	if err != nil {
		return nil, &model.PersistenceError{Name: name, Op: "load", Err: err}
	}
	return st, nil
}

// List walks the index newest first. Index entries whose key has gone are skipped.
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := s.client.ZRevRangeWithScores(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, &model.PersistenceError{Op: "list", Err: err}
	}
	if len(entries) == 0 {
		return nil, nil
	}

	keys := make([]string, len(entries))
	for i, z := range entries {
		keys[i] = s.key(fmt.Sprint(z.Member))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &model.PersistenceError{Op: "list", Err: err}
	}

	out := make([]Summary, 0, len(entries))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		name := fmt.Sprint(entries[i].Member)
		st, err := decode([]byte(raw))
		if err != nil {
			return nil, &model.PersistenceError{Name: name, Op: "list", Err: err}
		}
		out = append(out, summarize(name, st, time.UnixMilli(int64(entries[i].Score))))
	}
	sortSummaries(out)
	return out, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks that redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
