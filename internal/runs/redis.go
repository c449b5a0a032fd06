package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lamim/uxie/pkg/models"
)

const (
	keyPrefix         = "uxie:run:"
	maxUpdateAttempts = 10
)

// RedisStore keeps each run as a JSON document with a TTL, so several
// server instances can serve the same runs
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// ConnectRedis dials addr and checks the connection
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, run *models.Run) error {
	data, err := json.Marshal(clone(run))
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, key(run.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Run, error) {
	return get(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, id string) (*models.Run, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	var run models.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	if run.Progress == nil {
		run.Progress = []models.ProgressEvent{}
	}
	return &run, nil
}

// Update applies fn under an optimistic WATCH transaction, retrying when
// another writer touched the run in between
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*models.Run)) (*models.Run, error) {
	var updated *models.Run
	txf := func(tx *redis.Tx) error {
		run, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(run)
		run.UpdatedAt = time.Now()
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), data, s.ttl)
			return nil
		})
		if err == nil {
			updated = run
		}
		return err
	}

	for range maxUpdateAttempts {
		err := s.rdb.Watch(ctx, txf, key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update run %s: too much contention", id)
}

func (s *RedisStore) AppendProgress(ctx context.Context, id string, ev models.ProgressEvent) error {
	_, err := s.Update(ctx, id, func(r *models.Run) {
		r.Progress = append(r.Progress, ev)
	})
	return err
}
