package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

const keyPrefix = "npc:state:"

// RedisStore keeps snapshots under npc:state:<owner id>.
type RedisStore struct {
	client *redis.Client
	log    log.Log
	ttl    time.Duration
}

var _ SnapshotStore = (*RedisStore)(nil)

// NewRedisStore connects using a redis:// URL. ttl <= 0 keeps snapshots
// forever.
func NewRedisStore(redisURL string, ttl time.Duration, logger log.Log) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &RedisStore{client: redis.NewClient(opt), log: logger, ttl: ttl}, nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// WaitForConnection retries Ping until it succeeds, attempts run out or ctx
// ends.
func (r *RedisStore) WaitForConnection(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := r.Ping(ctx); err != nil {
			r.log.Debug("redis not ready yet", log.Error(err), log.Int("attempt", i+1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(delay):
				continue
			}
		}
		r.log.Info("redis connection established")
		return nil
	}
	return fmt.Errorf("redis did not become available after %d attempts", attempts)
}

func (r *RedisStore) Save(ctx context.Context, ownerID string, data []byte) error {
	if err := r.client.Set(ctx, keyPrefix+ownerID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", ownerID, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, ownerID string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, keyPrefix+ownerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", ownerID, err)
	}
	return b, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, keyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", ownerID, err)
	}
	return nil
}

func (r *RedisStore) Owners(ctx context.Context) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.log.Error("failed to close redis connection", log.Error(err))
		return err
	}
	return nil
}
