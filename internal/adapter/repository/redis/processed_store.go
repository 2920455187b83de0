package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"
)

// ProcessedStore implements usecase.ProcessedStore using Redis.
type ProcessedStore struct {
	client *redis.Client
	prefix string
}

// NewProcessedStore creates a new ProcessedStore.
func NewProcessedStore(client *redis.Client) *ProcessedStore {
	return &ProcessedStore{
		client: client,
		prefix: "txconsumer:processed:",
	}
}

// Acquire claims key with an in-flight marker. It returns false if the key
// is in flight or already done.
func (s *ProcessedStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, markerProcessing, ttl).Result()
}

// Complete replaces the in-flight marker with a done marker.
func (s *ProcessedStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, markerDone, ttl).Err()
}

// Release drops an in-flight claim. Done markers are kept.
func (s *ProcessedStore) Release(ctx context.Context, key string) error {
	fullKey := s.prefix + key

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, fullKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if val != markerProcessing {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, fullKey)
			return nil
		})
		return err
	}, fullKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Someone else changed the key meanwhile; their state wins.
		return nil
	}
	return err
}

// Status reports the marker stored for key, or "" if there is none.
func (s *ProcessedStore) Status(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}
