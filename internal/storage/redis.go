package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisKV implements KV on a Redis server. It lets several processes share
// one bookmark slot.
type RedisKV struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

// NewRedisKV connects to addr and verifies the connection with a PING.
func NewRedisKV(ctx context.Context, addr string, db int, logger logrus.FieldLogger) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		logger.WithError(err).WithField("addr", addr).Error("Failed to connect to Redis")
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	logger.WithField("addr", addr).Info("Connected to Redis")

	return &RedisKV{
		rdb: rdb,
		log: logger.WithField("component", "storage"),
	}, nil
}

// Close closes the underlying Redis client.
func (s *RedisKV) Close() error {
	s.log.Info("Closing Redis client...")
	return s.rdb.Close()
}

// Get reads key, mapping a missing key to ErrNotFound.
func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to read key from Redis")
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

// Set writes value under key without expiry.
func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to write key to Redis")
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Update uses optimistic locking: WATCH the key, read it, and commit the new
// value in MULTI/EXEC. EXEC aborts with TxFailedErr when another client
// wrote the key in between, and the cycle starts over.
func (s *RedisKV) Update(ctx context.Context, key string, fn UpdateFunc) error {
	log := s.log.WithField("key", key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		found := true
		if errors.Is(err, redis.Nil) {
			found, current = false, nil
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if err != nil || next == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxTxnRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.WithField("attempt", attempt).Debug("Redis transaction aborted, retrying")
			continue
		}
		if err != nil {
			log.WithError(err).Error("Failed to update key in Redis")
			return fmt.Errorf("failed to update %s: %w", key, err)
		}
		return nil
	}
	log.Error("Giving up on Redis update after repeated conflicts")
	return fmt.Errorf("failed to update %s: %w", key, redis.TxFailedErr)
}

// Delete removes key.
func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to delete key from Redis")
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
