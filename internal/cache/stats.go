package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

const (
	statsKey           = "qa:stats:site"
	statsGenerationKey = "qa:stats:generation"
)

type StatsStorage struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStatsStorage(rds *redis.Client, ttl time.Duration) *StatsStorage {
	return &StatsStorage{redis: rds, ttl: ttl}
}

// Get returns the cached stats, or false on a miss.
func (s *StatsStorage) Get(ctx context.Context) (*models.Stats, bool, error) {
	raw, err := s.redis.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats models.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

// Generation is bumped by every Invalidate.
func (s *StatsStorage) Generation(ctx context.Context) (int64, error) {
	return generation(ctx, s.redis)
}

// Set stores stats computed at generation gen. The write is dropped when an
// Invalidate happened since gen was read.
func (s *StatsStorage) Set(ctx context.Context, stats *models.Stats, gen int64) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsKey, raw, s.ttl)
			return nil
		})
		return err
	}, statsGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (s *StatsStorage) Invalidate(ctx context.Context) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, statsGenerationKey)
		pipe.Del(ctx, statsKey)
		return nil
	})
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, c getter) (int64, error) {
	gen, err := c.Get(ctx, statsGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}
