package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Checkpoints stores, per source, the page reference a resumed walk starts at.
type Checkpoints interface {
	Get(ctx context.Context, source string) (string, error)
	Set(ctx context.Context, source, ref string) error
	Clear(ctx context.Context, source string) error
}

type redisCheckpoints struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisCheckpoints(redisClient *redis.Client, keyPrefix string) Checkpoints {
	return &redisCheckpoints{
		redisClient: redisClient,
		keyPrefix:   keyPrefix + "progress:page:",
	}
}

func (s *redisCheckpoints) Get(ctx context.Context, source string) (string, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+source).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // No progress saved yet
		}
		return "", fmt.Errorf("failed to get saved page for source %s: %w", source, err)
	}
	return val, nil
}

func (s *redisCheckpoints) Set(ctx context.Context, source, ref string) error {
	err := s.redisClient.Set(ctx, s.keyPrefix+source, ref, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to save page for source %s: %w", source, err)
	}
	return nil
}

func (s *redisCheckpoints) Clear(ctx context.Context, source string) error {
	if err := s.redisClient.Del(ctx, s.keyPrefix+source).Err(); err != nil {
		return fmt.Errorf("failed to clear saved page for source %s: %w", source, err)
	}
	return nil
}
