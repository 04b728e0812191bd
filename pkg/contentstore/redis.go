package contentstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/redis/go-redis/v9"
)

const (
	backendRedis = "redis"
	redisPrefix  = "fedledger:blob:"
)

type redisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Put(ctx context.Context, data []byte) (string, error) {
	d := digest.FromBytes(data)
	if err := s.client.SetNX(ctx, redisPrefix+d.String(), data, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return locatorFor(backendRedis, d), nil
}

func (s *redisStore) Get(ctx context.Context, locator string) ([]byte, error) {
	d, err := parseLocator(backendRedis, locator)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, redisPrefix+d.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if err := verify(d, data); err != nil {
		return nil, err
	}

	return data, nil
}
