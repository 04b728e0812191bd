package contentstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TypeMemory    = "memory"
	TypeFS        = "fs"
	TypeRedis     = "redis"
	TypeOCI       = "oci"
	TypeOCILayout = "oci-layout"
)

type Config struct {
	Type     string    `env:"TYPE"      envDefault:"memory"`
	Dir      string    `env:"DIR"       envDefault:"./data/blobs"`
	RedisURL string    `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	OCI      OCIConfig `envPrefix:"OCI_"`
}

// New builds the configured store. The returned close function releases
// any connection the store holds.
func New(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case TypeMemory, "":
		return NewMemory(), noop, nil
	case TypeFS:
		s, err := NewFS(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}

		return s, noop, nil
	case TypeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()

			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		return NewRedis(client), client.Close, nil
	case TypeOCI:
		s, err := NewOCIRemote(cfg.OCI)
		if err != nil {
			return nil, nil, err
		}

		return s, noop, nil
	case TypeOCILayout:
		s, err := NewOCILayout(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}

		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}
