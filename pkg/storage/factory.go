package storage

import (
	"fmt"
	"io"

	"github.com/absmach/fedledger/pkg/storage/badger"
	"github.com/absmach/fedledger/pkg/storage/postgres"
	"github.com/absmach/fedledger/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"LEDGER_STORAGE_TYPE" envDefault:"memory"`

	PostgresHost    string `env:"LEDGER_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"LEDGER_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"LEDGER_POSTGRES_USER"    envDefault:"fedledger"`
	PostgresPass    string `env:"LEDGER_POSTGRES_PASS"    envDefault:"fedledger"`
	PostgresDB      string `env:"LEDGER_POSTGRES_DB"      envDefault:"fedledger"`
	PostgresSSLMode string `env:"LEDGER_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"LEDGER_SQLITE_PATH" envDefault:"./fedledger.db"`

	BadgerPath string `env:"LEDGER_BADGER_PATH" envDefault:"./data/badger"`
}

// Repository bundles a checkpoint repository with the connection behind it.
type Repository struct {
	Checkpoints CheckpointRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepository(cfg Config) (*Repository, error) {
	switch cfg.Type {
	case "postgres":
		db, err := postgres.NewDatabase(
			cfg.PostgresHost,
			cfg.PostgresPort,
			cfg.PostgresUser,
			cfg.PostgresPass,
			cfg.PostgresDB,
			cfg.PostgresSSLMode,
		)
		if err != nil {
			return nil, err
		}

		return &Repository{Checkpoints: postgres.NewCheckpointRepository(db), Closer: db}, nil
	case "sqlite":
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return &Repository{Checkpoints: sqlite.NewCheckpointRepository(db), Closer: db}, nil
	case "badger":
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}

		return &Repository{Checkpoints: badger.NewCheckpointRepository(db), Closer: db}, nil
	case "memory":
		return &Repository{Checkpoints: NewMemoryRepository()}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
