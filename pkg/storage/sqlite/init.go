package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrDBScan       = errors.New("database scan error")
	ErrCreate       = errors.New("create error")
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_checkpoints",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS checkpoints (
						id TEXT PRIMARY KEY,
						hash TEXT NOT NULL,
						url TEXT NOT NULL,
						owner TEXT NOT NULL,
						algorithm TEXT NOT NULL,
						highest_accuracy REAL NOT NULL DEFAULT 0,
						cur_accuracy REAL NOT NULL DEFAULT 0,
						loss REAL NOT NULL DEFAULT 0,
						metrics TEXT,
						round INTEGER NOT NULL,
						fed_session INTEGER NOT NULL,
						doc_type TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_checkpoints_latest ON checkpoints(doc_type, owner, fed_session DESC, round DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_checkpoints_accuracy ON checkpoints(doc_type, highest_accuracy DESC)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_checkpoints_accuracy`,
					`DROP INDEX IF EXISTS idx_checkpoints_latest`,
					`DROP TABLE IF EXISTS checkpoints`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}
