package postgres

import (
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
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

func NewDatabase(host, port, user, pass, name, sslMode string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", host, port, user, pass, name, sslMode)

	return Connect(dsn)
}

func Connect(dsn string) (*Database, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
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
						id VARCHAR(255) PRIMARY KEY,
						hash VARCHAR(128) NOT NULL,
						url TEXT NOT NULL,
						owner VARCHAR(255) NOT NULL,
						algorithm VARCHAR(255) NOT NULL,
						highest_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
						cur_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
						loss DOUBLE PRECISION NOT NULL DEFAULT 0,
						metrics JSONB,
						round INTEGER NOT NULL,
						fed_session INTEGER NOT NULL,
						doc_type VARCHAR(32) NOT NULL,
						created_at TIMESTAMPTZ NOT NULL
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

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}
