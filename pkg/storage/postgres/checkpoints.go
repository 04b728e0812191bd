package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	fedErrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
)

// CheckpointRepository stores checkpoints in a postgres table.
type CheckpointRepository struct {
	db *Database
}

func NewCheckpointRepository(db *Database) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

type dbCheckpoint struct {
	ID              string    `db:"id"`
	Hash            string    `db:"hash"`
	URL             string    `db:"url"`
	Owner           string    `db:"owner"`
	Algorithm       string    `db:"algorithm"`
	HighestAccuracy float64   `db:"highest_accuracy"`
	CurAccuracy     float64   `db:"cur_accuracy"`
	Loss            float64   `db:"loss"`
	Metrics         []byte    `db:"metrics"`
	Round           int       `db:"round"`
	FedSession      int       `db:"fed_session"`
	DocType         string    `db:"doc_type"`
	CreatedAt       time.Time `db:"created_at"`
}

const columns = `id, hash, url, owner, algorithm, highest_accuracy, cur_accuracy, loss, metrics, round, fed_session, doc_type, created_at`

func (r *CheckpointRepository) Create(ctx context.Context, cp ledger.Checkpoint) error {
	query := `INSERT INTO checkpoints (` + columns + `)
		VALUES (:id, :hash, :url, :owner, :algorithm, :highest_accuracy, :cur_accuracy, :loss, :metrics, :round, :fed_session, :doc_type, :created_at)
		ON CONFLICT (id) DO NOTHING`

	dbcp, err := toDB(cp)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	res, err := r.db.NamedExecContext(ctx, query, dbcp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if n == 0 {
		return fedErrors.ErrEntityExists
	}

	return nil
}

func (r *CheckpointRepository) Get(ctx context.Context, id string) (ledger.Checkpoint, error) {
	query := `SELECT ` + columns + ` FROM checkpoints WHERE id = $1`

	var dbcp dbCheckpoint
	if err := r.db.GetContext(ctx, &dbcp, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Checkpoint{}, fedErrors.ErrNotFound
		}

		return ledger.Checkpoint{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return fromDB(dbcp)
}

func (r *CheckpointRepository) Latest(ctx context.Context, docType, owner string) (ledger.Checkpoint, error) {
	query := `SELECT ` + columns + ` FROM checkpoints
		WHERE doc_type = $1 AND ($2 = '' OR owner = $2)
		ORDER BY fed_session DESC, round DESC, created_at DESC LIMIT 1`

	var dbcp dbCheckpoint
	if err := r.db.GetContext(ctx, &dbcp, query, docType, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Checkpoint{}, fedErrors.ErrNotFound
		}

		return ledger.Checkpoint{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return fromDB(dbcp)
}

func (r *CheckpointRepository) HighestAccuracy(ctx context.Context, docType string) (float64, error) {
	var highest sql.NullFloat64
	if err := r.db.GetContext(ctx, &highest, `SELECT MAX(highest_accuracy) FROM checkpoints WHERE doc_type = $1`, docType); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return highest.Float64, nil
}

func (r *CheckpointRepository) List(ctx context.Context, docType, owner string, offset, limit uint64) ([]ledger.Checkpoint, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM checkpoints WHERE doc_type = $1 AND ($2 = '' OR owner = $2)`, docType, owner); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT ` + columns + ` FROM checkpoints
		WHERE doc_type = $1 AND ($2 = '' OR owner = $2)
		ORDER BY fed_session DESC, round DESC, created_at DESC LIMIT $3 OFFSET $4`

	var rows []dbCheckpoint
	if err := r.db.SelectContext(ctx, &rows, query, docType, owner, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	cps := make([]ledger.Checkpoint, 0, len(rows))
	for _, row := range rows {
		cp, err := fromDB(row)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		cps = append(cps, cp)
	}

	return cps, total, nil
}

func toDB(cp ledger.Checkpoint) (dbCheckpoint, error) {
	var metrics []byte
	if cp.Metrics != nil {
		var err error
		if metrics, err = json.Marshal(cp.Metrics); err != nil {
			return dbCheckpoint{}, err
		}
	}
	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return dbCheckpoint{
		ID:              cp.ID,
		Hash:            cp.Hash,
		URL:             cp.URL,
		Owner:           cp.Owner,
		Algorithm:       cp.Algorithm,
		HighestAccuracy: cp.HighestAccuracy,
		CurAccuracy:     cp.CurAccuracy,
		Loss:            cp.Loss,
		Metrics:         metrics,
		Round:           cp.Round,
		FedSession:      cp.FedSession,
		DocType:         cp.DocType,
		CreatedAt:       createdAt.UTC(),
	}, nil
}

func fromDB(row dbCheckpoint) (ledger.Checkpoint, error) {
	cp := ledger.Checkpoint{
		ID:              row.ID,
		Hash:            row.Hash,
		URL:             row.URL,
		Owner:           row.Owner,
		Algorithm:       row.Algorithm,
		HighestAccuracy: row.HighestAccuracy,
		CurAccuracy:     row.CurAccuracy,
		Loss:            row.Loss,
		Round:           row.Round,
		FedSession:      row.FedSession,
		DocType:         row.DocType,
		CreatedAt:       row.CreatedAt,
	}
	if len(row.Metrics) > 0 {
		if err := json.Unmarshal(row.Metrics, &cp.Metrics); err != nil {
			return ledger.Checkpoint{}, err
		}
	}

	return cp, nil
}
