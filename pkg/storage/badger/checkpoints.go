package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	fedErrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
)

const checkpointPrefix = "checkpoint:"

// CheckpointRepository keeps one JSON document per checkpoint. Queries scan
// the checkpoint key range and sort in memory.
type CheckpointRepository struct {
	db *Database
}

func NewCheckpointRepository(db *Database) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

func (r *CheckpointRepository) Create(_ context.Context, cp ledger.Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	val, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.setIfAbsent([]byte(checkpointPrefix+cp.ID), val)
}

func (r *CheckpointRepository) Get(_ context.Context, id string) (ledger.Checkpoint, error) {
	val, err := r.db.get([]byte(checkpointPrefix + id))
	if err != nil {
		return ledger.Checkpoint{}, err
	}

	var cp ledger.Checkpoint
	if err := json.Unmarshal(val, &cp); err != nil {
		return ledger.Checkpoint{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return cp, nil
}

func (r *CheckpointRepository) Latest(_ context.Context, docType, owner string) (ledger.Checkpoint, error) {
	cps, err := r.filter(docType, owner)
	if err != nil {
		return ledger.Checkpoint{}, err
	}
	if len(cps) == 0 {
		return ledger.Checkpoint{}, fedErrors.ErrNotFound
	}

	return cps[0], nil
}

func (r *CheckpointRepository) HighestAccuracy(_ context.Context, docType string) (float64, error) {
	cps, err := r.filter(docType, "")
	if err != nil {
		return 0, err
	}

	var highest float64
	for _, cp := range cps {
		highest = max(highest, cp.HighestAccuracy)
	}

	return highest, nil
}

func (r *CheckpointRepository) List(_ context.Context, docType, owner string, offset, limit uint64) ([]ledger.Checkpoint, uint64, error) {
	cps, err := r.filter(docType, owner)
	if err != nil {
		return nil, 0, err
	}

	total := uint64(len(cps))
	if offset >= total {
		return []ledger.Checkpoint{}, total, nil
	}

	limit = min(limit, total-offset)

	return cps[offset : offset+limit], total, nil
}

func (r *CheckpointRepository) filter(docType, owner string) ([]ledger.Checkpoint, error) {
	items, err := r.db.listWithPrefix([]byte(checkpointPrefix))
	if err != nil {
		return nil, err
	}

	cps := make([]ledger.Checkpoint, 0, len(items))
	for _, item := range items {
		var cp ledger.Checkpoint
		if err := json.Unmarshal(item, &cp); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
		if cp.DocType != docType || (owner != "" && cp.Owner != owner) {
			continue
		}
		cps = append(cps, cp)
	}
	ledger.SortNewestFirst(cps)

	return cps, nil
}
