package storage

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
)

type memoryRepository struct {
	mu          sync.RWMutex
	checkpoints map[string]ledger.Checkpoint
}

func NewMemoryRepository() CheckpointRepository {
	return &memoryRepository{checkpoints: make(map[string]ledger.Checkpoint)}
}

func (r *memoryRepository) Create(_ context.Context, cp ledger.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.checkpoints[cp.ID]; ok {
		return errors.ErrEntityExists
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.Metrics = maps.Clone(cp.Metrics)
	r.checkpoints[cp.ID] = cp

	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (ledger.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp, ok := r.checkpoints[id]
	if !ok {
		return ledger.Checkpoint{}, errors.ErrNotFound
	}
	cp.Metrics = maps.Clone(cp.Metrics)

	return cp, nil
}

func (r *memoryRepository) Latest(_ context.Context, docType, owner string) (ledger.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(docType, owner)
	if len(matched) == 0 {
		return ledger.Checkpoint{}, errors.ErrNotFound
	}

	return matched[0], nil
}

func (r *memoryRepository) HighestAccuracy(_ context.Context, docType string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var highest float64
	for _, cp := range r.checkpoints {
		if cp.DocType == docType {
			highest = max(highest, cp.HighestAccuracy)
		}
	}

	return highest, nil
}

func (r *memoryRepository) List(_ context.Context, docType, owner string, offset, limit uint64) ([]ledger.Checkpoint, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(docType, owner)
	total := uint64(len(matched))
	if offset >= total {
		return []ledger.Checkpoint{}, total, nil
	}
	limit = min(limit, total-offset)

	return matched[offset : offset+limit], total, nil
}

func (r *memoryRepository) filter(docType, owner string) []ledger.Checkpoint {
	matched := make([]ledger.Checkpoint, 0)
	for _, cp := range r.checkpoints {
		if cp.DocType != docType || (owner != "" && cp.Owner != owner) {
			continue
		}
		cp.Metrics = maps.Clone(cp.Metrics)
		matched = append(matched, cp)
	}
	ledger.SortNewestFirst(matched)

	return matched
}
