// Package storage persists checkpoint records for the reference ledger.
package storage

import (
	"context"

	"github.com/absmach/fedledger/pkg/ledger"
)

// CheckpointRepository stores immutable checkpoint records. Listing and
// latest lookups order by session descending, then round descending.
// An empty owner matches every owner.
type CheckpointRepository interface {
	// Create fails with errors.ErrEntityExists when the ID is taken.
	Create(ctx context.Context, cp ledger.Checkpoint) error
	Get(ctx context.Context, id string) (ledger.Checkpoint, error)
	// Latest fails with errors.ErrNotFound when no record matches.
	Latest(ctx context.Context, docType, owner string) (ledger.Checkpoint, error)
	// HighestAccuracy returns 0 when no record matches.
	HighestAccuracy(ctx context.Context, docType string) (float64, error)
	List(ctx context.Context, docType, owner string, offset, limit uint64) ([]ledger.Checkpoint, uint64, error)
}
