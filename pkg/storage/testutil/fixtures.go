// Package testutil holds fixtures and a behavioural suite shared by every
// checkpoint repository backend.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Repository interface {
	Create(ctx context.Context, cp ledger.Checkpoint) error
	Get(ctx context.Context, id string) (ledger.Checkpoint, error)
	Latest(ctx context.Context, docType, owner string) (ledger.Checkpoint, error)
	HighestAccuracy(ctx context.Context, docType string) (float64, error)
	List(ctx context.Context, docType, owner string, offset, limit uint64) ([]ledger.Checkpoint, uint64, error)
}

func TestCheckpoint(owner string, session, round int) ledger.Checkpoint {
	hash := ledger.ComputeContentHash([]byte(uuid.NewString()))

	return ledger.Checkpoint{
		ID:              ledger.CheckpointID(session, round, hash),
		Hash:            hash,
		URL:             "/mem/sha256:" + hash,
		Owner:           owner,
		Algorithm:       "FedAvg",
		HighestAccuracy: 0.9,
		CurAccuracy:     0.9,
		Loss:            0.1,
		Metrics:         map[string]float64{"accuracy": 0.9, "sensitivity": 0.8},
		Round:           round,
		FedSession:      session,
		DocType:         ledger.DocTypeGlobal,
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

// RunCheckpointRepositoryTests exercises a fresh repository. Owners are
// unique per call so backends may share a database across tests.
func RunCheckpointRepositoryTests(t *testing.T, repo Repository) {
	ctx := context.Background()
	owner := "org-" + uuid.NewString()
	other := "org-" + uuid.NewString()

	t.Run("latest on empty owner", func(t *testing.T) {
		_, err := repo.Latest(ctx, ledger.DocTypeGlobal, owner)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "invalid-id-that-does-not-exist")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	created := []ledger.Checkpoint{
		TestCheckpoint(owner, 1, 1),
		TestCheckpoint(owner, 2, 1),
		TestCheckpoint(owner, 1, 3),
		TestCheckpoint(owner, 2, 2),
		TestCheckpoint(other, 9, 9),
	}
	local := TestCheckpoint(owner, 5, 5)
	local.DocType = ledger.DocTypeLocal
	local.HighestAccuracy = 0.99

	t.Run("create", func(t *testing.T) {
		for _, cp := range append(created, local) {
			require.NoError(t, repo.Create(ctx, cp), fmt.Sprintf("creating %s", cp.ID))
		}
	})

	t.Run("create duplicate", func(t *testing.T) {
		dup := created[0]
		dup.Loss = 42
		assert.ErrorIs(t, repo.Create(ctx, dup), errors.ErrEntityExists)

		got, err := repo.Get(ctx, dup.ID)
		require.NoError(t, err)
		assert.Equal(t, created[0].Loss, got.Loss)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.Get(ctx, created[1].ID)
		require.NoError(t, err)
		assert.Equal(t, created[1].ID, got.ID)
		assert.Equal(t, created[1].Hash, got.Hash)
		assert.Equal(t, created[1].URL, got.URL)
		assert.Equal(t, created[1].Owner, got.Owner)
		assert.Equal(t, created[1].FedSession, got.FedSession)
		assert.Equal(t, created[1].Round, got.Round)
		assert.Equal(t, created[1].DocType, got.DocType)
		assert.InDelta(t, created[1].Loss, got.Loss, 1e-12)
		assert.Equal(t, created[1].Metrics, got.Metrics)
	})

	t.Run("latest orders by session then round", func(t *testing.T) {
		got, err := repo.Latest(ctx, ledger.DocTypeGlobal, owner)
		require.NoError(t, err)
		assert.Equal(t, created[3].ID, got.ID)
	})

	t.Run("latest is scoped by doc type", func(t *testing.T) {
		got, err := repo.Latest(ctx, ledger.DocTypeLocal, owner)
		require.NoError(t, err)
		assert.Equal(t, local.ID, got.ID)
	})

	t.Run("list by owner", func(t *testing.T) {
		cps, total, err := repo.List(ctx, ledger.DocTypeGlobal, owner, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), total)
		require.Len(t, cps, 4)
		assert.Equal(t, []string{created[3].ID, created[1].ID, created[2].ID, created[0].ID}, ids(cps))
	})

	t.Run("list pages", func(t *testing.T) {
		cps, total, err := repo.List(ctx, ledger.DocTypeGlobal, owner, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), total)
		assert.Equal(t, []string{created[1].ID, created[2].ID}, ids(cps))

		cps, _, err = repo.List(ctx, ledger.DocTypeGlobal, owner, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, cps)
	})

	t.Run("highest accuracy", func(t *testing.T) {
		highest, err := repo.HighestAccuracy(ctx, ledger.DocTypeLocal)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, highest, 0.99)
	})
}

func ids(cps []ledger.Checkpoint) []string {
	out := make([]string, 0, len(cps))
	for _, cp := range cps {
		out = append(out, cp.ID)
	}

	return out
}
