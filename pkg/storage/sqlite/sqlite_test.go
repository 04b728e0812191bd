package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/storage/sqlite"
	"github.com/absmach/fedledger/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sqlite.Database {
	t.Helper()

	db, err := sqlite.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestCheckpointRepository(t *testing.T) {
	testutil.RunCheckpointRepositoryTests(t, sqlite.NewCheckpointRepository(newDB(t)))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestHighestAccuracyEmpty(t *testing.T) {
	repo := sqlite.NewCheckpointRepository(newDB(t))

	highest, err := repo.HighestAccuracy(context.Background(), ledger.DocTypeGlobal)
	require.NoError(t, err)
	assert.Zero(t, highest)
}

func TestCheckpointWithoutMetrics(t *testing.T) {
	repo := sqlite.NewCheckpointRepository(newDB(t))
	cp := testutil.TestCheckpoint("org", 1, 1)
	cp.Metrics = nil
	require.NoError(t, repo.Create(context.Background(), cp))

	got, err := repo.Get(context.Background(), cp.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Metrics)
}
