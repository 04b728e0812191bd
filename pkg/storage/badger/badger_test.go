package badger_test

import (
	"context"
	"math"
	"testing"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/storage/badger"
	"github.com/absmach/fedledger/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *badger.Database {
	t.Helper()

	db, err := badger.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestCheckpointRepository(t *testing.T) {
	testutil.RunCheckpointRepositoryTests(t, badger.NewCheckpointRepository(newDB(t)))
}

func TestHighestAccuracyEmpty(t *testing.T) {
	repo := badger.NewCheckpointRepository(newDB(t))

	highest, err := repo.HighestAccuracy(context.Background(), ledger.DocTypeGlobal)
	require.NoError(t, err)
	assert.Zero(t, highest)
}

func TestListUnboundedLimit(t *testing.T) {
	repo := badger.NewCheckpointRepository(newDB(t))
	for round := 1; round <= 3; round++ {
		require.NoError(t, repo.Create(context.Background(), testutil.TestCheckpoint("org", 1, round)))
	}

	cps, total, err := repo.List(context.Background(), ledger.DocTypeGlobal, "org", 2, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Len(t, cps, 1)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	db, err := badger.NewDatabase(dir)
	require.NoError(t, err)

	cp := testutil.TestCheckpoint("org", 3, 1)
	require.NoError(t, badger.NewCheckpointRepository(db).Create(context.Background(), cp))
	require.NoError(t, db.Close())

	db, err = badger.NewDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	got, err := badger.NewCheckpointRepository(db).Latest(context.Background(), ledger.DocTypeGlobal, "org")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, got.ID)
}
