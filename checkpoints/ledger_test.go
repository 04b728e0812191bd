package checkpoints_test

import (
	"context"
	"testing"

	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLedger(t *testing.T) {
	l := checkpoints.NewLocalLedger(newService(), ledger.ContractGlobal)
	ctx := context.Background()

	latest, err := l.QueryLatest(ctx, "org1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	cp := withAccuracy(1, 1, 90)
	require.NoError(t, l.Submit(ctx, cp))

	err = l.Submit(ctx, cp)
	assert.ErrorIs(t, err, ledger.ErrRejected)
	assert.ErrorIs(t, err, checkpoints.ErrCheckpointExists)

	err = l.Submit(ctx, withAccuracy(1, 2, 10))
	assert.ErrorIs(t, err, ledger.ErrRejected)

	latest, err = l.QueryLatest(ctx, "org1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, cp.ID, latest.ID)

	browser, ok := l.(ledger.Browser)
	require.True(t, ok)

	got, err := browser.Get(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, cp.Hash, got.Hash)

	_, err = browser.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	all, err := browser.List(ctx, "org1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLocalLedgerUnknownContract(t *testing.T) {
	l := checkpoints.NewLocalLedger(newService(), "Nope")

	_, err := l.QueryLatest(context.Background(), "org1")
	assert.ErrorIs(t, err, ledger.ErrRejected)
}
