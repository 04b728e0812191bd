package checkpoints_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/fedledger/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func newService() checkpoints.Service {
	return checkpoints.NewService(storage.NewMemoryRepository(), checkpoints.Config{Threshold: 5}, logger)
}

func withAccuracy(session, round int, acc float64) ledger.Checkpoint {
	cp := testutil.TestCheckpoint("org1", session, round)
	cp.CurAccuracy = acc
	cp.HighestAccuracy = 0
	cp.DocType = ""

	return cp
}

func TestCreate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	first, err := svc.Create(ctx, ledger.ContractGlobal, withAccuracy(1, 1, 90))
	require.NoError(t, err)
	assert.Equal(t, ledger.DocTypeGlobal, first.DocType)
	assert.Equal(t, 90.0, first.HighestAccuracy)
	assert.False(t, first.CreatedAt.IsZero())

	cases := []struct {
		desc     string
		cp       ledger.Checkpoint
		contract string
		highest  float64
		err      error
	}{
		{
			desc:     "within threshold keeps running max",
			cp:       withAccuracy(1, 2, 86),
			contract: ledger.ContractGlobal,
			highest:  90,
		},
		{
			desc:     "exactly at threshold",
			cp:       withAccuracy(1, 3, 85),
			contract: ledger.ContractGlobal,
			highest:  90,
		},
		{
			desc:     "below threshold",
			cp:       withAccuracy(1, 4, 80),
			contract: ledger.ContractGlobal,
			err:      checkpoints.ErrBadCheckpoint,
		},
		{
			desc:     "new highest",
			cp:       withAccuracy(1, 5, 95),
			contract: "",
			highest:  95,
		},
		{
			desc:     "local contract skips threshold",
			cp:       withAccuracy(1, 6, 10),
			contract: ledger.ContractLocal,
			highest:  10,
		},
		{
			desc:     "unknown contract",
			cp:       withAccuracy(1, 7, 95),
			contract: "MarketplaceContract",
			err:      checkpoints.ErrUnknownContract,
		},
		{
			desc:     "duplicate id",
			cp:       first,
			contract: ledger.ContractGlobal,
			err:      checkpoints.ErrCheckpointExists,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			saved, err := svc.Create(ctx, tc.contract, tc.cp)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.highest, saved.HighestAccuracy)
		})
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService()

	cases := []struct {
		desc   string
		mutate func(*ledger.Checkpoint)
	}{
		{desc: "missing id", mutate: func(cp *ledger.Checkpoint) { cp.ID = "" }},
		{desc: "missing hash", mutate: func(cp *ledger.Checkpoint) { cp.Hash = "" }},
		{desc: "missing url", mutate: func(cp *ledger.Checkpoint) { cp.URL = "" }},
		{desc: "missing owner", mutate: func(cp *ledger.Checkpoint) { cp.Owner = "" }},
		{desc: "zero round", mutate: func(cp *ledger.Checkpoint) { cp.Round = 0 }},
		{desc: "zero session", mutate: func(cp *ledger.Checkpoint) { cp.FedSession = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cp := withAccuracy(1, 1, 50)
			tc.mutate(&cp)
			_, err := svc.Create(context.Background(), ledger.ContractGlobal, cp)
			assert.ErrorIs(t, err, checkpoints.ErrBadCheckpoint)
			assert.Contains(t, err.Error(), "CP400")
		})
	}
}

func TestCreateConcurrentThreshold(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(round int) {
			defer wg.Done()
			_, _ = svc.Create(ctx, ledger.ContractGlobal, withAccuracy(1, round, float64(50+round*10)))
		}(i)
	}
	wg.Wait()

	page, err := svc.List(ctx, ledger.ContractGlobal, "org1", 0, 100)
	require.NoError(t, err)
	require.NotEmpty(t, page.Checkpoints)

	var highest float64
	for _, cp := range page.Checkpoints {
		highest = max(highest, cp.HighestAccuracy)
		assert.GreaterOrEqual(t, cp.HighestAccuracy, cp.CurAccuracy)
	}
	assert.Equal(t, 150.0, highest)
}

func TestLatestAndList(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	latest, err := svc.Latest(ctx, ledger.ContractGlobal, "org1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	page, err := svc.List(ctx, ledger.ContractGlobal, "org1", 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Checkpoints)
	assert.Empty(t, page.Checkpoints)

	var ids []string
	for session := 1; session <= 2; session++ {
		for round := 1; round <= 3; round++ {
			cp, err := svc.Create(ctx, ledger.ContractGlobal, withAccuracy(session, round, 90))
			require.NoError(t, err)
			ids = append(ids, cp.ID)
		}
	}

	latest, err = svc.Latest(ctx, ledger.ContractGlobal, "org1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ids[len(ids)-1], latest.ID)
	assert.Equal(t, 2, latest.FedSession)
	assert.Equal(t, 3, latest.Round)

	latest, err = svc.Latest(ctx, ledger.ContractGlobal, "org2")
	require.NoError(t, err)
	assert.Nil(t, latest)

	page, err = svc.List(ctx, ledger.ContractGlobal, "org1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), page.Total)
	require.Len(t, page.Checkpoints, 2)
	assert.Equal(t, ids[4], page.Checkpoints[0].ID)
	assert.Equal(t, ids[3], page.Checkpoints[1].ID)

	_, err = svc.List(ctx, "nope", "org1", 0, 10)
	assert.ErrorIs(t, err, checkpoints.ErrUnknownContract)
}

func TestGet(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	cp, err := svc.Create(ctx, ledger.ContractGlobal, withAccuracy(1, 1, 90))
	require.NoError(t, err)

	got, err := svc.Get(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, cp.Hash, got.Hash)

	_, err = svc.Get(ctx, fmt.Sprintf("gmodel_fs9_r9_%s", cp.Hash))
	assert.ErrorIs(t, err, checkpoints.ErrNotFound)
}
