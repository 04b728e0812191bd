package fl_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWasmStrategyMissingModule(t *testing.T) {
	t.Parallel()

	_, err := fl.NewWasmStrategy(filepath.Join(t.TempDir(), "missing.wasm"), fl.FedAvgConfig{})
	assert.ErrorContains(t, err, "wasm aggregator file not found")
}

func TestWasmStrategyAggregateFit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aggregator.wasm")
	require.NoError(t, os.WriteFile(path, []byte("not a wasm module"), 0o600))

	s, err := fl.NewWasmStrategy(path, fl.FedAvgConfig{})
	require.NoError(t, err)

	params, metrics, err := s.AggregateFit(context.Background(), 1, []fl.FitResult{
		{ClientID: "c1", Res: fl.FitRes{NumSamples: 0, Parameters: fl.Parameters{Tensors: [][]float64{{1}}}}},
		{ClientID: "c2", Res: fl.FitRes{NumSamples: 5}},
	}, nil)
	require.NoError(t, err, "nothing to aggregate must not run the module")
	assert.Nil(t, params)
	assert.Nil(t, metrics)

	_, _, err = s.AggregateFit(context.Background(), 1, []fl.FitResult{
		{ClientID: "c1", Res: fl.FitRes{NumSamples: 3, Parameters: fl.Parameters{Tensors: [][]float64{{1}}}}},
	}, nil)
	assert.ErrorContains(t, err, "wasm aggregator execution failed")
}
