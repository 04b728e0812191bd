package fl_test

import (
	"context"
	"testing"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(ids ...string) []fl.Candidate {
	out := make([]fl.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, fl.Candidate{ID: id})
	}

	return out
}

func TestFedAvgConfigureFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       fl.FedAvgConfig
		available []fl.Candidate
		expected  int
		err       error
	}{
		{
			name:      "all clients with full fraction",
			cfg:       fl.FedAvgConfig{FractionFit: 1.0, MinFitClients: 2, MinAvailableClients: 2},
			available: candidates("a", "b", "c"),
			expected:  3,
		},
		{
			name:      "fraction rounds up",
			cfg:       fl.FedAvgConfig{FractionFit: 0.5, MinFitClients: 1, MinAvailableClients: 1},
			available: candidates("a", "b", "c"),
			expected:  2,
		},
		{
			name:      "minimum fit clients wins over fraction",
			cfg:       fl.FedAvgConfig{FractionFit: 0.1, MinFitClients: 3, MinAvailableClients: 1},
			available: candidates("a", "b", "c", "d"),
			expected:  3,
		},
		{
			name:      "below minimum available",
			cfg:       fl.FedAvgConfig{FractionFit: 1.0, MinFitClients: 1, MinAvailableClients: 3},
			available: candidates("a", "b"),
			err:       fl.ErrNotEnoughClients,
		},
		{
			name:      "minimum fit above available",
			cfg:       fl.FedAvgConfig{FractionFit: 1.0, MinFitClients: 4, MinAvailableClients: 1},
			available: candidates("a", "b"),
			err:       fl.ErrNotEnoughClients,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := fl.NewFedAvg(tt.cfg)
			params := fl.Parameters{Tensors: [][]float64{{1}}}

			ins, err := s.ConfigureFit(context.Background(), 3, 7, params, tt.available)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.Len(t, ins, tt.expected)

			seen := map[string]bool{}
			for _, in := range ins {
				assert.False(t, seen[in.ClientID], "client sampled twice")
				seen[in.ClientID] = true
				assert.Equal(t, 3, in.Ins.Config.Int(fl.ConfigRound))
				assert.Equal(t, 7, in.Ins.Config.Int(fl.ConfigSession))
				assert.Equal(t, params, in.Ins.Parameters)
			}
		})
	}
}

func TestFedAvgConfigureEvaluateCustomConfig(t *testing.T) {
	t.Parallel()

	s := fl.NewFedAvg(fl.FedAvgConfig{
		OnEvaluateConfig: func(round, _ int) fl.Config {
			return fl.Config{"batch_size": 32, fl.ConfigRound: -1}
		},
	})

	ins, err := s.ConfigureEvaluate(context.Background(), 2, 1, fl.Parameters{}, candidates("a"))
	require.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Equal(t, 32, ins[0].Ins.Config.Int("batch_size"))
	assert.Equal(t, 2, ins[0].Ins.Config.Int(fl.ConfigRound))
}

func TestFedAvgAggregateFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		results  []fl.FitResult
		expected *fl.Parameters
		metrics  fl.Metrics
	}{
		{
			name:     "no results",
			results:  nil,
			expected: nil,
		},
		{
			name: "sample weighted mean",
			results: []fl.FitResult{
				{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1, 2}, {0}}}, NumSamples: 10}},
				{ClientID: "b", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{3, 4}, {4}}}, NumSamples: 30}},
			},
			expected: &fl.Parameters{Tensors: [][]float64{{2.5, 3.5}, {3}}},
		},
		{
			name: "zero sample results are excluded",
			results: []fl.FitResult{
				{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{100}}}, NumSamples: 0}},
				{ClientID: "b", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{2}}}, NumSamples: 5}},
			},
			expected: &fl.Parameters{Tensors: [][]float64{{2}}},
		},
		{
			name: "only zero sample results",
			results: []fl.FitResult{
				{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1}}}, NumSamples: 0}},
			},
			expected: nil,
		},
		{
			name: "mismatched shape is skipped",
			results: []fl.FitResult{
				{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1, 1}}}, NumSamples: 1}},
				{ClientID: "b", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{9}}}, NumSamples: 1}},
				{ClientID: "c", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{3, 3}}}, NumSamples: 1}},
			},
			expected: &fl.Parameters{Tensors: [][]float64{{2, 2}}},
		},
		{
			name: "fit metrics are weighted per metric",
			results: []fl.FitResult{
				{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{0}}}, NumSamples: 10, Metrics: fl.Metrics{"accuracy": 0.5, "train_loss": 1.0}}},
				{ClientID: "b", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{0}}}, NumSamples: 30, Metrics: fl.Metrics{"accuracy": 0.9}}},
			},
			expected: &fl.Parameters{Tensors: [][]float64{{0}}},
			metrics:  fl.Metrics{"accuracy": 0.8, "train_loss": 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := fl.NewFedAvg(fl.FedAvgConfig{})

			params, metrics, err := s.AggregateFit(context.Background(), 1, tt.results, nil)
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, params)

				return
			}
			require.NotNil(t, params)
			require.Len(t, params.Tensors, len(tt.expected.Tensors))
			for i := range tt.expected.Tensors {
				assert.InDeltaSlice(t, tt.expected.Tensors[i], params.Tensors[i], 1e-9)
			}
			for name, v := range tt.metrics {
				assert.InDelta(t, v, metrics[name], 1e-9, name)
			}
		})
	}
}

func TestFedAvgAggregateFitPermutationInvariant(t *testing.T) {
	t.Parallel()

	results := []fl.FitResult{
		{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{0.1, 0.7}}}, NumSamples: 3}},
		{ClientID: "b", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{0.4, 0.2}}}, NumSamples: 11}},
		{ClientID: "c", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{0.9, 0.3}}}, NumSamples: 7}},
	}
	reversed := []fl.FitResult{results[2], results[0], results[1]}

	s := fl.NewFedAvg(fl.FedAvgConfig{})
	first, _, err := s.AggregateFit(context.Background(), 1, results, nil)
	require.NoError(t, err)
	second, _, err := s.AggregateFit(context.Background(), 1, reversed, nil)
	require.NoError(t, err)

	assert.InDeltaSlice(t, first.Tensors[0], second.Tensors[0], 1e-12)
}

func TestFedAvgAggregateFitMixedShapes(t *testing.T) {
	t.Parallel()

	results := []fl.FitResult{
		{ClientID: "small", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{5}}}, NumSamples: 10}},
		{ClientID: "a", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1, 2}}}, NumSamples: 8}},
		{ClientID: "b", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{3, 4}}}, NumSamples: 8}},
	}
	orders := [][]fl.FitResult{
		results,
		{results[1], results[0], results[2]},
		{results[2], results[1], results[0]},
	}

	s := fl.NewFedAvg(fl.FedAvgConfig{})
	for _, in := range orders {
		params, _, err := s.AggregateFit(context.Background(), 1, in, nil)
		require.NoError(t, err)
		require.NotNil(t, params)
		assert.InDeltaSlice(t, []float64{2, 3}, params.Tensors[0], 1e-12)
	}
}

func TestRejectMismatched(t *testing.T) {
	t.Parallel()

	ref := fl.Parameters{Tensors: [][]float64{{0, 0}}}
	results := []fl.FitResult{
		{ClientID: "ok", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1, 2}}}, NumSamples: 1}},
		{ClientID: "short", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1}}}, NumSamples: 1}},
		{ClientID: "extra", Res: fl.FitRes{Parameters: fl.Parameters{Tensors: [][]float64{{1, 2}, {3}}}, NumSamples: 1}},
	}

	matching, rejected := fl.RejectMismatched(ref, results)
	require.Len(t, matching, 1)
	assert.Equal(t, "ok", matching[0].ClientID)
	require.Len(t, rejected, 2)
	for _, f := range rejected {
		assert.ErrorIs(t, f.Err, fl.ErrShapeMismatch)
	}
	assert.Equal(t, "short", rejected[0].ClientID)
	assert.Equal(t, "extra", rejected[1].ClientID)

	all, none := fl.RejectMismatched(fl.Parameters{}, results)
	assert.Len(t, all, 3)
	assert.Empty(t, none)
}

func TestFedAvgAggregateEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		results  []fl.EvaluateResult
		loss     *float64
		metrics  fl.Metrics
		absent   []string
	}{
		{
			name: "no results",
		},
		{
			name: "weighted loss and metrics",
			results: []fl.EvaluateResult{
				{ClientID: "a", Res: fl.EvaluateRes{Loss: 0.3, NumSamples: 100, Metrics: fl.Metrics{"accuracy": 0.9}}},
				{ClientID: "b", Res: fl.EvaluateRes{Loss: 0.2, NumSamples: 200, Metrics: fl.Metrics{"accuracy": 0.93}}},
			},
			loss:    ptr(0.7 / 3),
			metrics: fl.Metrics{"accuracy": 0.92},
		},
		{
			name: "silent client does not dilute a metric",
			results: []fl.EvaluateResult{
				{ClientID: "a", Res: fl.EvaluateRes{Loss: 1, NumSamples: 10, Metrics: fl.Metrics{"specificity": 0.4}}},
				{ClientID: "b", Res: fl.EvaluateRes{Loss: 1, NumSamples: 90}},
			},
			loss:    ptr(1),
			metrics: fl.Metrics{"specificity": 0.4},
		},
		{
			name: "zero samples are ignored",
			results: []fl.EvaluateResult{
				{ClientID: "a", Res: fl.EvaluateRes{Loss: 50, NumSamples: 0, Metrics: fl.Metrics{"accuracy": 0}}},
				{ClientID: "b", Res: fl.EvaluateRes{Loss: 0.5, NumSamples: 4}},
			},
			loss:   ptr(0.5),
			absent: []string{"accuracy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := fl.NewFedAvg(fl.FedAvgConfig{})

			loss, metrics, err := s.AggregateEvaluate(context.Background(), 1, tt.results, nil)
			require.NoError(t, err)
			if tt.loss == nil {
				assert.Nil(t, loss)

				return
			}
			require.NotNil(t, loss)
			assert.InDelta(t, *tt.loss, *loss, 1e-9)
			for name, v := range tt.metrics {
				assert.InDelta(t, v, metrics[name], 1e-9, name)
			}
			for _, name := range tt.absent {
				assert.NotContains(t, metrics, name)
			}
		})
	}
}

func TestFedAvgInitializeParameters(t *testing.T) {
	t.Parallel()

	s := fl.NewFedAvg(fl.FedAvgConfig{})
	p, err := s.InitializeParameters(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	seed := &fl.Parameters{Tensors: [][]float64{{1, 2}}}
	s = fl.NewFedAvg(fl.FedAvgConfig{InitialParameters: seed})
	p, err = s.InitializeParameters(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, seed.Tensors, p.Tensors)

	p.Tensors[0][0] = 42
	assert.Equal(t, 1.0, seed.Tensors[0][0])
}

func ptr(v float64) *float64 {
	return &v
}
