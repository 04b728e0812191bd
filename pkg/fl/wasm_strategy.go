package fl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// WasmStrategy samples like FedAvg but delegates parameter aggregation to a
// WASI command module. The module reads a JSON document on stdin and writes
// the aggregated parameters as JSON on stdout.
type WasmStrategy struct {
	*FedAvg
	module []byte
}

var _ Strategy = (*WasmStrategy)(nil)

type wasmUpdate struct {
	ClientID   string      `json:"client_id"`
	NumSamples int         `json:"num_samples"`
	Tensors    [][]float64 `json:"tensors"`
}

type wasmInput struct {
	Round   int          `json:"round"`
	Updates []wasmUpdate `json:"updates"`
}

func NewWasmStrategy(wasmPath string, cfg FedAvgConfig) (*WasmStrategy, error) {
	module, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("wasm aggregator file not found: %w", err)
	}

	return &WasmStrategy{
		FedAvg: NewFedAvg(cfg),
		module: module,
	}, nil
}

func (w *WasmStrategy) AggregateFit(ctx context.Context, round int, results []FitResult, _ []Failure) (*Parameters, Metrics, error) {
	in := wasmInput{Round: round}
	weighted := make([]weightedMetrics, 0, len(results))
	for _, r := range results {
		if r.Res.NumSamples <= 0 || r.Res.Parameters.Empty() {
			continue
		}
		in.Updates = append(in.Updates, wasmUpdate{
			ClientID:   r.ClientID,
			NumSamples: r.Res.NumSamples,
			Tensors:    r.Res.Parameters.Tensors,
		})
		weighted = append(weighted, weightedMetrics{samples: r.Res.NumSamples, metrics: r.Res.Metrics})
	}
	if len(in.Updates) == 0 {
		return nil, nil, nil
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal updates: %w", err)
	}

	out, err := w.run(ctx, payload)
	if err != nil {
		return nil, nil, err
	}

	var params Parameters
	if err := json.Unmarshal(out, &params); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal aggregated model: %w", err)
	}

	return &params, weightedAverage(weighted), nil
}

func (w *WasmStrategy) run(ctx context.Context, stdin []byte) ([]byte, error) {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(stdin)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithArgs("aggregate")

	module, err := r.InstantiateWithConfig(ctx, w.module, cfg)
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return nil, fmt.Errorf("wasm aggregator execution failed: %w: %s", err, stderr.String())
		}
	}
	if module != nil {
		_ = module.Close(ctx)
	}

	return stdout.Bytes(), nil
}
