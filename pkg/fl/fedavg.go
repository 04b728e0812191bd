package fl

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

type FedAvgConfig struct {
	FractionFit         float64
	FractionEvaluate    float64
	MinFitClients       int
	MinEvaluateClients  int
	MinAvailableClients int
	// InitialParameters seeds the first round when no checkpoint exists.
	InitialParameters *Parameters
	OnFitConfig       func(round, session int) Config
	OnEvaluateConfig  func(round, session int) Config
}

// FedAvg is sample-weighted federated averaging.
type FedAvg struct {
	cfg FedAvgConfig
}

var _ Strategy = (*FedAvg)(nil)

func NewFedAvg(cfg FedAvgConfig) *FedAvg {
	if cfg.FractionFit <= 0 {
		cfg.FractionFit = 1.0
	}
	if cfg.FractionEvaluate <= 0 {
		cfg.FractionEvaluate = 1.0
	}
	if cfg.MinFitClients < 1 {
		cfg.MinFitClients = 1
	}
	if cfg.MinEvaluateClients < 1 {
		cfg.MinEvaluateClients = 1
	}
	if cfg.MinAvailableClients < 1 {
		cfg.MinAvailableClients = 1
	}

	return &FedAvg{cfg: cfg}
}

func (f *FedAvg) MinAvailableClients() int {
	return f.cfg.MinAvailableClients
}

func (f *FedAvg) InitializeParameters(_ context.Context, _ []Candidate) (*Parameters, error) {
	if f.cfg.InitialParameters == nil {
		return nil, nil
	}
	p := f.cfg.InitialParameters.clone()

	return &p, nil
}

func (f *FedAvg) ConfigureFit(_ context.Context, round, session int, params Parameters, available []Candidate) ([]FitInstruction, error) {
	selected, err := f.sample(available, f.cfg.FractionFit, f.cfg.MinFitClients)
	if err != nil {
		return nil, err
	}

	cfg := roundConfig(f.cfg.OnFitConfig, round, session)
	instructions := make([]FitInstruction, 0, len(selected))
	for _, c := range selected {
		instructions = append(instructions, FitInstruction{
			ClientID: c.ID,
			Client:   c.Client,
			Ins:      FitIns{Parameters: params, Config: cfg},
		})
	}

	return instructions, nil
}

func (f *FedAvg) ConfigureEvaluate(_ context.Context, round, session int, params Parameters, available []Candidate) ([]EvaluateInstruction, error) {
	selected, err := f.sample(available, f.cfg.FractionEvaluate, f.cfg.MinEvaluateClients)
	if err != nil {
		return nil, err
	}

	cfg := roundConfig(f.cfg.OnEvaluateConfig, round, session)
	instructions := make([]EvaluateInstruction, 0, len(selected))
	for _, c := range selected {
		instructions = append(instructions, EvaluateInstruction{
			ClientID: c.ID,
			Client:   c.Client,
			Ins:      EvaluateIns{Parameters: params, Config: cfg},
		})
	}

	return instructions, nil
}

// AggregateFit averages the accepted updates weighted by sample count. Only
// updates with the layout carrying the most samples take part; callers that
// need the others reported use RejectMismatched first.
func (f *FedAvg) AggregateFit(_ context.Context, _ int, results []FitResult, _ []Failure) (*Parameters, Metrics, error) {
	accepted := make([]FitResult, 0, len(results))
	for _, r := range results {
		if r.Res.NumSamples <= 0 || r.Res.Parameters.Empty() {
			continue
		}
		accepted = append(accepted, r)
	}
	if len(accepted) == 0 {
		return nil, nil, nil
	}

	ref := dominantShape(accepted)
	aggregated := make([][]float64, len(ref.Tensors))
	for i, t := range ref.Tensors {
		aggregated[i] = make([]float64, len(t))
	}

	var totalSamples int64
	weighted := make([]weightedMetrics, 0, len(accepted))
	for _, r := range accepted {
		if !r.Res.Parameters.SameShape(ref) {
			continue
		}
		if totalSamples > math.MaxInt64-int64(r.Res.NumSamples) {
			return nil, nil, ErrOverflow
		}
		totalSamples += int64(r.Res.NumSamples)

		weight := float64(r.Res.NumSamples)
		for i, t := range r.Res.Parameters.Tensors {
			for j, v := range t {
				aggregated[i][j] += v * weight
			}
		}
		weighted = append(weighted, weightedMetrics{samples: r.Res.NumSamples, metrics: r.Res.Metrics})
	}

	norm := float64(totalSamples)
	for i := range aggregated {
		for j := range aggregated[i] {
			aggregated[i][j] /= norm
		}
	}

	return &Parameters{Tensors: aggregated}, weightedAverage(weighted), nil
}

func (f *FedAvg) AggregateEvaluate(_ context.Context, _ int, results []EvaluateResult, _ []Failure) (*float64, Metrics, error) {
	var (
		totalSamples int64
		lossSum      float64
		weighted     = make([]weightedMetrics, 0, len(results))
	)
	for _, r := range results {
		if r.Res.NumSamples <= 0 {
			continue
		}
		if totalSamples > math.MaxInt64-int64(r.Res.NumSamples) {
			return nil, nil, ErrOverflow
		}
		totalSamples += int64(r.Res.NumSamples)
		lossSum += r.Res.Loss * float64(r.Res.NumSamples)
		weighted = append(weighted, weightedMetrics{samples: r.Res.NumSamples, metrics: r.Res.Metrics})
	}
	if totalSamples == 0 {
		return nil, nil, nil
	}

	loss := lossSum / float64(totalSamples)

	return &loss, weightedAverage(weighted), nil
}

func (f *FedAvg) sample(available []Candidate, fraction float64, minClients int) ([]Candidate, error) {
	n := len(available)
	if n < f.cfg.MinAvailableClients {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughClients, n, f.cfg.MinAvailableClients)
	}

	size := max(minClients, int(math.Ceil(fraction*float64(n))))
	if size > n {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughClients, n, size)
	}

	pool := slices.Clone(available)
	slices.SortFunc(pool, func(a, b Candidate) int { return strings.Compare(a.ID, b.ID) })
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	return pool[:size], nil
}

func roundConfig(fn func(round, session int) Config, round, session int) Config {
	cfg := Config{}
	if fn != nil {
		for k, v := range fn(round, session) {
			cfg[k] = v
		}
	}
	cfg[ConfigRound] = round
	cfg[ConfigSession] = session

	return cfg
}

type weightedMetrics struct {
	samples int
	metrics Metrics
}

// weightedAverage averages every metric by sample count. A client that does
// not report a metric is left out of that metric's denominator.
func weightedAverage(results []weightedMetrics) Metrics {
	sums := map[string]float64{}
	counts := map[string]float64{}
	for _, r := range results {
		if r.samples <= 0 {
			continue
		}
		for name, v := range r.metrics {
			sums[name] += v * float64(r.samples)
			counts[name] += float64(r.samples)
		}
	}
	if len(sums) == 0 {
		return nil
	}

	out := make(Metrics, len(sums))
	for name, sum := range sums {
		out[name] = sum / counts[name]
	}

	return out
}

func (p Parameters) clone() Parameters {
	tensors := make([][]float64, len(p.Tensors))
	for i, t := range p.Tensors {
		tensors[i] = slices.Clone(t)
	}

	return Parameters{Tensors: tensors}
}

// RejectMismatched splits results into those matching the layout of ref and
// failures wrapping ErrShapeMismatch. An empty ref accepts everything.
func RejectMismatched(ref Parameters, results []FitResult) ([]FitResult, []Failure) {
	if ref.Empty() {
		return results, nil
	}

	matching := make([]FitResult, 0, len(results))
	var rejected []Failure
	for _, r := range results {
		if r.Res.Parameters.SameShape(ref) {
			matching = append(matching, r)

			continue
		}
		rejected = append(rejected, Failure{
			ClientID: r.ClientID,
			Err:      fmt.Errorf("%w: client %s", ErrShapeMismatch, r.ClientID),
		})
	}

	return matching, rejected
}

// dominantShape returns the layout with the largest total sample count. Ties
// go to the lexicographically smallest layout key so the choice does not
// depend on result order.
func dominantShape(results []FitResult) Parameters {
	totals := make(map[string]int64)
	shapes := make(map[string]Parameters)
	for _, r := range results {
		k := shapeKey(r.Res.Parameters)
		totals[k] += int64(r.Res.NumSamples)
		if _, ok := shapes[k]; !ok {
			shapes[k] = r.Res.Parameters
		}
	}

	var best string
	for k, total := range totals {
		if best == "" || total > totals[best] || (total == totals[best] && k < best) {
			best = k
		}
	}

	return shapes[best]
}

func shapeKey(p Parameters) string {
	var sb strings.Builder
	for i, t := range p.Tensors {
		if i > 0 {
			sb.WriteByte('x')
		}
		sb.WriteString(strconv.Itoa(len(t)))
	}

	return sb.String()
}
