package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/ledger"
)

// Config keys a simulated trainer understands.
const (
	ConfigLocalEpochs  = "local_epochs"
	ConfigLearningRate = "learning_rate"
)

const defaultLearningRate = 0.5

var _ fl.Client = (*Trainer)(nil)

// Trainer stands in for a real model. Its local optimum is a fixed tensor
// layout drawn from seed; fitting moves the parameters toward it and the loss
// is the mean squared distance from it.
type Trainer struct {
	name    string
	samples int
	target  fl.Parameters

	mu      sync.Mutex
	current fl.Parameters
}

// NewTrainer returns a simulated trainer with tensors of the given sizes.
func NewTrainer(seed uint64, samples int, shape ...int) *Trainer {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	target := fl.Parameters{Tensors: make([][]float64, len(shape))}
	current := fl.Parameters{Tensors: make([][]float64, len(shape))}
	for i, n := range shape {
		target.Tensors[i] = make([]float64, n)
		current.Tensors[i] = make([]float64, n)
		for j := range target.Tensors[i] {
			target.Tensors[i][j] = rng.NormFloat64()
		}
	}

	return &Trainer{
		name:    namegenerator.NewGenerator().Generate(),
		samples: samples,
		target:  target,
		current: current,
	}
}

func (t *Trainer) Name() string {
	return t.name
}

func (t *Trainer) GetProperties(_ context.Context, _ fl.Config) (map[string]string, error) {
	return map[string]string{
		PropertyPeerName: t.name,
		"num_samples":    fmt.Sprint(t.samples),
	}, nil
}

func (t *Trainer) GetParameters(_ context.Context) (fl.Parameters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return clone(t.current), nil
}

func (t *Trainer) Fit(ctx context.Context, ins fl.FitIns) (fl.FitRes, error) {
	if !ins.Parameters.SameShape(t.target) {
		return fl.FitRes{}, fl.ErrShapeMismatch
	}

	epochs := max(ins.Config.Int(ConfigLocalEpochs), 1)
	lr := defaultLearningRate
	if v, ok := ins.Config[ConfigLearningRate].(float64); ok && v > 0 && v <= 1 {
		lr = v
	}

	params := clone(ins.Parameters)
	for range epochs {
		if err := ctx.Err(); err != nil {
			return fl.FitRes{}, err
		}
		for i := range params.Tensors {
			for j := range params.Tensors[i] {
				params.Tensors[i][j] += lr * (t.target.Tensors[i][j] - params.Tensors[i][j])
			}
		}
	}

	t.mu.Lock()
	t.current = clone(params)
	t.mu.Unlock()

	loss := t.loss(params)

	return fl.FitRes{
		Parameters: params,
		NumSamples: t.samples,
		Metrics:    fl.Metrics{ledger.MetricAccuracy: accuracy(loss), ledger.MetricTrainLoss: loss},
	}, nil
}

func (t *Trainer) Evaluate(_ context.Context, ins fl.EvaluateIns) (fl.EvaluateRes, error) {
	if !ins.Parameters.SameShape(t.target) {
		return fl.EvaluateRes{}, fl.ErrShapeMismatch
	}
	loss := t.loss(ins.Parameters)

	return fl.EvaluateRes{
		Loss:       loss,
		NumSamples: t.samples,
		Metrics:    fl.Metrics{ledger.MetricAccuracy: accuracy(loss)},
	}, nil
}

func (t *Trainer) loss(p fl.Parameters) float64 {
	var sum float64
	var n int
	for i := range p.Tensors {
		for j, v := range p.Tensors[i] {
			d := v - t.target.Tensors[i][j]
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}

	return sum / float64(n)
}

// accuracy maps a loss onto (0, 1], 1 meaning a perfect fit.
func accuracy(loss float64) float64 {
	return 1 / (1 + loss)
}

func clone(p fl.Parameters) fl.Parameters {
	out := fl.Parameters{Tensors: make([][]float64, len(p.Tensors))}
	for i, t := range p.Tensors {
		out.Tensors[i] = append([]float64(nil), t...)
	}

	return out
}
