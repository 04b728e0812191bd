package fl

import "context"

// Config keys every fit and evaluate instruction carries.
const (
	ConfigRound   = "server_round"
	ConfigSession = "fed_session"
)

// Parameters is a model payload: a list of flattened numeric tensors.
// The orchestrator never inspects what the tensors mean.
type Parameters struct {
	Tensors [][]float64 `cbor:"1,keyasint" json:"tensors"`
}

func (p Parameters) Empty() bool {
	return len(p.Tensors) == 0
}

// SameShape reports whether both payloads have the same tensor layout.
func (p Parameters) SameShape(other Parameters) bool {
	if len(p.Tensors) != len(other.Tensors) {
		return false
	}
	for i := range p.Tensors {
		if len(p.Tensors[i]) != len(other.Tensors[i]) {
			return false
		}
	}

	return true
}

type Metrics map[string]float64

type Config map[string]any

// Int reads an integer config value regardless of how it was decoded.
func (c Config) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type FitIns struct {
	Parameters Parameters `json:"parameters"`
	Config     Config     `json:"config"`
}

type FitRes struct {
	Parameters Parameters `json:"parameters"`
	NumSamples int        `json:"num_samples"`
	Metrics    Metrics    `json:"metrics,omitempty"`
}

type EvaluateIns struct {
	Parameters Parameters `json:"parameters"`
	Config     Config     `json:"config"`
}

type EvaluateRes struct {
	Loss       float64 `json:"loss"`
	NumSamples int     `json:"num_samples"`
	Metrics    Metrics `json:"metrics,omitempty"`
}

// Client is the capability boundary of a training participant.
type Client interface {
	GetProperties(ctx context.Context, cfg Config) (map[string]string, error)
	GetParameters(ctx context.Context) (Parameters, error)
	Fit(ctx context.Context, ins FitIns) (FitRes, error)
	Evaluate(ctx context.Context, ins EvaluateIns) (EvaluateRes, error)
}
