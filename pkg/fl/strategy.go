package fl

import "context"

// Candidate is an available client as seen by a strategy when sampling.
type Candidate struct {
	ID     string
	Client Client
}

type FitInstruction struct {
	ClientID string
	Client   Client
	Ins      FitIns
}

type EvaluateInstruction struct {
	ClientID string
	Client   Client
	Ins      EvaluateIns
}

type FitResult struct {
	ClientID string
	Res      FitRes
}

type EvaluateResult struct {
	ClientID string
	Res      EvaluateRes
}

// Failure is a client call that did not produce a result in time.
type Failure struct {
	ClientID string
	Err      error
}

// Strategy decides which clients take part in a round and how their results
// become the next global model.
type Strategy interface {
	// InitializeParameters returns a server-side seed, or nil when the
	// strategy has none.
	InitializeParameters(ctx context.Context, available []Candidate) (*Parameters, error)

	ConfigureFit(ctx context.Context, round, session int, params Parameters, available []Candidate) ([]FitInstruction, error)

	// AggregateFit returns nil parameters when no result could be used.
	AggregateFit(ctx context.Context, round int, results []FitResult, failures []Failure) (*Parameters, Metrics, error)

	ConfigureEvaluate(ctx context.Context, round, session int, params Parameters, available []Candidate) ([]EvaluateInstruction, error)

	// AggregateEvaluate returns a nil loss when nobody evaluated.
	AggregateEvaluate(ctx context.Context, round int, results []EvaluateResult, failures []Failure) (*float64, Metrics, error)

	MinAvailableClients() int
}
