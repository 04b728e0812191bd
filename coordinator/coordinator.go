package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/absmach/fedledger/pkg/history"
	"github.com/absmach/fedledger/pkg/registry"
)

var (
	// ErrAborted is joined with the reason of every run that did not finish.
	ErrAborted                = errors.New("run aborted")
	ErrMandatoryClientMissing = errors.New("mandatory client did not join in time")
	ErrInsufficientClients    = errors.New("not enough clients available")
	ErrRunInProgress          = errors.New("a run is already in progress")
	ErrCorruptCheckpoint      = errors.New("checkpoint payload does not match its hash")
	ErrNoInitialParameters    = errors.New("no initial parameters could be obtained")
)

type State uint8

const (
	Idle State = iota
	AwaitingClients
	Initializing
	FittingRound
	EvaluatingRound
	Checkpointing
	Finalizing
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingClients:
		return "AwaitingClients"
	case Initializing:
		return "Initializing"
	case FittingRound:
		return "FittingRound"
	case EvaluatingRound:
		return "EvaluatingRound"
	case Checkpointing:
		return "Checkpointing"
	case Finalizing:
		return "Finalizing"
	case Done:
		return "Done"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := Idle; st <= Aborted; st++ {
		if st.String() == string(text) {
			*s = st

			return nil
		}
	}
	*s = Idle

	return nil
}

// Config is scoped to one service instance. Zero durations fall back to the
// defaults applied by NewService.
type Config struct {
	NumRounds int    `env:"NUM_ROUNDS" envDefault:"3"`
	Owner     string `env:"OWNER"      envDefault:"org1"`
	Algorithm string `env:"ALGORITHM"  envDefault:"fedavg"`

	// MandatoryClients must all join before any round starts.
	MandatoryClients []string `env:"MANDATORY_CLIENTS" envSeparator:","`

	// InitClientID names the client asked for initial parameters when
	// neither the ledger nor the strategy provides them.
	InitClientID string `env:"INIT_CLIENT_ID"`

	DiscoveryTimeout    time.Duration `env:"DISCOVERY_TIMEOUT"    envDefault:"5m"`
	AvailabilityTimeout time.Duration `env:"AVAILABILITY_TIMEOUT" envDefault:"5m"`

	// RoundTimeout bounds every single client call. Zero disables it.
	RoundTimeout time.Duration `env:"ROUND_TIMEOUT" envDefault:"10m"`
}

type Status struct {
	State      State     `json:"state"`
	Session    int       `json:"session"`
	Round      int       `json:"round"`
	NumRounds  int       `json:"num_rounds"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

type ClientPage struct {
	Offset  uint64            `json:"offset"`
	Limit   uint64            `json:"limit"`
	Total   uint64            `json:"total"`
	Clients []registry.Handle `json:"clients"`
}

type Service interface {
	// Run drives numRounds rounds and returns the run history. A zero
	// numRounds or timeout falls back to the configured value.
	Run(ctx context.Context, numRounds int, timeout time.Duration) (history.Snapshot, error)

	Status(ctx context.Context) (Status, error)
	History(ctx context.Context) (history.Snapshot, error)

	ListClients(ctx context.Context, offset, limit uint64) (ClientPage, error)
	RemoveClient(ctx context.Context, id string) error
}
