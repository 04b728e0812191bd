// Package checkpoints is a reference ledger gateway. It validates checkpoint
// submissions the way the production ledger contract does and stores them in
// a pluggable repository.
package checkpoints

import (
	"context"
	"errors"

	"github.com/absmach/fedledger/pkg/ledger"
)

// Error messages start with the code the gateway client matches on.
var (
	ErrBadCheckpoint    = errors.New("CP400: bad checkpoint")
	ErrCheckpointExists = errors.New("CP409: checkpoint already exists")
	ErrNotFound         = errors.New("CP404: checkpoint not found")
	ErrUnknownContract  = errors.New("CP400: unknown contract")
)

type Config struct {
	// Threshold is how far below the highest recorded accuracy a global
	// checkpoint may fall before it is rejected.
	Threshold float64 `env:"THRESHOLD" envDefault:"5"`
}

type Page struct {
	Offset      uint64              `json:"offset"`
	Limit       uint64              `json:"limit"`
	Total       uint64              `json:"total"`
	Checkpoints []ledger.Checkpoint `json:"checkpoints"`
}

type Service interface {
	// Create validates and stores a checkpoint under the given contract.
	Create(ctx context.Context, contract string, cp ledger.Checkpoint) (ledger.Checkpoint, error)
	Get(ctx context.Context, id string) (ledger.Checkpoint, error)
	// Latest returns nil when the owner has no checkpoint under the contract.
	Latest(ctx context.Context, contract, owner string) (*ledger.Checkpoint, error)
	List(ctx context.Context, contract, owner string, offset, limit uint64) (Page, error)
}

// DocType maps a contract name to the document type it stores. An empty
// contract selects the global learning contract.
func DocType(contract string) (string, error) {
	switch contract {
	case ledger.ContractGlobal, "":
		return ledger.DocTypeGlobal, nil
	case ledger.ContractLocal:
		return ledger.DocTypeLocal, nil
	default:
		return "", ErrUnknownContract
	}
}
