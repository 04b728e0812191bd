package checkpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/storage"
)

type service struct {
	repo   storage.CheckpointRepository
	cfg    Config
	logger *slog.Logger

	// mu serializes the threshold check with the write it guards.
	mu sync.Mutex
}

func NewService(repo storage.CheckpointRepository, cfg Config, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

func (svc *service) Create(ctx context.Context, contract string, cp ledger.Checkpoint) (ledger.Checkpoint, error) {
	docType, err := DocType(contract)
	if err != nil {
		return ledger.Checkpoint{}, err
	}
	if err := validate(cp); err != nil {
		return ledger.Checkpoint{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, err := svc.repo.Get(ctx, cp.ID); err == nil {
		return ledger.Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointExists, cp.ID)
	} else if !errors.Is(err, pkgerrors.ErrNotFound) {
		return ledger.Checkpoint{}, err
	}

	highest, err := svc.repo.HighestAccuracy(ctx, docType)
	if err != nil {
		return ledger.Checkpoint{}, err
	}
	if docType == ledger.DocTypeGlobal && cp.CurAccuracy < highest-svc.cfg.Threshold {
		return ledger.Checkpoint{}, fmt.Errorf("%w: current accuracy %v is lower than the tolerable value %v",
			ErrBadCheckpoint, cp.CurAccuracy, highest-svc.cfg.Threshold)
	}

	cp.DocType = docType
	cp.HighestAccuracy = max(highest, cp.CurAccuracy)
	cp.CreatedAt = time.Now().UTC()

	if err := svc.repo.Create(ctx, cp); err != nil {
		if errors.Is(err, pkgerrors.ErrEntityExists) {
			return ledger.Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointExists, cp.ID)
		}

		return ledger.Checkpoint{}, err
	}

	return cp, nil
}

func (svc *service) Get(ctx context.Context, id string) (ledger.Checkpoint, error) {
	cp, err := svc.repo.Get(ctx, id)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return ledger.Checkpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return cp, err
}

func (svc *service) Latest(ctx context.Context, contract, owner string) (*ledger.Checkpoint, error) {
	docType, err := DocType(contract)
	if err != nil {
		return nil, err
	}

	cp, err := svc.repo.Latest(ctx, docType, owner)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	return &cp, nil
}

func (svc *service) List(ctx context.Context, contract, owner string, offset, limit uint64) (Page, error) {
	docType, err := DocType(contract)
	if err != nil {
		return Page{}, err
	}

	cps, total, err := svc.repo.List(ctx, docType, owner, offset, limit)
	if err != nil {
		return Page{}, err
	}
	if cps == nil {
		cps = []ledger.Checkpoint{}
	}

	return Page{
		Offset:      offset,
		Limit:       limit,
		Total:       total,
		Checkpoints: cps,
	}, nil
}

func validate(cp ledger.Checkpoint) error {
	switch {
	case cp.ID == "":
		return fmt.Errorf("%w: missing id", ErrBadCheckpoint)
	case cp.Hash == "":
		return fmt.Errorf("%w: missing hash", ErrBadCheckpoint)
	case cp.URL == "":
		return fmt.Errorf("%w: missing url", ErrBadCheckpoint)
	case cp.Owner == "":
		return fmt.Errorf("%w: missing owner", ErrBadCheckpoint)
	case cp.Round < 1:
		return fmt.Errorf("%w: round must be positive", ErrBadCheckpoint)
	case cp.FedSession < 1:
		return fmt.Errorf("%w: fed session must be positive", ErrBadCheckpoint)
	}

	return nil
}
