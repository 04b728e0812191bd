package checkpoints

import (
	"context"
	"errors"

	"github.com/absmach/fedledger/pkg/ledger"
)

const listLimit = 1000

var (
	_ ledger.Ledger  = (*localLedger)(nil)
	_ ledger.Browser = (*localLedger)(nil)
)

type localLedger struct {
	svc      Service
	contract string
}

// NewLocalLedger serves the ledger contract from an in-process service,
// translating its errors the way the gateway client does.
func NewLocalLedger(svc Service, contract string) ledger.Ledger {
	return &localLedger{svc: svc, contract: contract}
}

func (l *localLedger) QueryLatest(ctx context.Context, owner string) (*ledger.Checkpoint, error) {
	cp, err := l.svc.Latest(ctx, l.contract, owner)
	if err != nil {
		return nil, translate(err)
	}

	return cp, nil
}

func (l *localLedger) Submit(ctx context.Context, cp ledger.Checkpoint) error {
	if _, err := l.svc.Create(ctx, l.contract, cp); err != nil {
		return translate(err)
	}

	return nil
}

func (l *localLedger) Get(ctx context.Context, id string) (ledger.Checkpoint, error) {
	cp, err := l.svc.Get(ctx, id)
	if err != nil {
		return ledger.Checkpoint{}, translate(err)
	}

	return cp, nil
}

func (l *localLedger) List(ctx context.Context, owner string) ([]ledger.Checkpoint, error) {
	page, err := l.svc.List(ctx, l.contract, owner, 0, listLimit)
	if err != nil {
		return nil, translate(err)
	}

	return page.Checkpoints, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrBadCheckpoint),
		errors.Is(err, ErrCheckpointExists),
		errors.Is(err, ErrUnknownContract):
		return errors.Join(ledger.ErrRejected, err)
	case errors.Is(err, ErrNotFound):
		return errors.Join(ledger.ErrNotFound, err)
	default:
		return errors.Join(ledger.ErrTransport, err)
	}
}
