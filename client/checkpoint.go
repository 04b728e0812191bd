package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/absmach/fedledger/pkg/contentstore"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/ledger"
)

var errMissingRound = errors.New("fit config carries no session or round")

// LocalCheckpoints publishes each local update to a content store and
// records it on the local learning contract.
type LocalCheckpoints struct {
	Store     contentstore.Store
	Ledger    ledger.Ledger
	Owner     string
	Algorithm string
}

// WithLocalCheckpoints makes the agent record every successful fit. A
// failed record is logged and never fails the fit itself.
func (a *Agent) WithLocalCheckpoints(lc LocalCheckpoints) *Agent {
	if lc.Owner == "" {
		lc.Owner = a.id
	}
	a.checkpoints = &lc

	return a
}

func (a *Agent) recordLocal(ctx context.Context, cfg fl.Config, data []byte, metrics fl.Metrics) {
	if a.checkpoints == nil {
		return
	}
	cp, err := a.checkpoints.record(ctx, a.id, cfg, data, metrics)
	if err != nil {
		a.logger.Warn("failed to record local checkpoint",
			slog.Int("round", cfg.Int(fl.ConfigRound)),
			slog.Any("error", err),
		)

		return
	}
	a.logger.Info("local checkpoint recorded",
		slog.String("id", cp.ID),
		slog.String("url", cp.URL),
		slog.Float64("accuracy", cp.CurAccuracy),
	)
}

func (lc *LocalCheckpoints) record(ctx context.Context, clientID string, cfg fl.Config, data []byte, metrics fl.Metrics) (ledger.Checkpoint, error) {
	session, round := cfg.Int(fl.ConfigSession), cfg.Int(fl.ConfigRound)
	if session < 1 || round < 1 {
		return ledger.Checkpoint{}, errMissingRound
	}

	locator, err := lc.Store.Put(ctx, data)
	if err != nil {
		return ledger.Checkpoint{}, fmt.Errorf("failed to store local parameters: %w", err)
	}

	hash := ledger.ComputeContentHash(data)
	cp := ledger.Checkpoint{
		ID:          ledger.LocalCheckpointID(session, round, clientID, hash),
		Hash:        hash,
		URL:         locator,
		Owner:       lc.Owner,
		Algorithm:   lc.Algorithm,
		CurAccuracy: ledger.Accuracy(metrics),
		Loss:        metrics[ledger.MetricTrainLoss],
		Metrics:     maps.Clone(metrics),
		Round:       round,
		FedSession:  session,
		DocType:     ledger.DocTypeLocal,
	}
	if err := lc.Ledger.Submit(ctx, cp); err != nil {
		return ledger.Checkpoint{}, err
	}

	return cp, nil
}
