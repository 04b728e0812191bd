package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/fedledger/pkg/contentstore"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/history"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/registry"
)

const (
	defDiscoveryTimeout    = 5 * time.Minute
	defAvailabilityTimeout = 5 * time.Minute
)

// globalState is owned by the goroutine executing Run.
type globalState struct {
	params  fl.Parameters
	round   int
	session int
}

type service struct {
	cfg      Config
	registry *registry.Registry
	strategy fl.Strategy
	ledger   ledger.Ledger
	store    contentstore.Store
	logger   *slog.Logger

	running atomic.Bool

	mu     sync.RWMutex
	status Status
	hist   *history.History
}

func NewService(cfg Config, reg *registry.Registry, strategy fl.Strategy, l ledger.Ledger, store contentstore.Store, logger *slog.Logger) Service {
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = defDiscoveryTimeout
	}
	if cfg.AvailabilityTimeout <= 0 {
		cfg.AvailabilityTimeout = defAvailabilityTimeout
	}

	return &service{
		cfg:      cfg,
		registry: reg,
		strategy: strategy,
		ledger:   l,
		store:    store,
		logger:   logger,
		status:   Status{State: Idle},
		hist:     history.New(0),
	}
}

func (s *service) Run(ctx context.Context, numRounds int, timeout time.Duration) (history.Snapshot, error) {
	if !s.running.CompareAndSwap(false, true) {
		return history.Snapshot{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	if numRounds <= 0 {
		numRounds = s.cfg.NumRounds
	}
	if timeout <= 0 {
		timeout = s.cfg.RoundTimeout
	}

	start := time.Now()
	hist := history.New(0)
	s.mu.Lock()
	s.hist = hist
	s.status = Status{State: AwaitingClients, NumRounds: numRounds, StartedAt: start, UpdatedAt: start}
	s.mu.Unlock()

	for _, id := range s.cfg.MandatoryClients {
		if _, err := s.registry.GetByIdentity(ctx, id, s.cfg.DiscoveryTimeout); err != nil {
			return s.abort(hist, start, fmt.Errorf("%w: %s", ErrMandatoryClientMissing, id))
		}
		s.logger.Info("mandatory client joined", slog.String("client_id", id))
	}

	s.transition(Initializing, 0, 0)
	gs, err := s.initialize(ctx, timeout)
	if err != nil {
		return s.abort(hist, start, err)
	}
	hist = history.New(gs.session)
	s.mu.Lock()
	s.hist = hist
	s.status.Session = gs.session
	s.mu.Unlock()

	if !s.registry.WaitForCount(ctx, s.strategy.MinAvailableClients(), s.cfg.AvailabilityTimeout) {
		return s.abort(hist, start, fmt.Errorf("%w: need %d", ErrInsufficientClients, s.strategy.MinAvailableClients()))
	}

	for round := 1; round <= numRounds; round++ {
		if err := ctx.Err(); err != nil {
			return s.abort(hist, start, err)
		}
		if err := s.runRound(ctx, &gs, round, timeout, hist); err != nil {
			return s.abort(hist, start, err)
		}
	}

	s.transition(Finalizing, gs.session, gs.round)
	gs.params = fl.Parameters{}
	elapsed := time.Since(start)
	hist.Finalize(elapsed)

	s.mu.Lock()
	now := time.Now()
	s.status.State = Done
	s.status.FinishedAt = now
	s.status.UpdatedAt = now
	s.mu.Unlock()

	s.logger.Info("run completed",
		slog.Int("session", gs.session),
		slog.Int("rounds", numRounds),
		slog.String("elapsed", elapsed.String()),
	)

	return hist.Snapshot(), nil
}

func (s *service) Status(_ context.Context) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status, nil
}

func (s *service) History(_ context.Context) (history.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hist.Snapshot(), nil
}

func (s *service) ListClients(_ context.Context, offset, limit uint64) (ClientPage, error) {
	all := s.registry.List()
	total := uint64(len(all))

	page := ClientPage{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Clients: []registry.Handle{},
	}
	if offset >= total {
		return page, nil
	}
	limit = min(limit, total-offset)
	page.Clients = all[offset : offset+limit]

	return page, nil
}

func (s *service) RemoveClient(_ context.Context, id string) error {
	if id == "" {
		return pkgerrors.ErrEmptyKey
	}
	if !s.registry.Unregister(id) {
		return pkgerrors.ErrNotFound
	}

	return nil
}

// initialize resolves the session and the starting parameters. The ledger
// checkpoint wins over the strategy seed, which wins over asking a client.
func (s *service) initialize(ctx context.Context, timeout time.Duration) (globalState, error) {
	latest, err := s.ledger.QueryLatest(ctx, s.cfg.Owner)
	if err != nil {
		return globalState{}, fmt.Errorf("query latest checkpoint: %w", err)
	}
	gs := globalState{session: ledger.NextSession(latest)}

	if latest != nil && latest.URL != "" {
		params, err := s.resume(ctx, *latest)
		if err != nil {
			return globalState{}, err
		}
		gs.params = params
		s.logger.Info("resuming from checkpoint",
			slog.String("checkpoint", latest.ID),
			slog.Int("session", gs.session),
		)

		return gs, nil
	}

	seed, err := s.strategy.InitializeParameters(ctx, s.candidates())
	if err != nil {
		return globalState{}, fmt.Errorf("initialize parameters: %w", err)
	}
	if seed != nil {
		gs.params = *seed
		s.logger.Info("using strategy initial parameters", slog.Int("session", gs.session))

		return gs, nil
	}

	params, err := s.parametersFromClient(ctx, timeout)
	if err != nil {
		return globalState{}, err
	}
	gs.params = params

	return gs, nil
}

func (s *service) resume(ctx context.Context, cp ledger.Checkpoint) (fl.Parameters, error) {
	data, err := s.store.Get(ctx, cp.URL)
	if err != nil {
		return fl.Parameters{}, fmt.Errorf("fetch checkpoint %s: %w", cp.ID, err)
	}
	if cp.Hash != "" && ledger.ComputeContentHash(data) != cp.Hash {
		return fl.Parameters{}, fmt.Errorf("%w: %s", ErrCorruptCheckpoint, cp.ID)
	}

	return fl.DecodeParameters(data)
}

func (s *service) parametersFromClient(ctx context.Context, timeout time.Duration) (fl.Parameters, error) {
	id := s.cfg.InitClientID
	if id == "" {
		if !s.registry.WaitForCount(ctx, 1, s.cfg.AvailabilityTimeout) {
			return fl.Parameters{}, errors.Join(ErrNoInitialParameters, ErrInsufficientClients)
		}
		available := s.registry.Available()
		if len(available) == 0 {
			return fl.Parameters{}, errors.Join(ErrNoInitialParameters, ErrInsufficientClients)
		}
		id = available[rand.IntN(len(available))].ID
	}

	h, err := s.registry.GetByIdentity(ctx, id, s.cfg.DiscoveryTimeout)
	if err != nil {
		return fl.Parameters{}, errors.Join(ErrNoInitialParameters, fmt.Errorf("%w: %s", ErrMandatoryClientMissing, id))
	}
	if h.Client == nil {
		return fl.Parameters{}, fmt.Errorf("%w: client %s has no transport", ErrNoInitialParameters, id)
	}

	res, fails := fanOut(ctx, timeout, []string{h.ID}, func(id string) string { return id }, func(ctx context.Context, _ string) (fl.Parameters, error) {
		return h.Client.GetParameters(ctx)
	})
	if len(fails) > 0 {
		return fl.Parameters{}, errors.Join(ErrNoInitialParameters, fails[0].Err)
	}
	s.logger.Info("received initial parameters from client", slog.String("client_id", h.ID))

	return res[0], nil
}

func (s *service) runRound(ctx context.Context, gs *globalState, round int, timeout time.Duration, hist *history.History) error {
	s.transition(FittingRound, gs.session, round)
	fitIns, err := s.strategy.ConfigureFit(ctx, round, gs.session, gs.params, s.candidates())
	if err != nil {
		s.logger.Warn("round skipped",
			slog.Int("round", round),
			slog.Int("session", gs.session),
			slog.Any("error", err),
		)

		return nil
	}

	fitResults, fitFailures := fanOut(ctx, timeout, fitIns, func(ins fl.FitInstruction) string { return ins.ClientID }, func(ctx context.Context, ins fl.FitInstruction) (fl.FitResult, error) {
		res, err := ins.Client.Fit(ctx, ins.Ins)

		return fl.FitResult{ClientID: ins.ClientID, Res: res}, err
	})
	fitResults, rejected := fl.RejectMismatched(gs.params, fitResults)
	fitFailures = append(fitFailures, rejected...)
	s.logFailures("fit", round, fitFailures)
	if err := ctx.Err(); err != nil {
		return err
	}

	params, fitMetrics, err := s.strategy.AggregateFit(ctx, round, fitResults, fitFailures)
	switch {
	case err != nil:
		s.logger.Warn("fit aggregation failed, keeping previous model", slog.Int("round", round), slog.Any("error", err))
	case params == nil:
		s.logger.Warn("no usable fit results, keeping previous model", slog.Int("round", round))
	default:
		gs.params = *params
	}
	gs.round = round
	if len(fitMetrics) > 0 {
		hist.AddFitMetrics(round, fitMetrics)
	}

	s.transition(EvaluatingRound, gs.session, round)
	evalIns, err := s.strategy.ConfigureEvaluate(ctx, round, gs.session, gs.params, s.candidates())
	if err != nil {
		s.logger.Warn("evaluation skipped", slog.Int("round", round), slog.Any("error", err))

		return nil
	}
	evalResults, evalFailures := fanOut(ctx, timeout, evalIns, func(ins fl.EvaluateInstruction) string { return ins.ClientID }, func(ctx context.Context, ins fl.EvaluateInstruction) (fl.EvaluateResult, error) {
		res, err := ins.Client.Evaluate(ctx, ins.Ins)

		return fl.EvaluateResult{ClientID: ins.ClientID, Res: res}, err
	})
	s.logFailures("evaluate", round, evalFailures)
	if err := ctx.Err(); err != nil {
		return err
	}

	loss, metrics, err := s.strategy.AggregateEvaluate(ctx, round, evalResults, evalFailures)
	if err != nil {
		s.logger.Warn("evaluate aggregation failed", slog.Int("round", round), slog.Any("error", err))

		return nil
	}
	if loss == nil {
		s.logger.Warn("no evaluation results, checkpoint skipped", slog.Int("round", round))

		return nil
	}

	s.transition(Checkpointing, gs.session, round)
	cp, err := s.checkpoint(ctx, *gs, *loss, metrics)
	if err != nil {
		return err
	}
	hist.AddLoss(round, *loss)
	if len(metrics) > 0 {
		hist.AddMetrics(round, metrics)
	}

	s.logger.Info("round completed",
		slog.Int("round", round),
		slog.Int("session", gs.session),
		slog.Float64("loss", *loss),
		slog.String("checkpoint", cp.ID),
		slog.Int("fit_results", len(fitResults)),
		slog.Int("fit_failures", len(fitFailures)),
	)

	return nil
}

func (s *service) checkpoint(ctx context.Context, gs globalState, loss float64, metrics fl.Metrics) (ledger.Checkpoint, error) {
	data, err := fl.EncodeParameters(gs.params)
	if err != nil {
		return ledger.Checkpoint{}, fmt.Errorf("encode parameters: %w", err)
	}
	hash := ledger.ComputeContentHash(data)

	locator, err := s.store.Put(ctx, data)
	if err != nil {
		return ledger.Checkpoint{}, fmt.Errorf("store checkpoint payload: %w", err)
	}

	cp := ledger.Checkpoint{
		ID:          ledger.CheckpointID(gs.session, gs.round, hash),
		Hash:        hash,
		URL:         locator,
		Owner:       s.cfg.Owner,
		Algorithm:   s.cfg.Algorithm,
		CurAccuracy: ledger.Accuracy(metrics),
		Loss:        loss,
		Metrics:     metrics,
		Round:       gs.round,
		FedSession:  gs.session,
		DocType:     ledger.DocTypeGlobal,
	}
	if err := s.ledger.Submit(ctx, cp); err != nil {
		return ledger.Checkpoint{}, fmt.Errorf("submit checkpoint %s: %w", cp.ID, err)
	}

	return cp, nil
}

func (s *service) candidates() []fl.Candidate {
	available := s.registry.Available()
	out := make([]fl.Candidate, 0, len(available))
	for _, h := range available {
		if h.Client == nil {
			continue
		}
		out = append(out, fl.Candidate{ID: h.ID, Client: h.Client})
	}

	return out
}

func (s *service) transition(state State, session, round int) {
	s.mu.Lock()
	s.status.State = state
	if session > 0 {
		s.status.Session = session
	}
	if round > 0 {
		s.status.Round = round
	}
	s.status.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("state changed",
		slog.String("state", state.String()),
		slog.Int("session", session),
		slog.Int("round", round),
	)
}

func (s *service) abort(hist *history.History, start time.Time, reason error) (history.Snapshot, error) {
	hist.Finalize(time.Since(start))

	s.mu.Lock()
	now := time.Now()
	s.status.State = Aborted
	s.status.Reason = reason.Error()
	s.status.FinishedAt = now
	s.status.UpdatedAt = now
	s.mu.Unlock()

	s.logger.Error("run aborted", slog.Any("error", reason))

	return hist.Snapshot(), errors.Join(ErrAborted, reason)
}

func (s *service) logFailures(phase string, round int, failures []fl.Failure) {
	for _, f := range failures {
		s.logger.Warn("client call failed",
			slog.String("phase", phase),
			slog.Int("round", round),
			slog.String("client_id", f.ClientID),
			slog.Any("error", f.Err),
		)
	}
}
