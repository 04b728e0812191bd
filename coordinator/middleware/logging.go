package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/history"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Run(ctx context.Context, numRounds int, timeout time.Duration) (snap history.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.Int("num_rounds", numRounds),
				slog.String("round_timeout", timeout.String()),
				slog.Int("session", snap.Session),
				slog.Int("completed_rounds", len(snap.LossesDistributed)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Run failed", args...)

			return
		}
		lm.logger.Info("Run completed successfully", args...)
	}(time.Now())

	return lm.svc.Run(ctx, numRounds, timeout)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (status coordinator.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("state", status.State.String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Info("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) History(ctx context.Context) (snap history.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("session", snap.Session),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get history failed", args...)

			return
		}
		lm.logger.Info("Get history completed successfully", args...)
	}(time.Now())

	return lm.svc.History(ctx)
}

func (lm *loggingMiddleware) ListClients(ctx context.Context, offset, limit uint64) (page coordinator.ClientPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List clients failed", args...)

			return
		}
		lm.logger.Info("List clients completed successfully", args...)
	}(time.Now())

	return lm.svc.ListClients(ctx, offset, limit)
}

func (lm *loggingMiddleware) RemoveClient(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Remove client failed", args...)

			return
		}
		lm.logger.Info("Remove client completed successfully", args...)
	}(time.Now())

	return lm.svc.RemoveClient(ctx, id)
}
