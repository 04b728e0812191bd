package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/pkg/ledger"
)

var _ checkpoints.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    checkpoints.Service
}

func Logging(logger *slog.Logger, svc checkpoints.Service) checkpoints.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Create(ctx context.Context, contract string, cp ledger.Checkpoint) (saved ledger.Checkpoint, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contract", contract),
			slog.Group("checkpoint",
				slog.String("id", cp.ID),
				slog.String("owner", cp.Owner),
				slog.Int("session", cp.FedSession),
				slog.Int("round", cp.Round),
				slog.Float64("accuracy", cp.CurAccuracy),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create checkpoint failed", args...)

			return
		}
		lm.logger.Info("Create checkpoint completed successfully", args...)
	}(time.Now())

	return lm.svc.Create(ctx, contract, cp)
}

func (lm *loggingMiddleware) Get(ctx context.Context, id string) (cp ledger.Checkpoint, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("checkpoint",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get checkpoint failed", args...)

			return
		}
		lm.logger.Info("Get checkpoint completed successfully", args...)
	}(time.Now())

	return lm.svc.Get(ctx, id)
}

func (lm *loggingMiddleware) Latest(ctx context.Context, contract, owner string) (cp *ledger.Checkpoint, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contract", contract),
			slog.String("owner", owner),
			slog.Bool("found", cp != nil),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Query latest checkpoint failed", args...)

			return
		}
		lm.logger.Info("Query latest checkpoint completed successfully", args...)
	}(time.Now())

	return lm.svc.Latest(ctx, contract, owner)
}

func (lm *loggingMiddleware) List(ctx context.Context, contract, owner string, offset, limit uint64) (page checkpoints.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contract", contract),
			slog.String("owner", owner),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List checkpoints failed", args...)

			return
		}
		lm.logger.Info("List checkpoints completed successfully", args...)
	}(time.Now())

	return lm.svc.List(ctx, contract, owner, offset, limit)
}
