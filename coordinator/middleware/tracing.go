package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/history"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Run(ctx context.Context, numRounds int, timeout time.Duration) (history.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.Int("num_rounds", numRounds),
		attribute.String("round_timeout", timeout.String()),
	))
	defer span.End()

	snap, err := tm.svc.Run(ctx, numRounds, timeout)
	span.SetAttributes(attribute.Int("session", snap.Session))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return snap, err
}

func (tm *tracing) Status(ctx context.Context) (coordinator.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) History(ctx context.Context) (history.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "history")
	defer span.End()

	return tm.svc.History(ctx)
}

func (tm *tracing) ListClients(ctx context.Context, offset, limit uint64) (coordinator.ClientPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-clients", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListClients(ctx, offset, limit)
}

func (tm *tracing) RemoveClient(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "remove-client", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.RemoveClient(ctx, id)
}
