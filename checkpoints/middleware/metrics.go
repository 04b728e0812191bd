package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/go-kit/kit/metrics"
)

var _ checkpoints.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     checkpoints.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc checkpoints.Service) checkpoints.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Create(ctx context.Context, contract string, cp ledger.Checkpoint) (ledger.Checkpoint, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create").Add(1)
		mm.latency.With("method", "create").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Create(ctx, contract, cp)
}

func (mm *metricsMiddleware) Get(ctx context.Context, id string) (ledger.Checkpoint, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get").Add(1)
		mm.latency.With("method", "get").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Get(ctx, id)
}

func (mm *metricsMiddleware) Latest(ctx context.Context, contract, owner string) (*ledger.Checkpoint, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "latest").Add(1)
		mm.latency.With("method", "latest").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Latest(ctx, contract, owner)
}

func (mm *metricsMiddleware) List(ctx context.Context, contract, owner string, offset, limit uint64) (checkpoints.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list").Add(1)
		mm.latency.With("method", "list").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.List(ctx, contract, owner, offset, limit)
}
