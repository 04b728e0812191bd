package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/history"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Run(ctx context.Context, numRounds int, timeout time.Duration) (history.Snapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "run").Add(1)
		mm.latency.With("method", "run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Run(ctx, numRounds, timeout)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (coordinator.Status, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "status").Add(1)
		mm.latency.With("method", "status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) History(ctx context.Context) (history.Snapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "history").Add(1)
		mm.latency.With("method", "history").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.History(ctx)
}

func (mm *metricsMiddleware) ListClients(ctx context.Context, offset, limit uint64) (coordinator.ClientPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-clients").Add(1)
		mm.latency.With("method", "list-clients").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListClients(ctx, offset, limit)
}

func (mm *metricsMiddleware) RemoveClient(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "remove-client").Add(1)
		mm.latency.With("method", "remove-client").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RemoveClient(ctx, id)
}
