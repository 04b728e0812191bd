package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/absmach/fedledger/pkg/fl"
)

type outcome[R any] struct {
	res R
	err error
}

// fanOut calls every item concurrently and waits until each call returned or
// its own timeout expired. Results keep the order of items. A call that is
// still running when its timeout expires is abandoned and whatever it
// eventually returns is dropped.
func fanOut[I, R any](ctx context.Context, timeout time.Duration, items []I, key func(I) string, call func(context.Context, I) (R, error)) ([]R, []fl.Failure) {
	outcomes := make([]outcome[R], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = invoke(ctx, timeout, item, call)
		}()
	}
	wg.Wait()

	var (
		results  []R
		failures []fl.Failure
	)
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, fl.Failure{ClientID: key(items[i]), Err: o.err})

			continue
		}
		results = append(results, o.res)
	}

	return results, failures
}

func invoke[I, R any](ctx context.Context, timeout time.Duration, item I, call func(context.Context, I) (R, error)) outcome[R] {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan outcome[R], 1)
	go func() {
		res, err := call(cctx, item)
		done <- outcome[R]{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o
	case <-cctx.Done():
		return outcome[R]{err: cctx.Err()}
	}
}
