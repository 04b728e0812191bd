package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/absmach/fedledger/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAvailable(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.Register("b", nil, nil)
	r.Register("a", map[string]string{"cid": "1"}, nil)
	r.Register("c", nil, nil)
	r.MarkUnreachable("c")

	available := r.Available()
	require.Len(t, available, 2)
	assert.Equal(t, "a", available[0].ID)
	assert.Equal(t, "b", available[1].ID)
	assert.Len(t, r.List(), 3)
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Touch("c"))
	assert.Equal(t, 3, r.Len())
	assert.False(t, r.Touch("missing"))

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	assert.Equal(t, 2, r.Len())
}

func TestGetByIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(r *registry.Registry)
		late     func(r *registry.Registry)
		identity string
		expected string
		err      error
	}{
		{
			name:     "present by primary id",
			setup:    func(r *registry.Registry) { r.Register("client-1", nil, nil) },
			identity: "client-1",
			expected: "client-1",
		},
		{
			name: "present by cid property",
			setup: func(r *registry.Registry) {
				r.Register("ipv4:10.0.0.2:5511", map[string]string{"cid": "1", "peer_name": "peer0"}, nil)
			},
			identity: "1",
			expected: "ipv4:10.0.0.2:5511",
		},
		{
			name:     "arrives after wait started",
			setup:    func(*registry.Registry) {},
			late:     func(r *registry.Registry) { r.Register("late", nil, nil) },
			identity: "late",
			expected: "late",
		},
		{
			name:     "never arrives",
			setup:    func(r *registry.Registry) { r.Register("other", nil, nil) },
			identity: "missing",
			err:      registry.ErrNotFound,
		},
		{
			name: "unreachable client is not returned",
			setup: func(r *registry.Registry) {
				r.Register("gone", nil, nil)
				r.MarkUnreachable("gone")
			},
			identity: "gone",
			err:      registry.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := registry.New()
			tt.setup(r)
			if tt.late != nil {
				go func() {
					time.Sleep(20 * time.Millisecond)
					tt.late(r)
				}()
			}

			h, err := r.GetByIdentity(context.Background(), tt.identity, 300*time.Millisecond)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, h.ID)
		})
	}
}

func TestWaitForCount(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.Register("a", nil, nil)

	assert.True(t, r.WaitForCount(context.Background(), 1, 10*time.Millisecond))
	assert.False(t, r.WaitForCount(context.Background(), 2, 20*time.Millisecond))

	done := make(chan bool)
	go func() {
		done <- r.WaitForCount(context.Background(), 3, time.Second)
	}()
	r.Register("b", nil, nil)
	r.Register("c", nil, nil)
	assert.True(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, r.WaitForCount(ctx, 10, time.Second))
}

func TestMarkStale(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.Register("old", nil, nil)
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	r.Register("fresh", nil, nil)

	stale := r.MarkStale(cutoff)
	assert.Equal(t, []string{"old"}, stale)
	available := r.Available()
	require.Len(t, available, 1)
	assert.Equal(t, "fresh", available[0].ID)
}

func TestHandleIsACopy(t *testing.T) {
	t.Parallel()

	r := registry.New()
	h := r.Register("a", map[string]string{"cid": "1"}, nil)
	h.Properties["cid"] = "2"

	got, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "1", got.Properties["cid"])

	props := map[string]string{"cid": "3"}
	r.Register("b", props, nil)
	props["cid"] = "4"

	got, ok = r.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "3", got.Properties["cid"])
}

func TestConcurrentRegisterAndLookup(t *testing.T) {
	t.Parallel()

	const iterations = 500

	r := registry.New()
	r.Register("c1", map[string]string{"cid": "c1"}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2*iterations)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range iterations {
			r.Register("c1", map[string]string{"cid": "c1", "seq": fmt.Sprint(i)}, nil)
			r.Touch("c1")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range iterations {
			h, err := r.GetByIdentity(context.Background(), "c1", time.Second)
			if err != nil {
				errs <- err

				continue
			}
			if h.Properties["cid"] != "c1" {
				errs <- fmt.Errorf("unexpected cid %q", h.Properties["cid"])
			}
			if !r.WaitForCount(context.Background(), 1, time.Second) {
				errs <- fmt.Errorf("count wait timed out")
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestBlockedWaitersWakeOnRegister(t *testing.T) {
	t.Parallel()

	const clients = 20

	r := registry.New()
	var wg sync.WaitGroup
	found := make(chan string, clients)
	counted := make(chan bool, 1)

	for i := range clients {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h, err := r.GetByIdentity(context.Background(), id, 2*time.Second)
			if err == nil {
				found <- h.ID
			}
		}(fmt.Sprintf("client-%d", i))
	}
	go func() {
		counted <- r.WaitForCount(context.Background(), clients, 2*time.Second)
	}()

	var reg sync.WaitGroup
	for i := range clients {
		reg.Add(1)
		go func(id string) {
			defer reg.Done()
			r.Register(id, nil, nil)
		}(fmt.Sprintf("client-%d", i))
	}
	reg.Wait()
	wg.Wait()
	close(found)

	assert.Len(t, found, clients)
	assert.True(t, <-counted)
}
