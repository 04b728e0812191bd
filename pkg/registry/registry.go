// Package registry tracks the clients connected to a coordinator and lets
// callers block until a given client, or a given number of clients, is present.
package registry

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/absmach/fedledger/pkg/fl"
)

// PropertyClientID is the client-reported property used as a fallback identity.
const PropertyClientID = "cid"

var ErrNotFound = errors.New("client not found")

type Handle struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties,omitempty"`
	Reachable  bool              `json:"reachable"`
	JoinedAt   time.Time         `json:"joined_at"`
	LastSeen   time.Time         `json:"last_seen"`
	Client     fl.Client         `json:"-"`
}

// Registry is safe for concurrent use. Waiters are woken by closing the
// current notify channel, which is replaced on every membership change.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Handle
	notify  chan struct{}
}

func New() *Registry {
	return &Registry{
		clients: make(map[string]*Handle),
		notify:  make(chan struct{}),
	}
}

// Register adds a client or refreshes an existing one.
func (r *Registry) Register(id string, props map[string]string, client fl.Client) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	h, ok := r.clients[id]
	if !ok {
		h = &Handle{ID: id, JoinedAt: now}
		r.clients[id] = h
	}
	if props != nil {
		h.Properties = maps.Clone(props)
	}
	if client != nil {
		h.Client = client
	}
	h.Reachable = true
	h.LastSeen = now
	r.broadcast()

	return h.copy()
}

// Touch records a heartbeat from a known client.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.clients[id]
	if !ok {
		return false
	}
	h.LastSeen = time.Now()
	if !h.Reachable {
		h.Reachable = true
		r.broadcast()
	}

	return true
}

// MarkUnreachable keeps the client listed but excludes it from sampling.
func (r *Registry) MarkUnreachable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.clients[id]; ok {
		h.Reachable = false
		r.broadcast()
	}
}

func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	r.broadcast()

	return true
}

// MarkStale marks every client not seen since cutoff as unreachable and
// returns their IDs.
func (r *Registry) MarkStale(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []string
	for id, h := range r.clients {
		if h.Reachable && h.LastSeen.Before(cutoff) {
			h.Reachable = false
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		slices.Sort(stale)
		r.broadcast()
	}

	return stale
}

// Lookup finds a reachable client by primary ID, falling back to the "cid"
// property reported by the client.
func (r *Registry) Lookup(identity string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.lookup(identity)
	if h == nil {
		return Handle{}, false
	}

	return h.copy(), true
}

// GetByIdentity blocks until a client with the given identity is available or
// the timeout elapses.
func (r *Registry) GetByIdentity(ctx context.Context, identity string, timeout time.Duration) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		var found Handle
		r.mu.Lock()
		h := r.lookup(identity)
		if h != nil {
			found = h.copy()
		}
		wait := r.notify
		r.mu.Unlock()

		if h != nil {
			return found, nil
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return Handle{}, ErrNotFound
		}
	}
}

// WaitForCount blocks until at least n reachable clients are present.
// It reports false on timeout or cancellation.
func (r *Registry) WaitForCount(ctx context.Context, n int, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		r.mu.Lock()
		count := r.reachable()
		wait := r.notify
		r.mu.Unlock()

		if count >= n {
			return true
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return false
		}
	}
}

// Available returns the reachable clients ordered by ID.
func (r *Registry) Available() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handle, 0, len(r.clients))
	for _, h := range r.clients {
		if h.Reachable {
			out = append(out, h.copy())
		}
	}
	slices.SortFunc(out, func(a, b Handle) int { return strings.Compare(a.ID, b.ID) })

	return out
}

// List returns every known client ordered by ID.
func (r *Registry) List() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handle, 0, len(r.clients))
	for _, h := range r.clients {
		out = append(out, h.copy())
	}
	slices.SortFunc(out, func(a, b Handle) int { return strings.Compare(a.ID, b.ID) })

	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.reachable()
}

func (r *Registry) lookup(identity string) *Handle {
	if h, ok := r.clients[identity]; ok && h.Reachable {
		return h
	}
	for _, h := range r.clients {
		if h.Reachable && h.Properties[PropertyClientID] == identity {
			return h
		}
	}

	return nil
}

func (r *Registry) reachable() int {
	n := 0
	for _, h := range r.clients {
		if h.Reachable {
			n++
		}
	}

	return n
}

// broadcast must be called with mu held.
func (r *Registry) broadcast() {
	close(r.notify)
	r.notify = make(chan struct{})
}

func (h *Handle) copy() Handle {
	c := *h
	c.Properties = maps.Clone(h.Properties)

	return c
}
