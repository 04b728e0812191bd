// Package history accumulates the per-round outcome of one training run.
package history

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

type RoundLoss struct {
	Round int     `json:"round"`
	Loss  float64 `json:"loss"`
}

type RoundValue struct {
	Round int     `json:"round"`
	Value float64 `json:"value"`
}

// Series is an ordered set of named metric sequences. Names keep the order in
// which they were first recorded.
type Series struct {
	Names  []string                `json:"names"`
	Values map[string][]RoundValue `json:"values"`
}

func (s *Series) add(round int, metrics map[string]float64) {
	if s.Values == nil {
		s.Values = make(map[string][]RoundValue)
	}
	for _, name := range sortedKeys(metrics) {
		if _, ok := s.Values[name]; !ok {
			s.Names = append(s.Names, name)
		}
		s.Values[name] = append(s.Values[name], RoundValue{Round: round, Value: metrics[name]})
	}
}

func (s Series) clone() Series {
	out := Series{Names: append([]string(nil), s.Names...)}
	if s.Values != nil {
		out.Values = make(map[string][]RoundValue, len(s.Values))
		for k, v := range s.Values {
			out.Values[k] = append([]RoundValue(nil), v...)
		}
	}

	return out
}

type Snapshot struct {
	Session               int           `json:"session"`
	LossesDistributed     []RoundLoss   `json:"losses_distributed"`
	MetricsDistributed    Series        `json:"metrics_distributed"`
	MetricsDistributedFit Series        `json:"metrics_distributed_fit"`
	Elapsed               time.Duration `json:"elapsed"`
	Finalized             bool          `json:"finalized"`
}

// History is append-only until Finalize is called. Reads are safe while a
// run is in progress.
type History struct {
	mu   sync.RWMutex
	snap Snapshot
}

func New(session int) *History {
	return &History{snap: Snapshot{Session: session}}
}

func (h *History) AddLoss(round int, loss float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snap.Finalized {
		return
	}
	h.snap.LossesDistributed = append(h.snap.LossesDistributed, RoundLoss{Round: round, Loss: loss})
}

func (h *History) AddMetrics(round int, metrics map[string]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snap.Finalized {
		return
	}
	h.snap.MetricsDistributed.add(round, metrics)
}

func (h *History) AddFitMetrics(round int, metrics map[string]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snap.Finalized {
		return
	}
	h.snap.MetricsDistributedFit.add(round, metrics)
}

// Finalize stamps the total wall-clock duration and freezes the history.
func (h *History) Finalize(elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snap.Finalized {
		return
	}
	h.snap.Elapsed = elapsed
	h.snap.Finalized = true
}

func (h *History) Session() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.snap.Session
}

func (h *History) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Snapshot{
		Session:               h.snap.Session,
		LossesDistributed:     append([]RoundLoss(nil), h.snap.LossesDistributed...),
		MetricsDistributed:    h.snap.MetricsDistributed.clone(),
		MetricsDistributedFit: h.snap.MetricsDistributedFit.clone(),
		Elapsed:               h.snap.Elapsed,
		Finalized:             h.snap.Finalized,
	}
}

func (h *History) String() string {
	return h.Snapshot().String()
}

func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fed Session: %d\n", s.Session)
	if len(s.LossesDistributed) > 0 {
		b.WriteString("History (loss, distributed):\n")
		for _, l := range s.LossesDistributed {
			fmt.Fprintf(&b, "\tround %d: %v\n", l.Round, l.Loss)
		}
	}
	if len(s.MetricsDistributedFit.Names) > 0 {
		b.WriteString("History (metrics, distributed, fit):\n")
		writeSeries(&b, s.MetricsDistributedFit)
	}
	if len(s.MetricsDistributed.Names) > 0 {
		b.WriteString("History (metrics, distributed, evaluate):\n")
		writeSeries(&b, s.MetricsDistributed)
	}
	if s.Finalized {
		fmt.Fprintf(&b, "Elapsed: %s\n", s.Elapsed)
	}

	return b.String()
}

func writeSeries(b *strings.Builder, s Series) {
	for _, name := range s.Names {
		fmt.Fprintf(b, "\t%s:", name)
		for _, v := range s.Values[name] {
			fmt.Fprintf(b, " (%d, %v)", v.Round, v.Value)
		}
		b.WriteString("\n")
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Metric maps carry no order of their own.
	slices.Sort(keys)

	return keys
}
