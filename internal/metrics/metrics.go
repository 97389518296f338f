package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Set is a named group of counters created on first use.
type Set struct {
	mu       sync.Mutex
	counters map[string]*Counter
}

func NewSet() *Set {
	return &Set{counters: make(map[string]*Counter)}
}

func (s *Set) Counter(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[name]
	if !ok {
		c = &Counter{}
		s.counters[name] = c
	}
	return c
}

// Snapshot returns the current value of every counter.
func (s *Set) Snapshot() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]uint64, len(s.counters))
	for name, c := range s.counters {
		out[name] = c.Load()
	}
	return out
}

// Fields renders the counters as log fields in name order.
func (s *Set) Fields() []zap.Field {
	snap := s.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, zap.Uint64(name, snap[name]))
	}
	return fields
}
