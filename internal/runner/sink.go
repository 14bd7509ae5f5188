package runner

import "sync"

// Sink is an append-only list with a hard cap, safe for concurrent writers.
type Sink[T any] struct {
	mu    sync.Mutex
	limit int
	items []T
}

func NewSink[T any](limit int) *Sink[T] {
	if limit < 0 {
		limit = 0
	}
	return &Sink[T]{limit: limit, items: make([]T, 0, min(limit, 1024))}
}

// Add appends v unless the sink is full. It reports whether v was kept.
func (s *Sink[T]) Add(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.limit {
		return false
	}
	s.items = append(s.items, v)
	return true
}

func (s *Sink[T]) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) >= s.limit
}

func (s *Sink[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Snapshot returns a copy of the current contents.
func (s *Sink[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
