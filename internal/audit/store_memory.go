package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps events per chart. Used in tests and as the default
// sink when no broker is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ChartID] = append(s.events[event.ChartID], event)
	return nil
}

// ListByChart returns a copy of the chart's recorded events in emission order.
func (s *InMemoryStore) ListByChart(_ context.Context, chartID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[chartID]...), nil
}
