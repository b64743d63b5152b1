// Package memory implements the graph store over per-chart adjacency maps.
// It is the default backend for development and the fixture for unit tests.
package memory

import (
	"context"
	"sync"

	"lineage/internal/graph"
	"lineage/internal/person/models"
	"lineage/pkg/platform/sentinel"
)

// chartState holds one chart's nodes, adjacency, and counter. All access
// goes through the Store mutex; charts are small enough that a single
// lock keeps the snapshot semantics trivial.
type chartState struct {
	nodes    map[int64]*models.Person
	children map[int64]map[int64]struct{} // parent -> set of children
	parents  map[int64]map[int64]struct{} // child -> set of parents
	counter  int64
	seeded   bool
}

// Store keeps the whole graph in process memory. It favors clarity over
// performance, mirroring the intended production shape (a transactional
// graph database) closely enough that services cannot tell them apart.
type Store struct {
	mu     sync.RWMutex
	charts map[string]*chartState
}

var _ graph.Store = (*Store)(nil)

func New() *Store {
	return &Store{charts: make(map[string]*chartState)}
}

func (s *Store) chart(chartID string) *chartState {
	c, ok := s.charts[chartID]
	if !ok {
		c = &chartState{
			nodes:    make(map[int64]*models.Person),
			children: make(map[int64]map[int64]struct{}),
			parents:  make(map[int64]map[int64]struct{}),
		}
		s.charts[chartID] = c
	}
	return c
}

func (s *Store) CreateNode(ctx context.Context, p *models.Person) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chart(p.ChartID)
	if _, exists := c.nodes[p.PersonID]; exists {
		// Schema backstop: (chartID, personID) must stay unique even if
		// the allocator is bypassed.
		return sentinel.ErrConflict
	}
	c.nodes[p.PersonID] = p.Clone()
	return nil
}

func (s *Store) GetNode(ctx context.Context, chartID string, personID int64) (*models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charts[chartID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p, ok := c.nodes[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) UpdateNode(ctx context.Context, p *models.Person) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charts[p.ChartID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := c.nodes[p.PersonID]; !ok {
		return sentinel.ErrNotFound
	}
	c.nodes[p.PersonID] = p.Clone()
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, chartID string, personID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charts[chartID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := c.nodes[personID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(c.nodes, personID)
	// Drop incident edges on both sides in the same critical section.
	for child := range c.children[personID] {
		delete(c.parents[child], personID)
	}
	delete(c.children, personID)
	for parent := range c.parents[personID] {
		delete(c.children[parent], personID)
	}
	delete(c.parents, personID)
	return nil
}

func (s *Store) DeleteChart(ctx context.Context, chartID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.charts, chartID)
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, chartID string, parentID, childID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charts[chartID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := c.nodes[parentID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := c.nodes[childID]; !ok {
		return sentinel.ErrNotFound
	}
	if c.children[parentID] == nil {
		c.children[parentID] = make(map[int64]struct{})
	}
	if c.parents[childID] == nil {
		c.parents[childID] = make(map[int64]struct{})
	}
	c.children[parentID][childID] = struct{}{}
	c.parents[childID][parentID] = struct{}{}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, chartID string, parentID, childID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charts[chartID]
	if !ok {
		return nil // absent edge, absent chart: both no-ops
	}
	delete(c.children[parentID], childID)
	delete(c.parents[childID], parentID)
	return nil
}

// Reachable runs an iterative BFS over the chart's child adjacency.
func (s *Store) Reachable(ctx context.Context, chartID string, fromID, toID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charts[chartID]
	if !ok {
		return false, nil
	}
	if fromID == toID {
		return true, nil
	}
	visited := map[int64]struct{}{fromID: {}}
	queue := []int64{fromID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for child := range c.children[current] {
			if child == toID {
				return true, nil
			}
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return false, nil
}

// NextPersonID increments the chart's counter under the write lock,
// seeding it lazily to the current max person id. Seeding covers recovery
// scenarios where nodes exist without a prior counter record.
func (s *Store) NextPersonID(ctx context.Context, chartID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chart(chartID)
	if !c.seeded {
		for id := range c.nodes {
			if id > c.counter {
				c.counter = id
			}
		}
		c.seeded = true
	}
	c.counter++
	return c.counter, nil
}

func (s *Store) QueryNodes(ctx context.Context, chartID string, filter models.Filter) ([]*models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charts[chartID]
	if !ok {
		return nil, nil
	}
	var out []*models.Person
	for _, p := range c.nodes {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *Store) QueryEdges(ctx context.Context, chartID string) ([]graph.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgesLocked(chartID), nil
}

func (s *Store) ChartSnapshot(ctx context.Context, chartID string) ([]*models.Person, []graph.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charts[chartID]
	if !ok {
		return nil, nil, nil
	}
	nodes := make([]*models.Person, 0, len(c.nodes))
	for _, p := range c.nodes {
		nodes = append(nodes, p.Clone())
	}
	return nodes, s.edgesLocked(chartID), nil
}

func (s *Store) edgesLocked(chartID string) []graph.Edge {
	c, ok := s.charts[chartID]
	if !ok {
		return nil
	}
	var out []graph.Edge
	for parent, children := range c.children {
		for child := range children {
			out = append(out, graph.Edge{ChartID: chartID, ParentID: parent, ChildID: child})
		}
	}
	return out
}
