package tree

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lineage/internal/graph"
	"lineage/internal/person/models"
	"lineage/internal/platform/metrics"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/sentinel"
)

// Snapshotter is the slice of the graph store the assembler needs: one
// consistent view of a chart's nodes and edges.
type Snapshotter interface {
	ChartSnapshot(ctx context.Context, chartID string) ([]*models.Person, []graph.Edge, error)
}

// Cache holds assembled trees between mutations. Implementations must be
// safe for concurrent use; errors inside implementations are swallowed
// and logged there, never surfaced to assembly.
type Cache interface {
	Get(ctx context.Context, chartID string) (*Tree, bool)
	Set(ctx context.Context, chartID string, t *Tree)
	Invalidate(ctx context.Context, chartID string)
}

// Service assembles display trees.
type Service struct {
	store   Snapshotter
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// New constructs a Service.
func New(store Snapshotter, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("lineage/tree"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assemble returns the chart's full display tree. An empty chart yields
// empty (non-nil) node and link slices.
func (s *Service) Assemble(ctx context.Context, chartID string) (*Tree, error) {
	ctx, span := s.tracer.Start(ctx, "tree.assemble",
		trace.WithAttributes(attribute.String("chart.id", chartID)))
	defer span.End()

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, chartID); ok {
			s.metrics.IncTreeCacheHits()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		s.metrics.IncTreeCacheMisses()
	}

	start := time.Now()
	persons, edges, err := s.store.ChartSnapshot(ctx, chartID)
	if err != nil {
		span.RecordError(err)
		return nil, translateStore(err)
	}

	t := project(persons, edges)
	s.metrics.ObserveTreeAssembly(start)
	span.SetAttributes(
		attribute.Int("tree.nodes", len(t.Nodes)),
		attribute.Int("tree.links", len(t.Links)),
	)

	if s.cache != nil {
		s.cache.Set(ctx, chartID, t)
	}
	return t, nil
}

// Invalidate drops the chart's cached tree. Mutation services call this
// after successful writes; it satisfies their TreeInvalidator interface.
func (s *Service) Invalidate(ctx context.Context, chartID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, chartID)
	}
}

func project(persons []*models.Person, edges []graph.Edge) *Tree {
	t := &Tree{
		Nodes: make([]Node, 0, len(persons)),
		Links: make([]Link, 0, len(edges)),
	}
	for _, p := range persons {
		t.Nodes = append(t.Nodes, Node{
			PersonID:    p.PersonID,
			Name:        p.Name,
			Gender:      string(p.Gender),
			Level:       p.Level,
			Description: p.Description,
			PhotoURL:    p.PhotoURL,
			DOB:         dateText(p.DOB),
			DOD:         dateText(p.DOD),
		})
	}
	sort.Slice(t.Nodes, func(i, j int) bool {
		return t.Nodes[i].PersonID < t.Nodes[j].PersonID
	})
	for _, e := range edges {
		t.Links = append(t.Links, Link{Source: e.ParentID, Target: e.ChildID})
	}
	return t
}

func dateText(d *models.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func translateStore(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation deadline exceeded")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "graph store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "chart snapshot failed")
	}
}
