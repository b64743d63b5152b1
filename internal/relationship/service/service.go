// Package service implements PARENT_OF edge lifecycle: generational-order
// and acyclicity enforcement over the graph store.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lineage/internal/audit"
	"lineage/internal/person/models"
	"lineage/internal/platform/metrics"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/sentinel"
)

// Store is the slice of the graph store the relationship manager needs.
type Store interface {
	GetNode(ctx context.Context, chartID string, personID int64) (*models.Person, error)
	UpsertEdge(ctx context.Context, chartID string, parentID, childID int64) error
	DeleteEdge(ctx context.Context, chartID string, parentID, childID int64) error
	Reachable(ctx context.Context, chartID string, fromID, toID int64) (bool, error)
}

// AuditPublisher records mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TreeInvalidator drops cached tree snapshots after mutations.
type TreeInvalidator interface {
	Invalidate(ctx context.Context, chartID string)
}

// Service manages PARENT_OF edges.
type Service struct {
	store       Store
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     AuditPublisher
	invalidator TreeInvalidator
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithTreeInvalidator(inv TreeInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("lineage/relationship"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddParentOf validates and commits one directed parent-child edge.
//
// The level comparison is a cheap necessary pre-filter only: levels are
// caller-supplied and never recomputed, so the reachability check runs
// even when levels look consistent. Reachability is the authoritative
// cycle guard.
func (s *Service) AddParentOf(ctx context.Context, chartID string, parentID, childID int64) error {
	parent, err := s.store.GetNode(ctx, chartID, parentID)
	if err != nil {
		return translateStore(err, "parent not found")
	}
	child, err := s.store.GetNode(ctx, chartID, childID)
	if err != nil {
		return translateStore(err, "child not found")
	}

	if parent.Level >= child.Level {
		return dErrors.Newf(dErrors.CodeInvalidLevel,
			"parent (level %d) must have lower level than child (level %d)",
			parent.Level, child.Level)
	}

	cycles, err := s.wouldCycle(ctx, chartID, parentID, childID)
	if err != nil {
		return translateStore(err, "reachability check failed")
	}
	if cycles {
		s.metrics.IncCycleRejections()
		return dErrors.New(dErrors.CodeCycle,
			"relationship would create a cycle")
	}

	if err := s.store.UpsertEdge(ctx, chartID, parentID, childID); err != nil {
		return translateStore(err, "parent or child not found")
	}

	s.metrics.IncEdgesAdded()
	s.emit(ctx, audit.Event{
		Action:   audit.ActionEdgeAdded,
		ChartID:  chartID,
		ParentID: parentID,
		ChildID:  childID,
	})
	s.invalidate(ctx, chartID)
	return nil
}

// RemoveParentOf deletes the edge if present; absence is not an error.
func (s *Service) RemoveParentOf(ctx context.Context, chartID string, parentID, childID int64) error {
	if err := s.store.DeleteEdge(ctx, chartID, parentID, childID); err != nil {
		return translateStore(err, "edge could not be removed")
	}
	s.metrics.IncEdgesRemoved()
	s.emit(ctx, audit.Event{
		Action:   audit.ActionEdgeRemoved,
		ChartID:  chartID,
		ParentID: parentID,
		ChildID:  childID,
	})
	s.invalidate(ctx, chartID)
	return nil
}

// wouldCycle asks whether a directed path child -> ... -> parent already
// exists; committing parent -> child would then close a cycle.
func (s *Service) wouldCycle(ctx context.Context, chartID string, parentID, childID int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "relationship.cycle_check",
		trace.WithAttributes(
			attribute.String("chart.id", chartID),
			attribute.Int64("edge.parent_id", parentID),
			attribute.Int64("edge.child_id", childID),
		))
	defer span.End()

	reachable, err := s.store.Reachable(ctx, chartID, childID, parentID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("edge.would_cycle", reachable))
	return reachable, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"chart_id", event.ChartID,
			"error", err.Error(),
		)
	}
}

func (s *Service) invalidate(ctx context.Context, chartID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, chartID)
	}
}

func translateStore(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "graph store unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation deadline exceeded")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "graph store failure")
	}
}
