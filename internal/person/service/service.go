// Package service implements the person registry: node lifecycle and
// field validation over the graph store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"lineage/internal/audit"
	"lineage/internal/person/models"
	"lineage/internal/platform/metrics"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/sentinel"
)

// Store is the slice of the graph store the registry needs.
type Store interface {
	CreateNode(ctx context.Context, p *models.Person) error
	GetNode(ctx context.Context, chartID string, personID int64) (*models.Person, error)
	UpdateNode(ctx context.Context, p *models.Person) error
	DeleteNode(ctx context.Context, chartID string, personID int64) error
	DeleteChart(ctx context.Context, chartID string) error
	QueryNodes(ctx context.Context, chartID string, filter models.Filter) ([]*models.Person, error)
}

// Allocator produces chart-scoped person ids.
type Allocator interface {
	Next(ctx context.Context, chartID string) (int64, error)
}

// ParentLinker creates validated PARENT_OF edges. Satisfied by the
// relationship service.
type ParentLinker interface {
	AddParentOf(ctx context.Context, chartID string, parentID, childID int64) error
}

// TreeInvalidator drops cached tree snapshots after mutations.
type TreeInvalidator interface {
	Invalidate(ctx context.Context, chartID string)
}

// AuditPublisher records mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates person lifecycle operations.
type Service struct {
	store       Store
	allocator   Allocator
	linker      ParentLinker
	logger      *slog.Logger
	metrics     *metrics.Metrics
	auditor     AuditPublisher
	invalidator TreeInvalidator
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

func WithParentLinker(l ParentLinker) Option {
	return func(s *Service) { s.linker = l }
}

// New constructs a Service.
func New(store Store, allocator Allocator, opts ...Option) *Service {
	s := &Service{store: store, allocator: allocator, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the caller-supplied fields of a new person.
type CreateInput struct {
	Name        string
	Gender      models.Gender
	Level       int
	DOB         *models.Date
	DOD         *models.Date
	Description *string
	PhotoURL    *string
	ParentIDs   []int64
}

// EdgeFailure describes one candidate parent edge that could not be
// created during a Create call.
type EdgeFailure struct {
	ParentID int64  `json:"parentId"`
	Reason   string `json:"reason"`
}

// CreateResult is the created record plus any non-fatal edge failures.
// The node is committed before edges are attempted, so edge failures do
// not fail the create; callers see exactly which candidates were skipped.
type CreateResult struct {
	Person       *models.Person `json:"person"`
	EdgeFailures []EdgeFailure  `json:"edgeFailures,omitempty"`
}

// Create validates input, allocates an id, writes the node, then links the
// requested parents best-effort.
func (s *Service) Create(ctx context.Context, chartID, ownerID string, input CreateInput) (*CreateResult, error) {
	// Validation precedes allocation so invalid input never burns an id.
	p, err := models.NewPerson(0, chartID, ownerID, input.Name, input.Gender, input.Level)
	if err != nil {
		return nil, err
	}

	personID, err := s.allocator.Next(ctx, chartID)
	if err != nil {
		return nil, err
	}
	p.PersonID = personID
	p.DOB = input.DOB
	p.DOD = input.DOD
	p.Description = input.Description
	p.PhotoURL = input.PhotoURL

	if err := s.store.CreateNode(ctx, p); err != nil {
		// The allocated id is wasted here, never reused.
		return nil, translateStore(err, "person could not be created")
	}

	result := &CreateResult{Person: p}
	for _, parentID := range input.ParentIDs {
		if s.linker == nil {
			break
		}
		if err := s.linker.AddParentOf(ctx, chartID, parentID, personID); err != nil {
			// The node is already committed; a bad candidate parent only
			// skips its edge.
			s.logger.WarnContext(ctx, "parent edge skipped during create",
				"chart_id", chartID,
				"person_id", personID,
				"parent_id", parentID,
				"error", err.Error(),
			)
			result.EdgeFailures = append(result.EdgeFailures, EdgeFailure{
				ParentID: parentID,
				Reason:   reasonOf(err),
			})
		}
	}

	s.metrics.IncPersonsCreated()
	s.emit(ctx, audit.Event{Action: audit.ActionPersonCreated, ChartID: chartID, PersonID: personID})
	s.invalidate(ctx, chartID)
	return result, nil
}

// Get fetches one person.
func (s *Service) Get(ctx context.Context, chartID string, personID int64) (*models.Person, error) {
	p, err := s.store.GetNode(ctx, chartID, personID)
	if err != nil {
		return nil, translateStore(err, "person not found")
	}
	return p, nil
}

// List returns the chart's persons matching the filter, ordered by level,
// then name, then person id. Sorting happens here so every backend yields
// the same deterministic order.
func (s *Service) List(ctx context.Context, chartID string, filter models.Filter) ([]*models.Person, error) {
	persons, err := s.store.QueryNodes(ctx, chartID, filter)
	if err != nil {
		return nil, translateStore(err, "persons could not be listed")
	}
	sort.Slice(persons, func(i, j int) bool {
		if persons[i].Level != persons[j].Level {
			return persons[i].Level < persons[j].Level
		}
		if c := strings.Compare(persons[i].Name, persons[j].Name); c != 0 {
			return c < 0
		}
		return persons[i].PersonID < persons[j].PersonID
	})
	return persons, nil
}

// Update applies a patch of mutable fields and returns the full
// post-update record.
func (s *Service) Update(ctx context.Context, chartID string, personID int64, patch models.Patch) (*models.Person, error) {
	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "empty patch: no recognized fields")
	}

	current, err := s.store.GetNode(ctx, chartID, personID)
	if err != nil {
		return nil, translateStore(err, "person not found")
	}

	updated, err := patch.Apply(current)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateNode(ctx, updated); err != nil {
		return nil, translateStore(err, "person could not be updated")
	}

	s.emit(ctx, audit.Event{Action: audit.ActionPersonUpdated, ChartID: chartID, PersonID: personID})
	s.invalidate(ctx, chartID)
	return updated, nil
}

// Delete removes the person and all incident edges.
func (s *Service) Delete(ctx context.Context, chartID string, personID int64) error {
	if err := s.store.DeleteNode(ctx, chartID, personID); err != nil {
		return translateStore(err, "person not found")
	}
	s.metrics.IncPersonsDeleted()
	s.emit(ctx, audit.Event{Action: audit.ActionPersonDeleted, ChartID: chartID, PersonID: personID})
	s.invalidate(ctx, chartID)
	return nil
}

// DeleteChart purges all graph state for a chart. Called by the chart
// lifecycle collaborator before it drops chart metadata.
func (s *Service) DeleteChart(ctx context.Context, chartID string) error {
	if err := s.store.DeleteChart(ctx, chartID); err != nil {
		return translateStore(err, "chart could not be purged")
	}
	s.emit(ctx, audit.Event{Action: audit.ActionChartPurged, ChartID: chartID})
	s.invalidate(ctx, chartID)
	return nil
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

func reasonOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "edge could not be created"
}

// translateStore folds sentinel and context errors into domain errors.
func translateStore(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent modification")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "graph store unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation deadline exceeded")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "graph store failure")
	}
}
