// Package graph defines the persistence contract for the per-chart
// genealogy graph: person nodes, directed PARENT_OF edges, and the
// per-chart id counter.
//
// The contract is interface-driven so domain services stay testable and
// the backend can be swapped (in-memory adjacency maps, PostgreSQL)
// without rewiring business code. Backends return sentinel errors from
// pkg/platform/sentinel; services translate them into domain errors.
package graph

import (
	"context"

	"lineage/internal/person/models"
)

// CounterPerson is the per-chart counter kind backing person id allocation.
const CounterPerson = "PERSON"

// Edge is one directed PARENT_OF relation within a chart.
type Edge struct {
	ChartID  string
	ParentID int64
	ChildID  int64
}

// Store is the full capability contract required by the core.
//
// Guarantees backends must provide:
//   - (chartID, personID) uniqueness is enforced at the store level as a
//     backstop to the allocator
//   - DeleteNode removes the node and all incident edges atomically
//   - UpsertEdge and DeleteEdge are idempotent and atomic per edge
//   - NextPersonID is an indivisible read-or-create-increment-return;
//     the counter is lazily seeded to the chart's current max person id
//   - ChartSnapshot returns nodes and edges from one consistent view
type Store interface {
	CreateNode(ctx context.Context, p *models.Person) error
	GetNode(ctx context.Context, chartID string, personID int64) (*models.Person, error)
	UpdateNode(ctx context.Context, p *models.Person) error
	DeleteNode(ctx context.Context, chartID string, personID int64) error

	// DeleteChart purges every node, edge, and counter for the chart.
	// Invoked by the chart lifecycle collaborator before it drops chart
	// metadata. Idempotent.
	DeleteChart(ctx context.Context, chartID string) error

	UpsertEdge(ctx context.Context, chartID string, parentID, childID int64) error
	DeleteEdge(ctx context.Context, chartID string, parentID, childID int64) error

	// Reachable reports whether a directed path fromID -> ... -> toID
	// exists within the chart.
	Reachable(ctx context.Context, chartID string, fromID, toID int64) (bool, error)

	// NextPersonID atomically increments and returns the chart's person
	// counter.
	NextPersonID(ctx context.Context, chartID string) (int64, error)

	QueryNodes(ctx context.Context, chartID string, filter models.Filter) ([]*models.Person, error)
	QueryEdges(ctx context.Context, chartID string) ([]Edge, error)

	// ChartSnapshot reads all nodes and edges of a chart under one
	// consistent view so tree assembly never observes a half-applied
	// mutation.
	ChartSnapshot(ctx context.Context, chartID string) ([]*models.Person, []Edge, error)
}
