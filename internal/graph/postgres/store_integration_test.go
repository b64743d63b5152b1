//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	graphpostgres "lineage/internal/graph/postgres"
	"lineage/internal/person/models"
	"lineage/pkg/platform/sentinel"
	"lineage/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *graphpostgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = graphpostgres.New(s.postgres.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "parent_edges", "persons", "person_counters")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seed(chartID string, personID int64, name string, level int) {
	p, err := models.NewPerson(personID, chartID, "owner-1", name, models.GenderFemale, level)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateNode(context.Background(), p))
}

func (s *PostgresStoreSuite) TestNodeLifecycle() {
	ctx := context.Background()

	s.Run("create then get round-trips all fields", func() {
		p, err := models.NewPerson(1, "c1", "owner-1", "Ada", models.GenderFemale, 0)
		s.Require().NoError(err)
		dob := models.NewDate(1815, 12, 10)
		desc := "mathematician"
		p.DOB = &dob
		p.Description = &desc
		s.Require().NoError(s.store.CreateNode(ctx, p))

		got, err := s.store.GetNode(ctx, "c1", 1)
		s.Require().NoError(err)
		s.Equal("Ada", got.Name)
		s.Equal(models.GenderFemale, got.Gender)
		s.Require().NotNil(got.DOB)
		s.Equal("1815-12-10", got.DOB.String())
		s.Require().NotNil(got.Description)
		s.Equal("mathematician", *got.Description)
		s.Nil(got.DOD)
	})

	s.Run("duplicate key is a conflict", func() {
		s.seed("c2", 1, "Ada", 0)
		p, err := models.NewPerson(1, "c2", "owner-1", "Impostor", models.GenderMale, 0)
		s.Require().NoError(err)
		s.ErrorIs(s.store.CreateNode(ctx, p), sentinel.ErrConflict)
	})

	s.Run("get of a missing node is not found", func() {
		_, err := s.store.GetNode(ctx, "c3", 404)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("update persists and missing update is not found", func() {
		s.seed("c4", 1, "Ada", 0)
		got, err := s.store.GetNode(ctx, "c4", 1)
		s.Require().NoError(err)
		got.Name = "Ada Lovelace"
		got.Level = 2
		s.Require().NoError(s.store.UpdateNode(ctx, got))

		fresh, err := s.store.GetNode(ctx, "c4", 1)
		s.Require().NoError(err)
		s.Equal("Ada Lovelace", fresh.Name)
		s.Equal(2, fresh.Level)

		got.PersonID = 404
		s.ErrorIs(s.store.UpdateNode(ctx, got), sentinel.ErrNotFound)
	})

	s.Run("delete cascades incident edges", func() {
		s.seed("c5", 1, "Parent", 0)
		s.seed("c5", 2, "Child", 1)
		s.Require().NoError(s.store.UpsertEdge(ctx, "c5", 1, 2))

		s.Require().NoError(s.store.DeleteNode(ctx, "c5", 1))

		edges, err := s.store.QueryEdges(ctx, "c5")
		s.Require().NoError(err)
		s.Empty(edges)
		s.ErrorIs(s.store.DeleteNode(ctx, "c5", 1), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestEdges() {
	ctx := context.Background()

	s.Run("upsert is idempotent", func() {
		s.seed("c1", 1, "Parent", 0)
		s.seed("c1", 2, "Child", 1)
		s.Require().NoError(s.store.UpsertEdge(ctx, "c1", 1, 2))
		s.Require().NoError(s.store.UpsertEdge(ctx, "c1", 1, 2))

		edges, err := s.store.QueryEdges(ctx, "c1")
		s.Require().NoError(err)
		s.Len(edges, 1)
	})

	s.Run("edge to a missing endpoint is not found", func() {
		s.seed("c2", 1, "Parent", 0)
		s.ErrorIs(s.store.UpsertEdge(ctx, "c2", 1, 99), sentinel.ErrNotFound)
	})

	s.Run("delete of an absent edge is a no-op", func() {
		s.NoError(s.store.DeleteEdge(ctx, "c3", 7, 8))
	})
}

func (s *PostgresStoreSuite) TestReachable() {
	ctx := context.Background()
	s.seed("c1", 1, "A", 0)
	s.seed("c1", 2, "B", 1)
	s.seed("c1", 3, "C", 2)
	s.seed("c1", 4, "Island", 0)
	s.Require().NoError(s.store.UpsertEdge(ctx, "c1", 1, 2))
	s.Require().NoError(s.store.UpsertEdge(ctx, "c1", 2, 3))

	s.Run("follows transitive paths", func() {
		ok, err := s.store.Reachable(ctx, "c1", 1, 3)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("is directed", func() {
		ok, err := s.store.Reachable(ctx, "c1", 3, 1)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("isolated nodes reach nothing", func() {
		ok, err := s.store.Reachable(ctx, "c1", 4, 1)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("a node reaches itself", func() {
		ok, err := s.store.Reachable(ctx, "c1", 2, 2)
		s.Require().NoError(err)
		s.True(ok)
	})
}

func (s *PostgresStoreSuite) TestNextPersonID() {
	ctx := context.Background()

	s.Run("starts at one and increments", func() {
		id, err := s.store.NextPersonID(ctx, "c1")
		s.Require().NoError(err)
		s.Equal(int64(1), id)

		id, err = s.store.NextPersonID(ctx, "c1")
		s.Require().NoError(err)
		s.Equal(int64(2), id)
	})

	s.Run("seeds to the chart's existing max id", func() {
		s.seed("c2", 41, "Backfilled", 0)
		id, err := s.store.NextPersonID(ctx, "c2")
		s.Require().NoError(err)
		s.Equal(int64(42), id)
	})

	s.Run("concurrent allocations are unique and contiguous", func() {
		const n = 32
		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := s.store.NextPersonID(ctx, "c3")
				if err == nil {
					ids <- id
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			s.False(seen[id], "id %d allocated twice", id)
			seen[id] = true
		}
		s.Len(seen, n)
		for i := int64(1); i <= n; i++ {
			s.True(seen[i], "missing id %d", i)
		}
	})
}

func (s *PostgresStoreSuite) TestDeleteChart() {
	ctx := context.Background()
	s.seed("c1", 1, "Ada", 0)
	s.seed("c1", 2, "Grace", 1)
	s.Require().NoError(s.store.UpsertEdge(ctx, "c1", 1, 2))
	_, err := s.store.NextPersonID(ctx, "c1")
	s.Require().NoError(err)
	s.seed("keep", 1, "Mary", 0)

	s.Require().NoError(s.store.DeleteChart(ctx, "c1"))

	nodes, err := s.store.QueryNodes(ctx, "c1", models.Filter{})
	s.Require().NoError(err)
	s.Empty(nodes)

	// Counter restarts after the purge.
	id, err := s.store.NextPersonID(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(int64(1), id)

	kept, err := s.store.QueryNodes(ctx, "keep", models.Filter{})
	s.Require().NoError(err)
	s.Len(kept, 1)
}

func (s *PostgresStoreSuite) TestQueryNodesFilters() {
	ctx := context.Background()
	s.seed("c1", 1, "Ada Lovelace", 0)
	s.seed("c1", 2, "Grace Hopper", 1)
	p, err := models.NewPerson(3, "c1", "owner-1", "Alan Turing", models.GenderMale, 1)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateNode(ctx, p))

	s.Run("name filter is a case-insensitive substring", func() {
		got, err := s.store.QueryNodes(ctx, "c1", models.Filter{NameContains: "ada"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("Ada Lovelace", got[0].Name)
	})

	s.Run("gender and level combine", func() {
		male := models.GenderMale
		level := 1
		got, err := s.store.QueryNodes(ctx, "c1", models.Filter{Gender: &male, Level: &level})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("Alan Turing", got[0].Name)
	})
}

func (s *PostgresStoreSuite) TestChartSnapshot() {
	ctx := context.Background()
	s.seed("c1", 1, "A", 0)
	s.seed("c1", 2, "B", 1)
	s.Require().NoError(s.store.UpsertEdge(ctx, "c1", 1, 2))

	nodes, edges, err := s.store.ChartSnapshot(ctx, "c1")
	s.Require().NoError(err)
	s.Len(nodes, 2)
	s.Require().Len(edges, 1)
	s.Equal(int64(1), edges[0].ParentID)
	s.Equal(int64(2), edges[0].ChildID)
}
