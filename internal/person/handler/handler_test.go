package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"lineage/internal/graph/memory"
	"lineage/internal/identity"
	"lineage/internal/person/models"
	"lineage/internal/person/service"
	relationship "lineage/internal/relationship/service"
	"lineage/pkg/requestcontext"
)

// HandlerSuite runs the person endpoints over real in-memory components.
// The gateway assertion middleware is replaced by a stub that injects the
// configured decision; assertion verification has its own tests.
type HandlerSuite struct {
	suite.Suite
	access requestcontext.Access
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	linker := relationship.New(store, relationship.WithLogger(logger))
	persons := service.New(store, identity.New(store),
		service.WithLogger(logger),
		service.WithParentLinker(linker),
	)

	s.access = requestcontext.Access{
		CallerID: "caller-1",
		ChartID:  "chart-1",
		CanRead:  true,
		CanWrite: true,
		IsOwner:  true,
	}

	r := chi.NewRouter()
	r.Route("/api/v1/charts/{chartID}", func(chart chi.Router) {
		chart.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := requestcontext.WithAccess(req.Context(), s.access)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		New(persons, logger).Register(chart)
	})
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) createPerson(name string, level int) int64 {
	rec := s.do(http.MethodPost, "/api/v1/charts/chart-1/persons", map[string]any{
		"name":   name,
		"gender": "F",
		"level":  level,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Person models.Person `json:"person"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Person.PersonID
}

func (s *HandlerSuite) TestCreatePerson() {
	s.Run("returns the created record", func() {
		rec := s.do(http.MethodPost, "/api/v1/charts/chart-1/persons", map[string]any{
			"name":   "Ada",
			"gender": "F",
			"level":  0,
			"dob":    "1815-12-10",
		})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Person models.Person `json:"person"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(int64(1), resp.Person.PersonID)
		s.Equal("chart-1", resp.Person.ChartID)
		s.Equal("caller-1", resp.Person.OwnerID)
		s.Require().NotNil(resp.Person.DOB)
		s.Equal("1815-12-10", resp.Person.DOB.String())
	})

	s.Run("reports skipped parent candidates", func() {
		rec := s.do(http.MethodPost, "/api/v1/charts/chart-1/persons", map[string]any{
			"name":      "Orphan",
			"gender":    "M",
			"level":     1,
			"parentIds": []int64{99},
		})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp struct {
			EdgeFailures []service.EdgeFailure `json:"edgeFailures"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().Len(resp.EdgeFailures, 1)
		s.Equal(int64(99), resp.EdgeFailures[0].ParentID)
	})

	s.Run("invalid gender is a 400", func() {
		rec := s.do(http.MethodPost, "/api/v1/charts/chart-1/persons", map[string]any{
			"name":   "Ada",
			"gender": "X",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed body is a 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/charts/chart-1/persons",
			bytes.NewReader([]byte("not json")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("write without permission is forbidden", func() {
		s.access.CanWrite = false
		defer func() { s.access.CanWrite = true }()

		rec := s.do(http.MethodPost, "/api/v1/charts/chart-1/persons", map[string]any{
			"name":   "Ada",
			"gender": "F",
		})
		s.Equal(http.StatusForbidden, rec.Code)
	})
}

func (s *HandlerSuite) TestGetPerson() {
	id := s.createPerson("Ada", 0)

	s.Run("returns the stored record", func() {
		rec := s.do(http.MethodGet, fmt.Sprintf("/api/v1/charts/chart-1/persons/%d", id), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var p models.Person
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&p))
		s.Equal("Ada", p.Name)
	})

	s.Run("unknown id is a 404", func() {
		rec := s.do(http.MethodGet, "/api/v1/charts/chart-1/persons/404", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("non-numeric id is a 400", func() {
		rec := s.do(http.MethodGet, "/api/v1/charts/chart-1/persons/abc", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestListPersons() {
	s.createPerson("Ada", 0)
	s.createPerson("Grace", 1)

	s.Run("lists the chart", func() {
		rec := s.do(http.MethodGet, "/api/v1/charts/chart-1/persons", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Data []models.Person `json:"data"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Len(resp.Data, 2)
	})

	s.Run("filters by level", func() {
		rec := s.do(http.MethodGet, "/api/v1/charts/chart-1/persons?level=1", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Data []models.Person `json:"data"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().Len(resp.Data, 1)
		s.Equal("Grace", resp.Data[0].Name)
	})

	s.Run("bad level filter is a 400", func() {
		rec := s.do(http.MethodGet, "/api/v1/charts/chart-1/persons?level=high", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestUpdatePerson() {
	id := s.createPerson("Ada", 0)

	s.Run("applies a patch", func() {
		rec := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/charts/chart-1/persons/%d", id),
			map[string]any{"name": "Ada Lovelace"})
		s.Require().Equal(http.StatusOK, rec.Code)

		var p models.Person
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&p))
		s.Equal("Ada Lovelace", p.Name)
	})

	s.Run("identity fields in the body are ignored", func() {
		rec := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/charts/chart-1/persons/%d", id),
			map[string]any{"name": "Ada", "personId": 999, "chartId": "stolen"})
		s.Require().Equal(http.StatusOK, rec.Code)

		var p models.Person
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&p))
		s.Equal(id, p.PersonID)
		s.Equal("chart-1", p.ChartID)
	})

	s.Run("empty patch is a 400", func() {
		rec := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/charts/chart-1/persons/%d", id),
			map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestDeletePerson() {
	id := s.createPerson("Ada", 0)

	rec := s.do(http.MethodDelete, fmt.Sprintf("/api/v1/charts/chart-1/persons/%d", id), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/v1/charts/chart-1/persons/%d", id), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestPurgeChart() {
	s.createPerson("Ada", 0)

	s.Run("requires ownership", func() {
		s.access.IsOwner = false
		defer func() { s.access.IsOwner = true }()

		rec := s.do(http.MethodDelete, "/api/v1/charts/chart-1/graph", nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("owner purge empties the chart", func() {
		rec := s.do(http.MethodDelete, "/api/v1/charts/chart-1/graph", nil)
		s.Require().Equal(http.StatusNoContent, rec.Code)

		list := s.do(http.MethodGet, "/api/v1/charts/chart-1/persons", nil)
		s.Require().Equal(http.StatusOK, list.Code)

		var resp struct {
			Data []models.Person `json:"data"`
		}
		s.Require().NoError(json.NewDecoder(list.Body).Decode(&resp))
		s.Empty(resp.Data)
	})
}
