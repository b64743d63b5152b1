// Package handler wires person registry operations to HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lineage/internal/person/models"
	"lineage/internal/person/service"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/httputil"
	"lineage/pkg/requestcontext"
)

// Service defines the registry operations the handler needs.
type Service interface {
	Create(ctx context.Context, chartID, ownerID string, input service.CreateInput) (*service.CreateResult, error)
	Get(ctx context.Context, chartID string, personID int64) (*models.Person, error)
	List(ctx context.Context, chartID string, filter models.Filter) ([]*models.Person, error)
	Update(ctx context.Context, chartID string, personID int64, patch models.Patch) (*models.Person, error)
	Delete(ctx context.Context, chartID string, personID int64) error
	DeleteChart(ctx context.Context, chartID string) error
}

// Handler handles person endpoints.
type Handler struct {
	persons Service
	logger  *slog.Logger
}

// New creates a new person Handler.
func New(persons Service, logger *slog.Logger) *Handler {
	return &Handler{persons: persons, logger: logger}
}

// Register mounts person routes on an already-authorized chart router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/persons", h.handleCreate)
	r.Get("/persons", h.handleList)
	r.Get("/persons/{personID}", h.handleGet)
	r.Patch("/persons/{personID}", h.handleUpdate)
	r.Delete("/persons/{personID}", h.handleDelete)
	r.Delete("/graph", h.handlePurgeChart)
}

type createRequest struct {
	Name        string        `json:"name"`
	Gender      models.Gender `json:"gender"`
	Level       int           `json:"level"`
	DOB         *models.Date  `json:"dob"`
	DOD         *models.Date  `json:"dod"`
	Description *string       `json:"description"`
	PhotoURL    *string       `json:"photoUrl"`
	ParentIDs   []int64       `json:"parentIds"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	access, ok := requireWrite(ctx)
	if !ok {
		writeForbidden(w)
		return
	}
	chartID := chi.URLParam(r, "chartID")

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	// OwnerID records who created the record, as attested by the gateway.
	result, err := h.persons.Create(ctx, chartID, access.CallerID, service.CreateInput{
		Name:        req.Name,
		Gender:      req.Gender,
		Level:       req.Level,
		DOB:         req.DOB,
		DOD:         req.DOD,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
		ParentIDs:   req.ParentIDs,
	})
	if err != nil {
		h.logError(ctx, "create person failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireRead(ctx); !ok {
		writeForbidden(w)
		return
	}
	chartID := chi.URLParam(r, "chartID")

	filter := models.Filter{NameContains: r.URL.Query().Get("q")}
	if g := r.URL.Query().Get("gender"); g != "" {
		gender := models.Gender(g)
		if !gender.IsValid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "gender must be one of M, F, O"))
			return
		}
		filter.Gender = &gender
	}
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "level must be an integer"))
			return
		}
		filter.Level = &level
	}

	persons, err := h.persons.List(ctx, chartID, filter)
	if err != nil {
		h.logError(ctx, "list persons failed", err)
		httputil.WriteError(w, err)
		return
	}
	if persons == nil {
		persons = []*models.Person{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": persons})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireRead(ctx); !ok {
		writeForbidden(w)
		return
	}
	chartID := chi.URLParam(r, "chartID")
	personID, ok := parsePersonID(w, r)
	if !ok {
		return
	}

	p, err := h.persons.Get(ctx, chartID, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireWrite(ctx); !ok {
		writeForbidden(w)
		return
	}
	chartID := chi.URLParam(r, "chartID")
	personID, ok := parsePersonID(w, r)
	if !ok {
		return
	}

	// Identity fields in the body have no representation in Patch and are
	// silently dropped by decoding.
	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	p, err := h.persons.Update(ctx, chartID, personID, patch)
	if err != nil {
		h.logError(ctx, "update person failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireWrite(ctx); !ok {
		writeForbidden(w)
		return
	}
	chartID := chi.URLParam(r, "chartID")
	personID, ok := parsePersonID(w, r)
	if !ok {
		return
	}

	if err := h.persons.Delete(ctx, chartID, personID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "person deleted"})
}

func (h *Handler) handlePurgeChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	access, ok := requestcontext.AccessFrom(ctx)
	if !ok || !access.IsOwner {
		writeForbidden(w)
		return
	}
	chartID := chi.URLParam(r, "chartID")

	if err := h.persons.DeleteChart(ctx, chartID); err != nil {
		h.logError(ctx, "chart purge failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		h.logger.ErrorContext(ctx, msg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func parsePersonID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "personID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "personId must be an integer"))
		return 0, false
	}
	return id, true
}

func requireRead(ctx context.Context) (requestcontext.Access, bool) {
	access, ok := requestcontext.AccessFrom(ctx)
	return access, ok && access.CanRead
}

func requireWrite(ctx context.Context) (requestcontext.Access, bool) {
	access, ok := requestcontext.AccessFrom(ctx)
	return access, ok && access.CanWrite
}

func writeForbidden(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}
