// Package handler wires relationship operations to HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/httputil"
	"lineage/pkg/requestcontext"
)

// Service defines the relationship operations the handler needs.
type Service interface {
	AddParentOf(ctx context.Context, chartID string, parentID, childID int64) error
	RemoveParentOf(ctx context.Context, chartID string, parentID, childID int64) error
}

// Handler handles relationship endpoints.
type Handler struct {
	relationships Service
	logger        *slog.Logger
}

// New creates a new relationship Handler.
func New(relationships Service, logger *slog.Logger) *Handler {
	return &Handler{relationships: relationships, logger: logger}
}

// Register mounts relationship routes on an already-authorized chart router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/relationships/parent-of", h.handleAdd)
	r.Delete("/relationships/parent-of", h.handleRemove)
}

type edgeRequest struct {
	ParentID int64 `json:"parentId"`
	ChildID  int64 `json:"childId"`
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, chartID, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.relationships.AddParentOf(ctx, chartID, req.ParentID, req.ChildID); err != nil {
		h.logError(ctx, "add parent edge failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"message": "relationship created"})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, chartID, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.relationships.RemoveParentOf(ctx, chartID, req.ParentID, req.ChildID); err != nil {
		h.logError(ctx, "remove parent edge failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "relationship removed"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (edgeRequest, string, bool) {
	access, ok := requestcontext.AccessFrom(r.Context())
	if !ok || !access.CanWrite {
		httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return edgeRequest{}, "", false
	}

	var req edgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return edgeRequest{}, "", false
	}
	return req, chi.URLParam(r, "chartID"), true
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
