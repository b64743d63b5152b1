// Package handler exposes the assembled tree snapshot over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lineage/internal/tree"
	"lineage/pkg/platform/httputil"
	"lineage/pkg/requestcontext"
)

// Service defines the tree operations the handler needs.
type Service interface {
	Assemble(ctx context.Context, chartID string) (*tree.Tree, error)
}

// Handler handles tree endpoints.
type Handler struct {
	trees  Service
	logger *slog.Logger
}

// New creates a new tree Handler.
func New(trees Service, logger *slog.Logger) *Handler {
	return &Handler{trees: trees, logger: logger}
}

// Register mounts tree routes on an already-authorized chart router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tree", h.handleGetTree)
}

func (h *Handler) handleGetTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	access, ok := requestcontext.AccessFrom(ctx)
	if !ok || !access.CanRead {
		httputil.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	chartID := chi.URLParam(r, "chartID")

	t, err := h.trees.Assemble(ctx, chartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "tree assembly failed",
			"error", err.Error(),
			"chart_id", chartID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}
