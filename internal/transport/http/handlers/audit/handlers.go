package audithandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpireview/internal/domain/audit"
	"kpireview/internal/domain/auth"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
	"kpireview/internal/transport/http/shared"
)

type Handler struct {
	Audit *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Audit: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermMetricsRead)).Get("/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 500)

	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entityType"),
		ActorID:    r.URL.Query().Get("actorId"),
	}
	includeDetails := r.URL.Query().Get("details") == "true"

	total, err := h.Audit.Count(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to count audit events", reqID)
		return
	}
	events, err := h.Audit.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", reqID)
		return
	}

	api.Success(w, map[string]any{
		"total":  total,
		"events": events,
	}, reqID)
}
