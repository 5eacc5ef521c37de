package reportshandler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"kpireview/internal/domain/auth"
	"kpireview/internal/domain/evaluation"
	"kpireview/internal/domain/reports"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
)

type Handler struct {
	Reports     *reports.Service
	Evaluations *evaluation.Service
}

func NewHandler(reportsSvc *reports.Service, evaluations *evaluation.Service) *Handler {
	return &Handler{Reports: reportsSvc, Evaluations: evaluations}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead)).Get("/summary", h.handleSummary)
		r.With(middleware.RequirePermission(auth.PermEvaluationsRead)).Get("/evaluations/{evaluationID}/pdf", h.handleEvaluationPDF)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			year = parsed
		}
	}

	summary, err := h.Reports.Summary(r.Context(), year, r.URL.Query().Get("period"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_failed", "failed to build summary", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleEvaluationPDF(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	evaluationID := chi.URLParam(r, "evaluationID")

	eval, err := h.Evaluations.Get(r.Context(), evaluationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusNotFound, "not_found", "evaluation not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "pdf_failed", "failed to load evaluation", reqID)
		return
	}

	// Subjects and their manager may export their own review; anyone else
	// needs HR visibility.
	if !user.IsHR() && eval.EmployeeID != user.EmployeeID && eval.ManagerID != user.EmployeeID {
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
		return
	}

	scores, err := h.Evaluations.Scores(r.Context(), evaluationID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "pdf_failed", "failed to load scores", reqID)
		return
	}

	pdf, err := reports.EvaluationPDF(eval, scores)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "pdf_failed", "failed to render PDF", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="evaluation-`+evaluationID+`.pdf"`)
	_, _ = w.Write(pdf)
}
