package evaluationhandler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"kpireview/internal/domain/audit"
	"kpireview/internal/domain/auth"
	"kpireview/internal/domain/evaluation"
	"kpireview/internal/domain/notifications"
	"kpireview/internal/platform/metrics"
	"kpireview/internal/realtime"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
	"kpireview/internal/transport/http/shared"
)

type Handler struct {
	Evaluations *evaluation.Service
	Hub         *realtime.Hub
	Audit       *audit.Service
	Collector   *metrics.Collector
	Staleness   time.Duration
}

func NewHandler(service *evaluation.Service, hub *realtime.Hub, auditSvc *audit.Service, collector *metrics.Collector, staleness time.Duration) *Handler {
	return &Handler{
		Evaluations: service,
		Hub:         hub,
		Audit:       auditSvc,
		Collector:   collector,
		Staleness:   staleness,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evaluations", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEvaluationsRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEvaluationsAdmin)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermEvaluationsRead)).Get("/pending-count", h.handlePendingCount)

		r.With(middleware.RequirePermission(auth.PermEvaluationsWrite)).Put("/scores/{scoreID}", h.handleSaveScore)

		r.Route("/{evaluationID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermEvaluationsRead)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermEvaluationsAdmin)).Delete("/", h.handleDelete)
			r.With(middleware.RequirePermission(auth.PermEvaluationsRead)).Get("/scores", h.handleScores)
			r.With(middleware.RequirePermission(auth.PermEvaluationsRead)).Get("/stages", h.handleStages)
			r.With(middleware.RequirePermission(auth.PermEvaluationsAdmin)).Put("/final-comment", h.handleFinalComment)

			r.With(middleware.RequirePermission(auth.PermEvaluationsWrite)).Post("/self", h.stageAction(evaluation.StageSelf))
			r.With(middleware.RequirePermission(auth.PermEvaluationsWrite)).Post("/manager", h.stageAction(evaluation.StageManager))
			r.With(middleware.RequirePermission(auth.PermEvaluationsAdmin)).Post("/hr", h.stageAction(evaluation.StageHR))
			r.With(middleware.RequirePermission(auth.PermEvaluationsWrite)).Post("/confirm", h.stageAction(evaluation.StageConfirm))
		})
	})
}

func principal(user auth.UserContext) evaluation.Principal {
	return evaluation.Principal{
		UserID:     user.UserID,
		EmployeeID: user.EmployeeID,
		HR:         user.IsHR(),
	}
}

func (h *Handler) publish(eventType string, user auth.UserContext, eval evaluation.Evaluation, message string) {
	payload, _ := json.Marshal(eval)
	h.Hub.Publish(notifications.New(eventType, notifications.EventData{
		SubjectID:  eval.ID,
		EmployeeID: eval.EmployeeID,
		OperatorID: user.UserID,
		Message:    message,
		Payload:    payload,
	}))
	if h.Collector != nil {
		h.Collector.RecordEventPublished()
	}
}

// failDomain maps workflow errors onto stable API codes. Anything unmapped
// falls through as a 500.
func failDomain(w http.ResponseWriter, err error, reqID string) {
	var incomplete evaluation.IncompleteScoresError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		api.Fail(w, http.StatusNotFound, "not_found", "evaluation not found", reqID)
	case errors.As(err, &incomplete):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "scores_incomplete", incomplete.Error(),
			map[string]any{"stage": incomplete.Stage, "missing": incomplete.Missing}, reqID)
	case errors.Is(err, evaluation.ErrNotEligible):
		api.Fail(w, http.StatusForbidden, "not_eligible", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrEvaluationExpired):
		api.Fail(w, http.StatusConflict, "evaluation_expired", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrAlreadyConfirmed):
		api.Fail(w, http.StatusConflict, "already_confirmed", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrStatusConflict):
		api.Fail(w, http.StatusConflict, "status_conflict", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrUnknownStage):
		api.Fail(w, http.StatusBadRequest, "unknown_stage", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrInvalidPeriod):
		api.Fail(w, http.StatusBadRequest, "invalid_period", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrScoreOutOfRange):
		api.Fail(w, http.StatusBadRequest, "score_out_of_range", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrFinalScoreLocked):
		api.Fail(w, http.StatusConflict, "final_score_locked", err.Error(), reqID)
	case errors.Is(err, evaluation.ErrUnknownVariant):
		api.Fail(w, http.StatusBadRequest, "unknown_variant", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "evaluation_error", "evaluation operation failed", reqID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	filter := evaluation.ListFilter{
		EmployeeID: r.URL.Query().Get("employeeId"),
		ManagerID:  r.URL.Query().Get("managerId"),
		Status:     r.URL.Query().Get("status"),
		Period:     r.URL.Query().Get("period"),
	}
	if raw := r.URL.Query().Get("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			filter.Year = year
		}
	}

	// Non-HR callers see their own reviews plus, for managers, their
	// reports'. HR sees whatever the filter asks for.
	if !user.IsHR() {
		if filter.ManagerID == "" {
			filter.EmployeeID = user.EmployeeID
		} else {
			filter.ManagerID = user.EmployeeID
		}
	}

	evals, err := h.Evaluations.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "evaluation_list_failed", "failed to list evaluations", reqID)
		return
	}
	api.Success(w, evals, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var eval evaluation.Evaluation
	if err := json.NewDecoder(r.Body).Decode(&eval); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("employeeId", eval.EmployeeID, "employeeId is required")
	v.Required("templateId", eval.TemplateID, "templateId is required")
	v.Enum("period", eval.Period, []string{"monthly", "quarterly", "yearly"}, "period must be monthly, quarterly or yearly")
	v.IntRange("year", eval.Year, 2000, 2100, "year out of range")
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Evaluations.Create(r.Context(), eval)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}

	h.publish(notifications.TypeEvaluationCreated, user, created, "evaluation created")
	h.record(r, user, "evaluation.create", created.ID, nil, created)
	api.Created(w, created, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	eval, err := h.Evaluations.Get(r.Context(), chi.URLParam(r, "evaluationID"))
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, eval, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	evaluationID := chi.URLParam(r, "evaluationID")

	eval, err := h.Evaluations.Get(r.Context(), evaluationID)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	if err := h.Evaluations.Delete(r.Context(), evaluationID); err != nil {
		failDomain(w, err, reqID)
		return
	}

	h.publish(notifications.TypeEvaluationDeleted, user, eval, "evaluation deleted")
	h.record(r, user, "evaluation.delete", evaluationID, eval, nil)
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	scores, err := h.Evaluations.Scores(r.Context(), chi.URLParam(r, "evaluationID"))
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, scores, reqID)
}

func (h *Handler) handleStages(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	records, err := h.Evaluations.StageHistory(r.Context(), chi.URLParam(r, "evaluationID"))
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, records, reqID)
}

func (h *Handler) handleFinalComment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	if err := h.Evaluations.UpdateFinalComment(r.Context(), chi.URLParam(r, "evaluationID"), req.Comment); err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": "updated"}, reqID)
}

func (h *Handler) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	count, err := h.Evaluations.PendingCount(r.Context(), principal(user))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "pending_count_failed", "failed to count pending evaluations", reqID)
		return
	}
	api.Success(w, map[string]int{"count": count}, reqID)
}

var scoreEventTypes = map[evaluation.Variant]string{
	evaluation.VariantSelf:    notifications.TypeSelfScoreUpdated,
	evaluation.VariantManager: notifications.TypeManagerScoreUpdated,
	evaluation.VariantHR:      notifications.TypeHRScoreUpdated,
	evaluation.VariantFinal:   notifications.TypeEvaluationUpdated,
}

func (h *Handler) handleSaveScore(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var req struct {
		Variant     string  `json:"variant"`
		Value       float64 `json:"value"`
		Comment     string  `json:"comment"`
		ManagerAuto bool    `json:"managerAuto"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}

	variant := evaluation.Variant(req.Variant)
	if (variant == evaluation.VariantHR || variant == evaluation.VariantFinal) && !user.IsHR() {
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
		return
	}

	score, err := h.Evaluations.SaveScore(r.Context(), chi.URLParam(r, "scoreID"), variant, req.Value, req.Comment, req.ManagerAuto)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}

	eval, err := h.Evaluations.Get(r.Context(), score.EvaluationID)
	if err == nil {
		h.publish(scoreEventTypes[variant], user, eval, "score updated")
	}
	api.Success(w, score, reqID)
}

func (h *Handler) stageAction(stage evaluation.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())
		evaluationID := chi.URLParam(r, "evaluationID")

		updated, transition, err := h.Evaluations.AdvanceStage(
			r.Context(), evaluationID, principal(user), stage, time.Now().UTC(), h.Staleness)
		if err != nil {
			failDomain(w, err, reqID)
			return
		}

		h.publish(notifications.TypeEvaluationStatusChanged, user, updated, string(stage)+" stage completed")
		h.record(r, user, "evaluation.stage."+string(stage), evaluationID,
			map[string]string{"status": transition.FromStatus},
			map[string]any{"status": transition.NextStatus, "totalScore": transition.TotalScore})
		api.Success(w, updated, reqID)
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	// Best effort; the workflow change already committed.
	_ = h.Audit.Record(r.Context(), user.UserID, action, "evaluation", entityID,
		middleware.GetRequestID(r.Context()), middleware.ClientIPKey(r), before, after)
}
