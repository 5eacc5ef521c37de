package invitationhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"kpireview/internal/domain/auth"
	"kpireview/internal/domain/invitation"
	"kpireview/internal/domain/notifications"
	"kpireview/internal/platform/metrics"
	"kpireview/internal/realtime"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
	"kpireview/internal/transport/http/shared"
)

type Handler struct {
	Invitations *invitation.Service
	Hub         *realtime.Hub
	Collector   *metrics.Collector
}

func NewHandler(service *invitation.Service, hub *realtime.Hub, collector *metrics.Collector) *Handler {
	return &Handler{Invitations: service, Hub: hub, Collector: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/invitations", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermInvitationsRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermInvitationsWrite)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermInvitationsRead)).Get("/pending-count", h.handlePendingCount)

		r.With(middleware.RequirePermission(auth.PermInvitationsWrite)).Put("/scores/{invitedScoreID}", h.handleSaveScore)

		r.Route("/{invitationID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermInvitationsRead)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermEvaluationsAdmin)).Delete("/", h.handleDelete)
			r.With(middleware.RequirePermission(auth.PermInvitationsRead)).Get("/scores", h.handleScores)

			r.With(middleware.RequirePermission(auth.PermInvitationsWrite)).Post("/accept", h.action(invitation.ActionAccept))
			r.With(middleware.RequirePermission(auth.PermInvitationsWrite)).Post("/decline", h.action(invitation.ActionDecline))
			r.With(middleware.RequirePermission(auth.PermInvitationsWrite)).Post("/cancel", h.action(invitation.ActionCancel))
			r.With(middleware.RequirePermission(auth.PermInvitationsWrite)).Post("/complete", h.action(invitation.ActionComplete))
		})
	})
}

func (h *Handler) publish(eventType string, user auth.UserContext, inv invitation.Invitation, message string) {
	payload, _ := json.Marshal(inv)
	h.Hub.Publish(notifications.New(eventType, notifications.EventData{
		SubjectID:  inv.EvaluationID,
		EmployeeID: inv.InviteeID,
		OperatorID: user.UserID,
		Message:    message,
		Payload:    payload,
	}))
	if h.Collector != nil {
		h.Collector.RecordEventPublished()
	}
}

func failDomain(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		api.Fail(w, http.StatusNotFound, "not_found", "invitation not found", reqID)
	case errors.Is(err, invitation.ErrInviteeNotEligible):
		api.Fail(w, http.StatusBadRequest, "invitee_not_eligible", err.Error(), reqID)
	case errors.Is(err, invitation.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), reqID)
	case errors.Is(err, invitation.ErrWrongActor):
		api.Fail(w, http.StatusForbidden, "wrong_actor", err.Error(), reqID)
	case errors.Is(err, invitation.ErrUnknownAction):
		api.Fail(w, http.StatusBadRequest, "unknown_action", err.Error(), reqID)
	case errors.Is(err, invitation.ErrScoreOutOfRange):
		api.Fail(w, http.StatusBadRequest, "score_out_of_range", err.Error(), reqID)
	case errors.Is(err, invitation.ErrStatusConflict):
		api.Fail(w, http.StatusConflict, "status_conflict", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "invitation_error", "invitation operation failed", reqID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	if evaluationID := r.URL.Query().Get("evaluationId"); evaluationID != "" {
		invitations, err := h.Invitations.ListByEvaluation(r.Context(), evaluationID)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "invitation_list_failed", "failed to list invitations", reqID)
			return
		}
		api.Success(w, invitations, reqID)
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	invitations, err := h.Invitations.ListForEmployee(r.Context(), user.EmployeeID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "invitation_list_failed", "failed to list invitations", reqID)
		return
	}
	api.Success(w, invitations, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var inv invitation.Invitation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	inv.InviterID = user.EmployeeID

	v := shared.NewValidator()
	v.Required("evaluationId", inv.EvaluationID, "evaluationId is required")
	v.Required("inviteeId", inv.InviteeID, "inviteeId is required")
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Invitations.Create(r.Context(), inv)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}

	h.publish(notifications.TypeInvitationCreated, user, created, "invitation created")
	api.Created(w, created, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	inv, err := h.Invitations.Get(r.Context(), chi.URLParam(r, "invitationID"))
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, inv, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	inv, err := h.Invitations.Get(r.Context(), invitationID)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	if err := h.Invitations.Delete(r.Context(), invitationID); err != nil {
		failDomain(w, err, reqID)
		return
	}

	h.publish(notifications.TypeInvitationDeleted, user, inv, "invitation deleted")
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	scores, err := h.Invitations.Scores(r.Context(), chi.URLParam(r, "invitationID"))
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, scores, reqID)
}

func (h *Handler) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	count, err := h.Invitations.PendingCount(r.Context(), user.EmployeeID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "pending_count_failed", "failed to count pending invitations", reqID)
		return
	}
	api.Success(w, map[string]int{"count": count}, reqID)
}

func (h *Handler) handleSaveScore(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var req struct {
		Value   float64 `json:"value"`
		Comment string  `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}

	score, err := h.Invitations.SaveScore(r.Context(), chi.URLParam(r, "invitedScoreID"), user.EmployeeID, req.Value, req.Comment)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}

	if inv, err := h.Invitations.Get(r.Context(), score.InvitationID); err == nil {
		h.publish(notifications.TypeInvitedScoreUpdated, user, inv, "invited score updated")
	}
	api.Success(w, score, reqID)
}

func (h *Handler) action(action invitation.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetRequestID(r.Context())
		user, _ := middleware.GetUser(r.Context())

		updated, err := h.Invitations.Act(r.Context(), chi.URLParam(r, "invitationID"), user.EmployeeID, action)
		if err != nil {
			failDomain(w, err, reqID)
			return
		}

		h.publish(notifications.TypeInvitationStatusChanged, user, updated, string(action))
		api.Success(w, updated, reqID)
	}
}
