package corehandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"kpireview/internal/domain/auth"
	"kpireview/internal/domain/core"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
	"kpireview/internal/transport/http/shared"
)

type Handler struct {
	Core *core.Service
}

func NewHandler(service *core.Service) *Handler {
	return &Handler{Core: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/departments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCoreRead)).Get("/", h.handleListDepartments)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Post("/", h.handleCreateDepartment)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Put("/{departmentID}", h.handleUpdateDepartment)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Delete("/{departmentID}", h.handleDeleteDepartment)
	})

	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCoreRead)).Get("/", h.handleListEmployees)
		r.With(middleware.RequirePermission(auth.PermCoreRead)).Get("/{employeeID}", h.handleGetEmployee)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Post("/", h.handleCreateEmployee)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Put("/{employeeID}", h.handleUpdateEmployee)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Delete("/{employeeID}", h.handleDeactivateEmployee)
	})

	r.Route("/kpi-templates", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCoreRead)).Get("/", h.handleListTemplates)
		r.With(middleware.RequirePermission(auth.PermCoreRead)).Get("/{templateID}", h.handleGetTemplate)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Post("/", h.handleCreateTemplate)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Delete("/{templateID}", h.handleDeleteTemplate)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Post("/{templateID}/items", h.handleCreateItem)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Put("/items/{itemID}", h.handleUpdateItem)
		r.With(middleware.RequirePermission(auth.PermCoreWrite)).Delete("/items/{itemID}", h.handleDeleteItem)
	})
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	departments, err := h.Core.ListDepartments(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_list_failed", "failed to list departments", reqID)
		return
	}
	api.Success(w, departments, reqID)
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var dept core.Department
	if err := json.NewDecoder(r.Body).Decode(&dept); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", dept.Name, "name is required")
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Core.CreateDepartment(r.Context(), dept)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_create_failed", "failed to create department", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var dept core.Department
	if err := json.NewDecoder(r.Body).Decode(&dept); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	dept.ID = chi.URLParam(r, "departmentID")

	if err := h.Core.UpdateDepartment(r.Context(), dept); err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_update_failed", "failed to update department", reqID)
		return
	}
	api.Success(w, dept, reqID)
}

func (h *Handler) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if err := h.Core.DeleteDepartment(r.Context(), chi.URLParam(r, "departmentID")); err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_delete_failed", "failed to delete department", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	employees, err := h.Core.ListEmployees(
		r.Context(),
		r.URL.Query().Get("departmentId"),
		r.URL.Query().Get("managerId"),
		page.Limit, page.Offset,
	)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_list_failed", "failed to list employees", reqID)
		return
	}
	api.Success(w, employees, reqID)
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	emp, err := h.Core.GetEmployee(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_get_failed", "failed to load employee", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var emp core.Employee
	if err := json.NewDecoder(r.Body).Decode(&emp); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", emp.Name, "name is required")
	v.Required("userId", emp.UserID, "userId is required")
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Core.CreateEmployee(r.Context(), emp)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var emp core.Employee
	if err := json.NewDecoder(r.Body).Decode(&emp); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	emp.ID = chi.URLParam(r, "employeeID")

	if err := h.Core.UpdateEmployee(r.Context(), emp); err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleDeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if err := h.Core.DeactivateEmployee(r.Context(), chi.URLParam(r, "employeeID")); err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_deactivate_failed", "failed to deactivate employee", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deactivated"}, reqID)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	templates, err := h.Core.ListTemplates(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_list_failed", "failed to list templates", reqID)
		return
	}
	api.Success(w, templates, reqID)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	tpl, err := h.Core.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusNotFound, "not_found", "template not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "template_get_failed", "failed to load template", reqID)
		return
	}
	api.Success(w, tpl, reqID)
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var tpl core.KPITemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("name", tpl.Name, "name is required")
	v.Enum("period", tpl.Period, []string{"monthly", "quarterly", "yearly"}, "period must be monthly, quarterly or yearly")
	for _, item := range tpl.Items {
		v.Positive("items.maxScore", item.MaxScore, "item max score must be positive")
	}
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Core.CreateTemplate(r.Context(), tpl)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMaxScore) {
			api.Fail(w, http.StatusBadRequest, "invalid_max_score", err.Error(), reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "template_create_failed", "failed to create template", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if err := h.Core.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_delete_failed", "failed to delete template", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var item core.KPIItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	item.TemplateID = chi.URLParam(r, "templateID")

	v := shared.NewValidator()
	v.Required("name", item.Name, "name is required")
	v.Positive("maxScore", item.MaxScore, "max score must be positive")
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Core.CreateItem(r.Context(), item)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "item_create_failed", "failed to create item", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var item core.KPIItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	item.ID = chi.URLParam(r, "itemID")

	if err := h.Core.UpdateItem(r.Context(), item); err != nil {
		if errors.Is(err, core.ErrInvalidMaxScore) {
			api.Fail(w, http.StatusBadRequest, "invalid_max_score", err.Error(), reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "item_update_failed", "failed to update item", reqID)
		return
	}
	api.Success(w, item, reqID)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if err := h.Core.DeleteItem(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		api.Fail(w, http.StatusInternalServerError, "item_delete_failed", "failed to delete item", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}
