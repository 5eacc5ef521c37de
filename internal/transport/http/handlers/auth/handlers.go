package authhandler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"kpireview/internal/domain/auth"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
	"kpireview/internal/transport/http/shared"
)

type Handler struct {
	Auth     *auth.Service
	Secret   string
	TokenTTL time.Duration
}

func NewHandler(service *auth.Service, secret string) *Handler {
	return &Handler{Auth: service, Secret: secret, TokenTTL: 12 * time.Hour}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "email and password are required", reqID)
		return
	}

	user, err := h.Auth.FindActiveUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", reqID)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", reqID)
		return
	}

	token, err := auth.GenerateToken(h.Secret, auth.Claims{
		UserID:     user.ID,
		EmployeeID: user.EmployeeID,
		Role:       user.Role,
	}, h.TokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", reqID)
		return
	}

	_ = h.Auth.UpdateLastLogin(r.Context(), user.ID)

	api.Success(w, map[string]any{
		"token": token,
		"user": map[string]string{
			"id":         user.ID,
			"email":      user.Email,
			"role":       user.Role,
			"employeeId": user.EmployeeID,
		},
	}, reqID)
}

// HandleLogout exists for client symmetry; tokens are stateless so there is
// nothing to revoke server-side.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", reqID)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Role == "" {
		req.Role = auth.RoleEmployee
	}

	v := shared.NewValidator()
	v.Required("email", req.Email, "email is required")
	v.Required("password", req.Password, "password is required")
	v.Enum("role", req.Role, []string{auth.RoleEmployee, auth.RoleManager, auth.RoleHR, auth.RoleAdmin}, "unknown role")
	if v.Reject(w, reqID) {
		return
	}

	id, err := h.Auth.CreateUser(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_create_failed", "failed to create user", reqID)
		return
	}
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	api.Success(w, map[string]any{
		"id":          user.UserID,
		"employeeId":  user.EmployeeID,
		"role":        user.Role,
		"permissions": auth.RolePermissions[user.Role],
	}, reqID)
}
