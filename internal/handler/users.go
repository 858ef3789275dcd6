package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/security/middleware"
	"github.com/yourorg/draftmill/internal/service"
)

// userView is the admin-facing projection of a user. The password hash and
// the encrypted TOTP secret never leave the server.
type userView struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	Permissions      []string   `json:"permissions"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
}

func toUserView(u *domain.User) userView {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return userView{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		Status:           u.Status,
		Permissions:      perms,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		LastLogin:        u.LastLogin,
	}
}

// UsersHandler exposes the admin user management API.
type UsersHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(users *service.UserService, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	_ = writeJSON(w, http.StatusOK, views)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	actor := ""
	if claims != nil {
		actor = claims.Email
	}
	user, err := h.users.CreateUser(r.Context(), req.Email, req.Password, req.Name, req.Role, actor, requestMeta(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, toUserView(user))
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PUT /api/users/{email}/role.
func (h *UsersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	email := r.PathValue("email")

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Role == "" {
		writeError(w, http.StatusBadRequest, "role required")
		return
	}

	if err := h.users.UpdateRole(r.Context(), email, req.Role, claims.Email, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/users/{email}/status.
func (h *UsersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	email := r.PathValue("email")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.users.UpdateStatus(r.Context(), email, req.Status, claims.Email, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Delete handles DELETE /api/users/{email}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	email := r.PathValue("email")

	if err := h.users.DeleteUser(r.Context(), email, claims.Email, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type permissionRequest struct {
	Permission string `json:"permission"`
}

// GrantPermission handles POST /api/users/{email}/permissions.
func (h *UsersHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	email := r.PathValue("email")

	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Permission == "" {
		writeError(w, http.StatusBadRequest, "permission required")
		return
	}

	if err := h.users.GrantPermission(r.Context(), email, req.Permission, claims.Email, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RevokePermission handles DELETE /api/users/{email}/permissions/{permission}.
func (h *UsersHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	email := r.PathValue("email")
	permission := r.PathValue("permission")

	if err := h.users.RevokePermission(r.Context(), email, permission, claims.Email, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
