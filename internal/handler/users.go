package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/security/middleware"
	"github.com/aryan0dhankhar/admindash/internal/service"
)

// UserDirectory is the user CRUD surface the API exposes
type UserDirectory interface {
	ListAll(ctx context.Context) ([]domain.PublicUser, error)
	GetByID(ctx context.Context, id string) (*domain.PublicUser, error)
	Create(ctx context.Context, in service.CreateUserInput) (*domain.PublicUser, error)
	Update(ctx context.Context, id string, in service.UpdateUserInput) (*domain.PublicUser, error)
	Delete(ctx context.Context, id string) error
}

// UsersHandler serves /api/users
type UsersHandler struct {
	users  UserDirectory
	logger *slog.Logger
}

func NewUsersHandler(users UserDirectory, logger *slog.Logger) *UsersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsersHandler{users: users, logger: logger}
}

// CreateUserRequest is the body of POST /api/users
type CreateUserRequest struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Username string        `json:"username"`
	Role     domain.Role   `json:"role"`
	Status   domain.Status `json:"status"`
	Password string        `json:"password"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}; absent fields are kept
type UpdateUserRequest struct {
	Name     *string        `json:"name"`
	Email    *string        `json:"email"`
	Username *string        `json:"username"`
	Role     *domain.Role   `json:"role"`
	Status   *domain.Status `json:"status"`
}

// List handles GET /api/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, users)
}

// Get handles GET /api/users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Role:     req.Role,
		Status:   req.Status,
		Password: req.Password,
	})
	if err != nil {
		h.logger.Info("create user rejected",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, user)
}

// Update handles PUT /api/users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), r.PathValue("id"), service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Role:     req.Role,
		Status:   req.Status,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteMessage(w, http.StatusOK, "User deleted successfully")
}
