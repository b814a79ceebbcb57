package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler manages the account administration endpoints. Access to this
// surface requires the users module, which only the super administrator
// can see.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModule(modules.Users))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
		r.Get("/{id}/supervisors", h.listSupervisors)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAction(modules.Users, rbac.ActionAdd))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAction(modules.Users, rbac.ActionEdit))
		r.Put("/{id}", h.updateUser)
		r.Put("/{id}/supervisors/{supervisorID}", h.assignSupervisor)
		r.Delete("/{id}/supervisors/{supervisorID}", h.removeSupervisor)
	})
}

type userView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Branch    string    `json:"branch,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserView(user User) userView {
	return userView{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		Branch:    user.Branch,
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list users")
		return
	}
	views := make([]userView, 0, len(list))
	for _, user := range list {
		views = append(views, toUserView(user))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get user")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserView(user))
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
	Branch   string `json:"branch"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Email, req.Name, req.Password, rbac.Role(req.Role), req.Branch)
	if err != nil {
		h.respondError(w, err, "create user")
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserView(user))
}

type updateUserRequest struct {
	Name   string `json:"name" validate:"required"`
	Role   string `json:"role" validate:"required"`
	Branch string `json:"branch"`
	Status string `json:"status" validate:"required,oneof=active inactive dormant"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, req.Name, rbac.Role(req.Role), req.Branch, rbac.Status(req.Status))
	if err != nil {
		h.respondError(w, err, "update user")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserView(user))
}

func (h *Handler) listSupervisors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	supervisors, err := h.service.Supervisors(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "list supervisors")
		return
	}
	views := make([]userView, 0, len(supervisors))
	for _, user := range supervisors {
		views = append(views, toUserView(user))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"supervisors": views})
}

func (h *Handler) assignSupervisor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	supervisorID, ok := h.pathID(w, r, "supervisorID")
	if !ok {
		return
	}
	if err := h.service.AssignSupervisor(r.Context(), id, supervisorID); err != nil {
		h.respondError(w, err, "assign supervisor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeSupervisor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	supervisorID, ok := h.pathID(w, r, "supervisorID")
	if !ok {
		return
	}
	if err := h.service.RemoveSupervisor(r.Context(), id, supervisorID); err != nil {
		h.respondError(w, err, "remove supervisor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", op+" failed")
}
