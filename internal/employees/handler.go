package employees

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler serves the personnel roster.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers roster routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModule(modules.Employees))
		r.Get("/", h.listEmployees)
	})
}

type employeeView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Title     string    `json:"title"`
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated principal")
		return
	}
	list, err := h.service.ListFor(r.Context(), principal)
	if err != nil {
		h.logger.Error("list employees failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list employees")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pagination := shared.NewPagination(page, limit, len(list))
	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(list) {
		start = len(list)
	}
	end := start + pagination.PerPage
	if end > len(list) {
		end = len(list)
	}

	views := make([]employeeView, 0, end-start)
	for _, e := range list[start:end] {
		views = append(views, employeeView{ID: e.ID, Name: e.Name, Email: e.Email, Title: e.Title, Branch: e.Branch, CreatedAt: e.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"employees": views,
		"page":      pagination.Page,
		"per_page":  pagination.PerPage,
		"total":     pagination.Total,
	})
}
