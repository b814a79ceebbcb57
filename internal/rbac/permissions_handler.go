package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// PermissionsHandler exposes the permission endpoints: the navigation feed
// for the current principal and the administrative grant editor.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware, audit *shared.AuditLogger) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac, audit: audit, validator: validator.New()}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		// Dashboard is viewable for every authenticated active principal,
		// so this gate means exactly "logged in and active".
		r.Use(h.rbac.RequireModule(modules.Dashboard))
		r.Get("/me", h.showOwn)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModule(modules.Users))
		r.Get("/users/{id}", h.showUser)
		r.Put("/users/{id}", h.saveUser)
	})
}

type modulePermissionView struct {
	Module string `json:"module"`
	Label  string `json:"label"`
	Permission
}

func permissionViews(set EffectiveSet) []modulePermissionView {
	views := make([]modulePermissionView, 0, len(set))
	for _, id := range modules.All() {
		views = append(views, modulePermissionView{
			Module:     string(id),
			Label:      modules.Label(id),
			Permission: set[id],
		})
	}
	return views
}

func (h *PermissionsHandler) showOwn(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated principal")
		return
	}
	set, err := h.service.Effective(r.Context(), principal)
	if err != nil {
		h.logger.Error("resolve own permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to resolve permissions")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": permissionViews(set)})
}

func (h *PermissionsHandler) showUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	set, err := h.service.EffectiveByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("resolve user permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to resolve permissions")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": permissionViews(set)})
}

type saveGrantsRequest struct {
	Role   string            `json:"role" validate:"required"`
	Levels map[string]string `json:"levels" validate:"required"`
}

func (h *PermissionsHandler) saveUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req saveGrantsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}

	levels := make(map[modules.ID]AccessLevel, len(req.Levels))
	for module, raw := range req.Levels {
		level, err := ParseAccessLevel(raw)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
			return
		}
		levels[modules.ID(module)] = level
	}

	if err := h.service.SaveGrants(r.Context(), userID, Role(req.Role), levels); err != nil {
		var inputErr *InputError
		switch {
		case errors.As(err, &inputErr):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", inputErr.Error())
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		default:
			h.logger.Error("save grants", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "grant save was not applied")
		}
		return
	}

	if h.audit != nil {
		actor, _ := PrincipalFromContext(r.Context())
		entry := shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "grants.replace",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"role": req.Role, "levels": req.Levels},
		}
		if err := h.audit.Record(r.Context(), entry); err != nil {
			h.logger.Warn("audit grant save", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
