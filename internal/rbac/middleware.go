package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Action names a mutating operation gated per module.
type Action string

// Gated actions.
const (
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Middleware wires permission checks into HTTP handlers. It resolves the
// current principal from the session, computes the effective set and gates
// the request on module visibility or a specific mutating action.
type Middleware struct {
	Service    *Service
	Principals PrincipalSource
	Logger     *slog.Logger
}

// RequireModule allows the request only when the module is viewable for the
// current principal.
func (m Middleware) RequireModule(id modules.ID) func(http.Handler) http.Handler {
	id = modules.Canonicalize(id)
	return m.require(func(set EffectiveSet) bool {
		return set[id].Viewable
	})
}

// RequireAction allows the request only when the given mutating action is
// granted on the module.
func (m Middleware) RequireAction(id modules.ID, action Action) func(http.Handler) http.Handler {
	id = modules.Canonicalize(id)
	return m.require(func(set EffectiveSet) bool {
		perm := set[id]
		switch action {
		case ActionAdd:
			return perm.CanAdd
		case ActionEdit:
			return perm.CanEdit
		case ActionDelete:
			return perm.CanDelete
		default:
			return false
		}
	})
}

func (m Middleware) require(allowed func(EffectiveSet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := m.currentPrincipal(r)
			if !ok || principal.Status != StatusActive {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			set, err := m.Service.Effective(r.Context(), principal)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac effective set", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed(set) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func (m Middleware) currentPrincipal(r *http.Request) (Principal, bool) {
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		return principal, true
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Principal{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return Principal{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return Principal{}, false
	}
	principal, err := m.Principals.PrincipalByID(r.Context(), id)
	if err != nil {
		return Principal{}, false
	}
	return principal, true
}
