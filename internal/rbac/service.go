package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/observability"
)

const cacheTTL = 10 * time.Minute

// PrincipalSource supplies principal records for resolution by id.
type PrincipalSource interface {
	PrincipalByID(ctx context.Context, id int64) (Principal, error)
}

// Notifier announces that a principal's grants changed. Consumers treat the
// event as a cue to re-resolve, never as a source of truth for what changed.
type Notifier interface {
	GrantsChanged(ctx context.Context, userID int64) error
}

// Service orchestrates permission resolution and the grant editor protocol.
// Resolution itself stays pure; the service only adds persistence, an
// invalidated-on-write Redis cache and change notification around it.
type Service struct {
	logger     *slog.Logger
	store      GrantStore
	principals PrincipalSource
	cache      *redis.Client
	notifier   Notifier
	metrics    *observability.Metrics
}

// NewService constructs a Service. Cache, notifier and metrics are optional.
func NewService(logger *slog.Logger, store GrantStore, principals PrincipalSource, cache *redis.Client, notifier Notifier, metrics *observability.Metrics) *Service {
	return &Service{
		logger:     logger,
		store:      store,
		principals: principals,
		cache:      cache,
		notifier:   notifier,
		metrics:    metrics,
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("meridian:perms:%d", userID)
}

// Effective returns the principal's resolved permission set, from cache when
// a fresh entry exists, otherwise recomputed from the persisted grants.
func (s *Service) Effective(ctx context.Context, principal Principal) (EffectiveSet, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, cacheKey(principal.ID)).Bytes()
		if err == nil {
			var cached EffectiveSet
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil && s.logger != nil {
			s.logger.Warn("permission cache read", slog.Any("error", err))
		}
	}

	legacy, grants, err := s.store.LoadGrants(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	resolved := Resolve(principal, legacy, grants)
	if s.metrics != nil {
		s.metrics.IncPermissionResolve()
	}
	s.writeCache(ctx, principal.ID, resolved)
	return resolved, nil
}

// EffectiveByID resolves for a principal known only by id.
func (s *Service) EffectiveByID(ctx context.Context, userID int64) (EffectiveSet, error) {
	principal, err := s.principals.PrincipalByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Effective(ctx, principal)
}

// SaveGrants replaces the principal's entire grant set from a per-module
// access-level selection. The write is a full delete+reinsert inside one
// transaction: there is no merge and no version token, so the last save to
// commit wins. On success the cached effective set is dropped and a change
// notification is emitted.
func (s *Service) SaveGrants(ctx context.Context, userID int64, role Role, levels map[modules.ID]AccessLevel) error {
	legacy, grants, err := buildGrantState(role, levels)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceGrants(ctx, userID, legacy, grants); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	if s.notifier != nil {
		if err := s.notifier.GrantsChanged(ctx, userID); err != nil && s.logger != nil {
			s.logger.Warn("grants changed notification", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

// Invalidate drops the cached effective set for a principal. A failed delete
// is retried once; an entry surviving both attempts is reported at error
// level, since readers would otherwise serve the pre-save set until the TTL
// expires or the refresh task overwrites it.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(userID)).Err(); err == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(userID)).Err(); err != nil && s.logger != nil {
		s.logger.Error("permission cache invalidate", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// Refresh recomputes and re-caches the effective set for a principal. The
// background worker calls this on grant-change notifications.
func (s *Service) Refresh(ctx context.Context, userID int64) error {
	principal, err := s.principals.PrincipalByID(ctx, userID)
	if err != nil {
		return err
	}
	legacy, grants, err := s.store.LoadGrants(ctx, principal.ID)
	if err != nil {
		return err
	}
	resolved := Resolve(principal, legacy, grants)
	if s.metrics != nil {
		s.metrics.IncPermissionResolve()
	}
	s.writeCache(ctx, principal.ID, resolved)
	return nil
}

func (s *Service) writeCache(ctx context.Context, userID int64, set EffectiveSet) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(userID), payload, cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Warn("permission cache write", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// buildGrantState derives the stored shapes from an access-level selection.
// Both outputs are fully determined by the selection (and, for the super
// administrator, by the role alone).
func buildGrantState(role Role, levels map[modules.ID]AccessLevel) ([]modules.ID, []GrantRecord, error) {
	if IsUnrestricted(role) {
		catalog := modules.All()
		legacy := make([]modules.ID, 0, len(catalog))
		grants := make([]GrantRecord, 0, len(catalog))
		for _, id := range catalog {
			legacy = append(legacy, id)
			grants = append(grants, GrantRecord{Module: id, CanAdd: true, CanEdit: true, CanDelete: true})
		}
		return legacy, grants, nil
	}

	selected := make(map[modules.ID]AccessLevel, len(levels))
	for raw, level := range levels {
		id := modules.Canonicalize(raw)
		if !modules.Known(id) {
			return nil, nil, &InputError{Field: "module", Reason: fmt.Sprintf("unknown module %q", raw)}
		}
		if _, ok := levelFlags[level]; !ok {
			return nil, nil, &InputError{Field: "level", Reason: fmt.Sprintf("unknown access level %q for module %q", level, raw)}
		}
		if _, dup := selected[id]; dup {
			return nil, nil, &InputError{Field: "module", Reason: fmt.Sprintf("module %q selected twice after alias normalization", id)}
		}
		selected[id] = level
	}

	// Dashboard is always persisted with at least view access.
	if level, ok := selected[modules.Dashboard]; !ok || level == LevelNone {
		selected[modules.Dashboard] = LevelView
	}

	// Granting rights on a dependent module keeps its parent visible.
	for child, parent := range modules.Dependencies() {
		childAdd, childEdit, childDelete := selected[child].Flags()
		if childAdd || childEdit || childDelete {
			if level, ok := selected[parent]; !ok || level == LevelNone {
				selected[parent] = LevelView
			}
		}
	}

	var legacy []modules.ID
	var grants []GrantRecord
	for _, id := range modules.All() {
		level, ok := selected[id]
		if !ok || level == LevelNone {
			continue
		}
		canAdd, canEdit, canDelete := level.Flags()
		legacy = append(legacy, id)
		grants = append(grants, GrantRecord{Module: id, CanAdd: canAdd, CanEdit: canEdit, CanDelete: canDelete})
	}
	return legacy, grants, nil
}
