package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// GrantStore is the persistence boundary for both grant generations. The
// adapter owns the mapping between store rows and domain types; the resolver
// never learns that two schemas exist.
type GrantStore interface {
	LoadGrants(ctx context.Context, userID int64) (legacy []modules.ID, grants []GrantRecord, err error)
	ReplaceGrants(ctx context.Context, userID int64, legacy []modules.ID, grants []GrantRecord) error
}

// PGGrantStore implements GrantStore using PostgreSQL. The legacy viewable
// list lives as a text array on the users row; modern grants are one row per
// (user, module) in user_module_grants.
type PGGrantStore struct {
	pool *pgxpool.Pool
}

// NewGrantStore constructs a PostgreSQL grant store.
func NewGrantStore(pool *pgxpool.Pool) *PGGrantStore {
	return &PGGrantStore{pool: pool}
}

// LoadGrants reads both persisted grant shapes for a principal. Module ids
// are canonicalized on the way out so alias spellings written by older
// releases never reach a comparison.
func (s *PGGrantStore) LoadGrants(ctx context.Context, userID int64) ([]modules.ID, []GrantRecord, error) {
	var rawLegacy []string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(visible_modules, '{}') FROM users WHERE id = $1`, userID).Scan(&rawLegacy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, shared.ErrNotFound
		}
		return nil, nil, fmt.Errorf("rbac: load legacy list: %w", err)
	}
	legacy := make([]modules.ID, 0, len(rawLegacy))
	for _, id := range rawLegacy {
		legacy = append(legacy, modules.Canonicalize(modules.ID(id)))
	}

	rows, err := s.pool.Query(ctx, `SELECT module, can_add, can_edit, can_delete FROM user_module_grants WHERE user_id = $1`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("rbac: load grants: %w", err)
	}
	defer rows.Close()

	var grants []GrantRecord
	for rows.Next() {
		var grant GrantRecord
		var module string
		if err := rows.Scan(&module, &grant.CanAdd, &grant.CanEdit, &grant.CanDelete); err != nil {
			return nil, nil, fmt.Errorf("rbac: scan grant: %w", err)
		}
		grant.Module = modules.Canonicalize(modules.ID(module))
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rbac: iterate grants: %w", err)
	}
	return legacy, grants, nil
}

// ReplaceGrants swaps the principal's entire grant state in one transaction:
// delete and reinsert the grant rows, overwrite the legacy list. Either the
// whole replace commits or the prior state survives untouched.
func (s *PGGrantStore) ReplaceGrants(ctx context.Context, userID int64, legacy []modules.ID, grants []GrantRecord) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_module_grants WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("rbac: clear grants: %w", err)
		}
		for _, grant := range grants {
			_, err := tx.Exec(ctx,
				`INSERT INTO user_module_grants (user_id, module, can_add, can_edit, can_delete) VALUES ($1, $2, $3, $4, $5)`,
				userID, string(grant.Module), grant.CanAdd, grant.CanEdit, grant.CanDelete)
			if err != nil {
				return fmt.Errorf("rbac: insert grant %s: %w", grant.Module, err)
			}
		}
		list := make([]string, len(legacy))
		for i, id := range legacy {
			list[i] = string(id)
		}
		tag, err := tx.Exec(ctx, `UPDATE users SET visible_modules = $2, updated_at = now() WHERE id = $1`, userID, list)
		if err != nil {
			return fmt.Errorf("rbac: update legacy list: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

var _ GrantStore = (*PGGrantStore)(nil)
