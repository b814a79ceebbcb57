package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, COALESCE(branch, ''), status, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.Branch, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// ListUsers returns all accounts ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: iterate: %w", err)
	}
	return list, nil
}

// GetUser fetches a single account by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new account.
func (r *Repository) CreateUser(ctx context.Context, email, name, passwordHash string, role rbac.Role, branch string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, role, branch, status, visible_modules)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, '{}')
		 RETURNING `+userColumns,
		email, name, passwordHash, string(role), branch, string(rbac.StatusActive))
	user, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return user, nil
}

// UpdateUser changes role, branch and status for an account.
func (r *Repository) UpdateUser(ctx context.Context, id int64, name string, role rbac.Role, branch string, status rbac.Status) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, role = $3, branch = NULLIF($4, ''), status = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, name, string(role), branch, string(status))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	return user, nil
}

// ListSupervisors returns the supervisors of a user.
func (r *Repository) ListSupervisors(ctx context.Context, userID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+qualifiedUserColumns("u")+`
		 FROM users u JOIN user_supervisors us ON us.supervisor_id = u.id
		 WHERE us.user_id = $1 ORDER BY u.email`, userID)
	if err != nil {
		return nil, fmt.Errorf("users: list supervisors: %w", err)
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan supervisor: %w", err)
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: iterate supervisors: %w", err)
	}
	return list, nil
}

// AssignSupervisor adds a reporting edge. The pair is unique; re-assigning
// an existing edge is a no-op.
func (r *Repository) AssignSupervisor(ctx context.Context, userID, supervisorID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_supervisors (user_id, supervisor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, supervisorID)
	if err != nil {
		return fmt.Errorf("users: assign supervisor: %w", err)
	}
	return nil
}

// RemoveSupervisor deletes a reporting edge.
func (r *Repository) RemoveSupervisor(ctx context.Context, userID, supervisorID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_supervisors WHERE user_id = $1 AND supervisor_id = $2`,
		userID, supervisorID)
	if err != nil {
		return fmt.Errorf("users: remove supervisor: %w", err)
	}
	return nil
}

func qualifiedUserColumns(alias string) string {
	return alias + `.id, ` + alias + `.email, ` + alias + `.name, ` + alias + `.role, COALESCE(` + alias + `.branch, ''), ` + alias + `.status, ` + alias + `.created_at, ` + alias + `.updated_at`
}
