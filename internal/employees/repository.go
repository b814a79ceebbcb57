package employees

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the roster.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEmployees returns the full roster ordered by name. Branch scoping is
// applied by the service, not here.
func (r *Repository) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, title, COALESCE(branch, ''), created_at FROM employees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("employees: list: %w", err)
	}
	defer rows.Close()
	var list []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Title, &e.Branch, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("employees: scan: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("employees: iterate: %w", err)
	}
	return list, nil
}
