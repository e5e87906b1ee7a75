package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smertin-nikita/market/internal/domain"
)

// GetUserByToken resolves a bearer token key to its user.
func (r *Repository) GetUserByToken(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.is_staff, u.is_supplier, u.created_at
		 FROM auth_tokens t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.key = $1`, token).Scan(
		&user.ID,
		&user.Email,
		&user.IsStaff,
		&user.IsSupplier,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by token: %w", err)
	}
	return &user, nil
}
