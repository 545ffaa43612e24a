// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/identity"
	"github.com/bissquit/news-portal/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	emailUniqueConstraint = "users_email_key"
	articleAuthorForeign  = "articles_author_id_fkey"
)

// Repository implements the identity.Repository interface using PostgreSQL.
type Repository struct {
	*postgres.Repository[domain.User, string]
}

// NewRepository creates a new PostgreSQL user repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{
		Repository: postgres.NewRepository[domain.User, string](db, userMapping{}),
	}
}

var _ identity.Repository = (*Repository)(nil)

// Delete removes the user with id. Users still referenced by articles are
// reported as identity.ErrUserHasArticles.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.Repository.Delete(ctx, id)
	if postgres.IsForeignKeyViolation(err, articleAuthorForeign) {
		return identity.ErrUserHasArticles
	}
	return err
}

// ListOrdered returns all users ordered by name.
func (r *Repository) ListOrdered(ctx context.Context) ([]*domain.User, error) {
	return r.FindMany(ctx, "ORDER BY name, email")
}

// FindByEmail returns the user registered with email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	return r.FindOne(ctx, "WHERE email = $1", email)
}

// Authenticate returns the user whose email and password hash both match.
func (r *Repository) Authenticate(ctx context.Context, email, passwordHash string) (*domain.User, bool, error) {
	return r.FindOne(ctx, "WHERE email = $1 AND password_hash = $2", email, passwordHash)
}

// EmailExists reports whether a user is registered with email.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, ok, err := r.FindByEmail(ctx, email)
	return ok, err
}

type userMapping struct{}

func (userMapping) Table() string     { return "users" }
func (userMapping) Key() string       { return "id" }
func (userMapping) SelectKey() string { return "id" }
func (userMapping) OrderBy() string   { return "" }

func (userMapping) Select() string {
	return `SELECT id, name, email, password_hash, role, created_at, updated_at FROM users`
}

func (userMapping) ID(user *domain.User) string {
	return user.ID
}

func (userMapping) Scan(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Password,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (userMapping) Insert(ctx context.Context, q postgres.Querier, user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.Password,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, emailUniqueConstraint) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (userMapping) Merge(ctx context.Context, q postgres.Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			updated_at = NOW()
	`
	_, err := q.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Password,
		user.Role,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, emailUniqueConstraint) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("merge user: %w", err)
	}
	return nil
}
