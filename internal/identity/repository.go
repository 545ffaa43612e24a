package identity

import (
	"context"

	"github.com/bissquit/news-portal/internal/domain"
)

// Repository defines the storage operations the user service needs.
type Repository interface {
	Save(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.User, bool, error)
	Count(ctx context.Context) (int64, error)

	// ListOrdered returns all users ordered by name.
	ListOrdered(ctx context.Context) ([]*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, bool, error)
	// Authenticate looks up a user by email and stored password hash.
	Authenticate(ctx context.Context, email, passwordHash string) (*domain.User, bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
