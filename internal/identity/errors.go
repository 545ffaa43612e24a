package identity

import (
	"errors"
	"fmt"

	"github.com/bissquit/news-portal/internal/domain"
)

// Module errors.
var (
	ErrUserNotFound       = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrEmailExists        = fmt.Errorf("email already in use: %w", domain.ErrConflict)
	ErrUserHasArticles    = fmt.Errorf("user still authors articles: %w", domain.ErrConflict)
	ErrInvalidCredentials = domain.ErrInvalidCredentials
	ErrSelfDeletion       = fmt.Errorf("%w: cannot delete the account of the current session", domain.ErrForbidden)
	ErrInvalidToken       = errors.New("invalid or expired token")
)
