package news

import (
	"fmt"

	"github.com/bissquit/news-portal/internal/domain"
)

// Module errors.
var (
	ErrArticleNotFound = fmt.Errorf("article %w", domain.ErrNotFound)
	ErrForbidden       = fmt.Errorf("%w: only the author or an administrator may change this article", domain.ErrForbidden)
	ErrAuthorNotFound  = domain.NewValidationError("author_id", "author does not exist")
)
