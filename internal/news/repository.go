package news

import (
	"context"

	"github.com/bissquit/news-portal/internal/domain"
)

// Repository defines the storage operations the article service needs.
type Repository interface {
	Save(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, article *domain.Article) (*domain.Article, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.Article, bool, error)
	Count(ctx context.Context) (int64, error)

	// ListOrdered returns all articles, newest publication first.
	ListOrdered(ctx context.Context) ([]*domain.Article, error)
	ListByAuthor(ctx context.Context, authorID string) ([]*domain.Article, error)
	// SearchByTitle matches term as a case-insensitive substring of the title.
	SearchByTitle(ctx context.Context, term string) ([]*domain.Article, error)
	// Search matches keyword as a case-insensitive substring of title or body.
	Search(ctx context.Context, keyword string) ([]*domain.Article, error)
	ListLatest(ctx context.Context, limit int) ([]*domain.Article, error)
}
