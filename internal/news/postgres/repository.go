// Package postgres provides PostgreSQL implementation of the article repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/news"
	"github.com/bissquit/news-portal/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	authorForeignKey = "articles_author_id_fkey"

	orderByPublication = "ORDER BY a.published_at DESC, a.created_at DESC"
)

// Repository implements the news.Repository interface using PostgreSQL.
type Repository struct {
	*postgres.Repository[domain.Article, string]
}

// NewRepository creates a new PostgreSQL article repository.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{
		Repository: postgres.NewRepository[domain.Article, string](db, articleMapping{}),
	}
}

var _ news.Repository = (*Repository)(nil)

// ListOrdered returns all articles, newest publication first.
func (r *Repository) ListOrdered(ctx context.Context) ([]*domain.Article, error) {
	return r.FindMany(ctx, orderByPublication)
}

// ListByAuthor returns the articles of authorID, newest publication first.
func (r *Repository) ListByAuthor(ctx context.Context, authorID string) ([]*domain.Article, error) {
	return r.FindMany(ctx, "WHERE a.author_id = $1 "+orderByPublication, authorID)
}

// SearchByTitle returns articles whose title contains term, ignoring case.
func (r *Repository) SearchByTitle(ctx context.Context, term string) ([]*domain.Article, error) {
	return r.FindMany(ctx, "WHERE a.title ILIKE $1 "+orderByPublication, postgres.ContainsPattern(term))
}

// Search returns articles whose title or body contains keyword, ignoring case.
func (r *Repository) Search(ctx context.Context, keyword string) ([]*domain.Article, error) {
	return r.FindMany(ctx, "WHERE a.title ILIKE $1 OR a.body ILIKE $1 "+orderByPublication, postgres.ContainsPattern(keyword))
}

// ListLatest returns at most limit articles, newest publication first.
func (r *Repository) ListLatest(ctx context.Context, limit int) ([]*domain.Article, error) {
	return r.FindMany(ctx, orderByPublication+" LIMIT $1", limit)
}

type articleMapping struct{}

func (articleMapping) Table() string     { return "articles" }
func (articleMapping) Key() string       { return "id" }
func (articleMapping) SelectKey() string { return "a.id" }
func (articleMapping) OrderBy() string   { return "a.published_at DESC, a.created_at DESC" }

func (articleMapping) Select() string {
	return `SELECT a.id, a.title, a.body, a.image_url, a.published_at, a.author_id,
		COALESCE(u.name, ''), a.created_at, a.updated_at
		FROM articles a
		LEFT JOIN users u ON u.id = a.author_id`
}

func (articleMapping) ID(article *domain.Article) string {
	return article.ID
}

func (articleMapping) Scan(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Body,
		&a.ImageURL,
		&a.PublishedAt,
		&a.AuthorID,
		&a.AuthorName,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (articleMapping) Insert(ctx context.Context, q postgres.Querier, article *domain.Article) error {
	query := `
		WITH inserted AS (
			INSERT INTO articles (title, body, image_url, published_at, author_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, author_id, created_at, updated_at
		)
		SELECT i.id, COALESCE(u.name, ''), i.created_at, i.updated_at
		FROM inserted i
		LEFT JOIN users u ON u.id = i.author_id
	`
	err := q.QueryRow(ctx, query,
		article.Title,
		article.Body,
		article.ImageURL,
		article.PublishedAt,
		article.AuthorID,
	).Scan(&article.ID, &article.AuthorName, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err, authorForeignKey) {
			return news.ErrAuthorNotFound
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (articleMapping) Merge(ctx context.Context, q postgres.Querier, article *domain.Article) error {
	query := `
		INSERT INTO articles (id, title, body, image_url, published_at, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			image_url = EXCLUDED.image_url,
			published_at = EXCLUDED.published_at,
			author_id = EXCLUDED.author_id,
			updated_at = NOW()
	`
	_, err := q.Exec(ctx, query,
		article.ID,
		article.Title,
		article.Body,
		article.ImageURL,
		article.PublishedAt,
		article.AuthorID,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err, authorForeignKey) {
			return news.ErrAuthorNotFound
		}
		return fmt.Errorf("merge article: %w", err)
	}
	return nil
}
