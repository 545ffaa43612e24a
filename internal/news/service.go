// Package news provides article management: validation, authorization,
// listing and search over published articles.
package news

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/ctxlog"
	"github.com/bissquit/news-portal/internal/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Validation limits.
const (
	TitleMinLength = 5
	TitleMaxLength = 200
	BodyMinLength  = 10

	// DefaultLatestLimit is used when a non-positive limit is requested.
	DefaultLatestLimit = 10
)

// Service implements article business logic.
type Service struct {
	repo      Repository
	sanitizer *bluemonday.Policy
	stripper  *bluemonday.Policy
	validate  *validator.Validate
	now       func() time.Time
}

// NewService creates a new article service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		sanitizer: bluemonday.UGCPolicy(),
		stripper:  bluemonday.StrictPolicy(),
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Create validates and stores a new article. An unset publication time
// defaults to now.
func (s *Service) Create(ctx context.Context, article *domain.Article) error {
	s.normalize(article)
	if err := s.validateContent(article); err != nil {
		return err
	}
	if err := validateAuthor(article); err != nil {
		return err
	}

	if article.PublishedAt.IsZero() {
		article.PublishedAt = s.now()
	}

	if err := s.repo.Save(ctx, article); err != nil {
		return fmt.Errorf("save article: %w", err)
	}

	metrics.ArticleMutations.WithLabelValues("create").Inc()
	ctxlog.FromContext(ctx).Info("article created", "article_id", article.ID, "author_id", article.AuthorID)
	return nil
}

// Update re-validates article and overwrites the stored one with the same ID.
// Content is validated before the stored article is looked up. Author and
// publication time are kept from the stored article when unset.
func (s *Service) Update(ctx context.Context, article *domain.Article) (*domain.Article, error) {
	s.normalize(article)
	if err := s.validateContent(article); err != nil {
		return nil, err
	}

	existing, ok, err := s.GetByID(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrArticleNotFound
	}
	article.ID = existing.ID

	if article.AuthorID == "" {
		article.AuthorID = existing.AuthorID
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = existing.PublishedAt
	}
	if err := validateAuthor(article); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, article)
	if err != nil {
		return nil, fmt.Errorf("update article: %w", err)
	}

	metrics.ArticleMutations.WithLabelValues("update").Inc()
	ctxlog.FromContext(ctx).Info("article updated", "article_id", updated.ID)
	return updated, nil
}

// Delete removes the article with id on behalf of actor.
func (s *Service) Delete(ctx context.Context, id string, actor *domain.User) error {
	article, ok, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrArticleNotFound
	}

	if !s.CanDelete(article, actor) {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, article.ID); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	metrics.ArticleMutations.WithLabelValues("delete").Inc()
	ctxlog.FromContext(ctx).Info("article deleted", "article_id", article.ID, "actor_id", actor.ID)
	return nil
}

// CanEdit reports whether user may modify article: administrators may edit
// any article, other users only their own.
func (s *Service) CanEdit(article *domain.Article, user *domain.User) bool {
	if article == nil || user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return user.ID != "" && user.ID == article.AuthorID
}

// CanDelete follows the same rule as CanEdit.
func (s *Service) CanDelete(article *domain.Article, user *domain.User) bool {
	return s.CanEdit(article, user)
}

// GetByID returns the article with id. Malformed ids are reported as absent.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Article, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, nil
	}

	article, ok, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get article: %w", err)
	}
	return article, ok, nil
}

// ListAll returns every article, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Article, error) {
	articles, err := s.repo.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// ListByAuthor returns the articles written by authorID, newest first.
// A blank author returns the full listing.
func (s *Service) ListByAuthor(ctx context.Context, authorID string) ([]*domain.Article, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return s.ListAll(ctx)
	}
	if _, err := uuid.Parse(authorID); err != nil {
		return []*domain.Article{}, nil
	}

	articles, err := s.repo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("list articles by author: %w", err)
	}
	return articles, nil
}

// SearchByTitle returns articles whose title contains term, ignoring case.
// A blank term returns the full listing.
func (s *Service) SearchByTitle(ctx context.Context, term string) ([]*domain.Article, error) {
	if domain.IsBlank(term) {
		return s.ListAll(ctx)
	}

	articles, err := s.repo.SearchByTitle(ctx, domain.NormalizeText(strings.TrimSpace(term)))
	if err != nil {
		return nil, fmt.Errorf("search articles by title: %w", err)
	}
	return articles, nil
}

// Search returns articles whose title or body contains keyword, ignoring
// case. A blank keyword returns the full listing.
func (s *Service) Search(ctx context.Context, keyword string) ([]*domain.Article, error) {
	if domain.IsBlank(keyword) {
		return s.ListAll(ctx)
	}

	articles, err := s.repo.Search(ctx, domain.NormalizeText(strings.TrimSpace(keyword)))
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return articles, nil
}

// ListLatest returns at most limit articles, newest first. A non-positive
// limit falls back to DefaultLatestLimit.
func (s *Service) ListLatest(ctx context.Context, limit int) ([]*domain.Article, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}

	articles, err := s.repo.ListLatest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list latest articles: %w", err)
	}
	return articles, nil
}

// Count returns the number of stored articles.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func (s *Service) normalize(article *domain.Article) {
	article.Title = domain.NormalizeText(strings.TrimSpace(article.Title))
	article.Body = domain.NormalizeText(strings.TrimSpace(s.sanitizer.Sanitize(article.Body)))
	article.ImageURL = strings.TrimSpace(article.ImageURL)
	article.AuthorID = strings.TrimSpace(article.AuthorID)
}

// bodyText returns the visible text of a sanitized body.
func (s *Service) bodyText(body string) string {
	return strings.TrimSpace(html.UnescapeString(s.stripper.Sanitize(body)))
}

// validateContent checks title, body and image URL and returns the first
// unmet rule as a *domain.ValidationError. The body is measured by its text,
// without markup or character references.
func (s *Service) validateContent(article *domain.Article) error {
	switch n := domain.Length(article.Title); {
	case domain.IsBlank(article.Title):
		return domain.NewValidationError("title", "title is required")
	case n < TitleMinLength || n > TitleMaxLength:
		return domain.NewValidationError("title",
			fmt.Sprintf("title must be between %d and %d characters", TitleMinLength, TitleMaxLength))
	}

	text := s.bodyText(article.Body)
	switch {
	case domain.IsBlank(text):
		return domain.NewValidationError("body", "body is required")
	case domain.Length(text) < BodyMinLength:
		return domain.NewValidationError("body",
			fmt.Sprintf("body must have at least %d characters", BodyMinLength))
	}

	if article.ImageURL != "" {
		if err := s.validate.Var(article.ImageURL, "http_url"); err != nil {
			return domain.NewValidationError("image_url", "image URL must be an absolute http(s) URL")
		}
	}

	return nil
}

func validateAuthor(article *domain.Article) error {
	if article.AuthorID == "" {
		return domain.NewValidationError("author_id", "author is required")
	}
	if _, err := uuid.Parse(article.AuthorID); err != nil {
		return ErrAuthorNotFound
	}

	return nil
}
