package domain

import (
	"time"
	"unicode/utf8"
)

// SummaryLength is the number of characters kept by Article.Summary.
const SummaryLength = 150

// Article represents a published news article.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Equal reports whether both articles are persisted and share an identifier.
func (a *Article) Equal(other *Article) bool {
	if a == nil || other == nil {
		return false
	}
	return a.ID != "" && a.ID == other.ID
}

// Summary returns the beginning of the body, truncated on a rune boundary.
func (a *Article) Summary() string {
	if utf8.RuneCountInString(a.Body) <= SummaryLength {
		return a.Body
	}
	runes := []rune(a.Body)
	return string(runes[:SummaryLength]) + "..."
}

// AuthorDisplayName returns the author's name or a placeholder when it is unknown.
func (a *Article) AuthorDisplayName() string {
	if a.AuthorName == "" {
		return "Unknown author"
	}
	return a.AuthorName
}
