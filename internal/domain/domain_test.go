package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_HasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		expected bool
	}{
		{"admin as admin", RoleAdmin, RoleAdmin, true},
		{"admin as reader", RoleAdmin, RoleReader, true},
		{"reader as reader", RoleReader, RoleReader, true},
		{"reader as admin", RoleReader, RoleAdmin, false},
		{"unknown role", Role("editor"), RoleReader, false},
		{"empty role", Role(""), RoleReader, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.role.HasPermission(tt.required))
		})
	}
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleAdmin.IsValid())
	assert.True(t, RoleReader.IsValid())
	assert.False(t, Role("editor").IsValid())
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "Admin", RoleAdmin.DisplayName())
	assert.Equal(t, "Reader", RoleReader.DisplayName())
}

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleReader}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}

func TestArticle_Equal(t *testing.T) {
	a := &Article{ID: "a1", Title: "first"}
	b := &Article{ID: "a1", Title: "changed"}
	c := &Article{ID: "a2"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, (&Article{}).Equal(&Article{}), "unsaved articles are never equal")
	assert.False(t, a.Equal(nil))
}

func TestArticle_Summary(t *testing.T) {
	short := &Article{Body: "short body"}
	assert.Equal(t, "short body", short.Summary())

	long := &Article{Body: strings.Repeat("é", SummaryLength+10)}
	summary := long.Summary()
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.Equal(t, SummaryLength+3, Length(summary))
}

func TestArticle_AuthorDisplayName(t *testing.T) {
	assert.Equal(t, "Unknown author", (&Article{}).AuthorDisplayName())
	assert.Equal(t, "Ana", (&Article{AuthorName: "Ana"}).AuthorDisplayName())
}

func TestNormalizeText(t *testing.T) {
	decomposed := "Noticia\u0301"
	composed := "Notici\u00e1"

	assert.Equal(t, 8, Length(decomposed))
	assert.Equal(t, composed, NormalizeText(decomposed))
	assert.Equal(t, 7, Length(NormalizeText(decomposed)))
}

func TestValidationError_Is(t *testing.T) {
	err := NewValidationError("title", "title is required")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "title is required", err.Error())
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StorageError{Op: "save articles", Err: cause}

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "save articles: connection reset", err.Error())
	assert.False(t, IsKnownKind(err))
}

func TestIsKnownKind(t *testing.T) {
	assert.True(t, IsKnownKind(NewValidationError("f", "m")))
	assert.True(t, IsKnownKind(errors.Join(ErrConflict, errors.New("dup"))))
	assert.False(t, IsKnownKind(errors.New("boom")))
}
