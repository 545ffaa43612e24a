package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// KindMappings maps the shared error kinds. They are consulted after the
// module mappings passed to HandleError.
var KindMappings = []ErrorMapping{
	{Error: domain.ErrNotFound, Status: http.StatusNotFound},
	{Error: domain.ErrForbidden, Status: http.StatusForbidden},
	{Error: domain.ErrConflict, Status: http.StatusConflict},
	{Error: domain.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// Validation errors always produce 400 with field details.
// If no mapping matches, logs the error and returns 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	if errors.Is(err, domain.ErrValidation) {
		ValidationError(w, err)
		return
	}

	for _, set := range [][]ErrorMapping{mappings, KindMappings} {
		for _, m := range set {
			if errors.Is(err, m.Error) {
				msg := m.Message
				if msg == "" {
					msg = err.Error()
				}
				Error(w, m.Status, msg)
				return
			}
		}
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
