package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes used by the repositories.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraint is not empty, the violated constraint must match it.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, codeUniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error, constraint string) bool {
	return hasCode(err, codeForeignKeyViolation, constraint)
}

func hasCode(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// EscapeLike escapes LIKE wildcards so term is matched literally.
func EscapeLike(term string) string {
	var b []byte
	for i := 0; i < len(term); i++ {
		switch term[i] {
		case '\\', '%', '_':
			b = append(b, '\\')
		}
		b = append(b, term[i])
	}
	return string(b)
}

// ContainsPattern builds an ILIKE pattern matching term anywhere in a value.
func ContainsPattern(term string) string {
	return "%" + EscapeLike(term) + "%"
}
