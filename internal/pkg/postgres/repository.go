package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier runs statements. Implemented by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the data-source handle repositories are built on.
type DB interface {
	Querier
	TxStarter
}

// Mapping describes how an entity type is stored.
type Mapping[T any, ID comparable] interface {
	// Table is the table holding the entity.
	Table() string
	// Key is the primary key column of Table.
	Key() string
	// Select is a SELECT statement without WHERE/ORDER BY clauses whose
	// columns are read by Scan.
	Select() string
	// SelectKey is the primary key column as referenced inside Select.
	SelectKey() string
	// OrderBy is the default ordering for FindAll. Empty means unspecified.
	OrderBy() string
	Scan(row pgx.Row) (*T, error)
	ID(entity *T) ID
	// Insert stores a new entity and fills generated fields.
	Insert(ctx context.Context, q Querier, entity *T) error
	// Merge creates or overwrites the row identified by the entity's ID.
	Merge(ctx context.Context, q Querier, entity *T) error
}

// Repository implements generic CRUD for one entity type.
type Repository[T any, ID comparable] struct {
	db      DB
	mapping Mapping[T, ID]
}

// NewRepository creates a generic repository over db.
func NewRepository[T any, ID comparable](db DB, mapping Mapping[T, ID]) *Repository[T, ID] {
	return &Repository[T, ID]{db: db, mapping: mapping}
}

// Save persists a new entity in a single transaction.
func (r *Repository[T, ID]) Save(ctx context.Context, entity *T) error {
	return WithTx(ctx, r.db, "save "+r.mapping.Table(), func(tx pgx.Tx) error {
		return r.mapping.Insert(ctx, tx, entity)
	})
}

// Update merges entity into storage and returns the persisted state.
func (r *Repository[T, ID]) Update(ctx context.Context, entity *T) (*T, error) {
	var persisted *T
	err := WithTx(ctx, r.db, "update "+r.mapping.Table(), func(tx pgx.Tx) error {
		if err := r.mapping.Merge(ctx, tx, entity); err != nil {
			return err
		}
		found, ok, err := r.findOne(ctx, tx, "WHERE "+r.mapping.SelectKey()+" = $1", r.mapping.ID(entity))
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("merged row not visible")
		}
		persisted = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return persisted, nil
}

// Delete removes the entity with id. A missing entity is not an error.
func (r *Repository[T, ID]) Delete(ctx context.Context, id ID) error {
	table, key := r.mapping.Table(), r.mapping.Key()
	return WithTx(ctx, r.db, "delete "+table, func(tx pgx.Tx) error {
		var one int
		lockQuery := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = $1 FOR UPDATE`, table, key)
		if err := tx.QueryRow(ctx, lockQuery, id).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("load entity: %w", err)
		}

		deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, key)
		if _, err := tx.Exec(ctx, deleteQuery, id); err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		return nil
	})
}

// FindByID returns the entity with id, reporting whether it exists.
func (r *Repository[T, ID]) FindByID(ctx context.Context, id ID) (*T, bool, error) {
	return r.FindOne(ctx, "WHERE "+r.mapping.SelectKey()+" = $1", id)
}

// FindAll returns every entity in the mapping's default order.
func (r *Repository[T, ID]) FindAll(ctx context.Context) ([]*T, error) {
	clause := ""
	if order := r.mapping.OrderBy(); order != "" {
		clause = "ORDER BY " + order
	}
	return r.FindMany(ctx, clause)
}

// Count returns the number of stored entities.
func (r *Repository[T, ID]) Count(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.mapping.Table())
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, &domain.StorageError{Op: "count " + r.mapping.Table(), Err: err}
	}
	return n, nil
}

// FindOne runs the mapping's select with clause appended and returns the
// first row, reporting whether one was found.
func (r *Repository[T, ID]) FindOne(ctx context.Context, clause string, args ...any) (*T, bool, error) {
	entity, ok, err := r.findOne(ctx, r.db, clause, args...)
	if err != nil {
		return nil, false, &domain.StorageError{Op: "find " + r.mapping.Table(), Err: err}
	}
	return entity, ok, nil
}

// FindMany runs the mapping's select with clause appended.
func (r *Repository[T, ID]) FindMany(ctx context.Context, clause string, args ...any) ([]*T, error) {
	rows, err := r.db.Query(ctx, r.statement(clause), args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list " + r.mapping.Table(), Err: err}
	}

	entities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*T, error) {
		return r.mapping.Scan(row)
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "list " + r.mapping.Table(), Err: err}
	}
	if entities == nil {
		entities = make([]*T, 0)
	}
	return entities, nil
}

func (r *Repository[T, ID]) findOne(ctx context.Context, q Querier, clause string, args ...any) (*T, bool, error) {
	entity, err := r.mapping.Scan(q.QueryRow(ctx, r.statement(clause), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entity, true, nil
}

func (r *Repository[T, ID]) statement(clause string) string {
	if clause == "" {
		return r.mapping.Select()
	}
	return r.mapping.Select() + " " + clause
}
