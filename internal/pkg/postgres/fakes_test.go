package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow returns err from Scan or copies values into the destinations.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) {
			break
		}
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		}
	}
	return nil
}

// fakeTx records the transaction lifecycle. Only the methods used by the
// repository are implemented; the embedded interface panics on anything else.
type fakeTx struct {
	pgx.Tx

	committed  bool
	rolledBack bool
	commitErr  error

	rows    map[string]fakeRow
	execs   []string
	execErr error
}

func (tx *fakeTx) Commit(_ context.Context) error {
	if tx.rolledBack || tx.committed {
		return pgx.ErrTxClosed
	}
	if tx.commitErr != nil {
		tx.rolledBack = true
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	if tx.rolledBack || tx.committed {
		return pgx.ErrTxClosed
	}
	tx.rolledBack = true
	return nil
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, sql)
	if tx.execErr != nil {
		return pgconn.CommandTag{}, tx.execErr
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if row, ok := tx.rows[sql]; ok {
		return row
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (tx *fakeTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported by fakeTx")
}

// fakeDB hands out a single fakeTx and answers QueryRow from rows.
type fakeDB struct {
	tx       *fakeTx
	beginErr error
	begins   int
	rows     map[string]fakeRow
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tx:   &fakeTx{rows: make(map[string]fakeRow)},
		rows: make(map[string]fakeRow),
	}
}

func (db *fakeDB) Begin(_ context.Context) (pgx.Tx, error) {
	db.begins++
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	return db.tx, nil
}

func (db *fakeDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not supported by fakeDB")
}

func (db *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("query failed")
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if row, ok := db.rows[sql]; ok {
		return row
	}
	return fakeRow{err: pgx.ErrNoRows}
}

type note struct {
	ID   string
	Text string
}

// noteMapping is a minimal Mapping whose Insert/Merge behaviour is scripted.
type noteMapping struct {
	insertErr error
	mergeErr  error
	inserted  []*note
	merged    []*note
	querier   Querier
}

func (m *noteMapping) Table() string     { return "notes" }
func (m *noteMapping) Key() string       { return "id" }
func (m *noteMapping) Select() string    { return "SELECT n.id, n.text FROM notes n" }
func (m *noteMapping) SelectKey() string { return "n.id" }
func (m *noteMapping) OrderBy() string   { return "n.id" }
func (m *noteMapping) ID(n *note) string { return n.ID }

func (m *noteMapping) Scan(row pgx.Row) (*note, error) {
	var n note
	if err := row.Scan(&n.ID, &n.Text); err != nil {
		return nil, err
	}
	return &n, nil
}

func (m *noteMapping) Insert(_ context.Context, q Querier, n *note) error {
	m.querier = q
	if m.insertErr != nil {
		return m.insertErr
	}
	n.ID = "generated-id"
	m.inserted = append(m.inserted, n)
	return nil
}

func (m *noteMapping) Merge(_ context.Context, q Querier, n *note) error {
	m.querier = q
	if m.mergeErr != nil {
		return m.mergeErr
	}
	m.merged = append(m.merged, n)
	return nil
}
