package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lockNoteQuery   = `SELECT 1 FROM notes WHERE id = $1 FOR UPDATE`
	deleteNoteQuery = `DELETE FROM notes WHERE id = $1`
	findNoteQuery   = `SELECT n.id, n.text FROM notes n WHERE n.id = $1`
	countNoteQuery  = `SELECT COUNT(*) FROM notes`
)

func TestRepository_Save_UsesTransaction(t *testing.T) {
	db := newFakeDB()
	mapping := &noteMapping{}
	repo := NewRepository[note, string](db, mapping)

	n := &note{Text: "hello"}
	err := repo.Save(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, "generated-id", n.ID)
	assert.Same(t, db.tx, mapping.querier, "insert must run on the transaction")
	assert.True(t, db.tx.committed)
}

func TestRepository_Save_RollsBackOnInsertError(t *testing.T) {
	db := newFakeDB()
	mapping := &noteMapping{insertErr: errors.New("constraint")}
	repo := NewRepository[note, string](db, mapping)

	err := repo.Save(context.Background(), &note{Text: "hello"})

	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.True(t, db.tx.rolledBack)
	assert.Empty(t, mapping.inserted)
}

func TestRepository_Update_ReturnsPersistedState(t *testing.T) {
	db := newFakeDB()
	db.tx.rows[findNoteQuery] = fakeRow{values: []any{"n1", "persisted"}}
	mapping := &noteMapping{}
	repo := NewRepository[note, string](db, mapping)

	updated, err := repo.Update(context.Background(), &note{ID: "n1", Text: "changed"})

	require.NoError(t, err)
	assert.Equal(t, &note{ID: "n1", Text: "persisted"}, updated)
	assert.Len(t, mapping.merged, 1)
	assert.True(t, db.tx.committed)
}

func TestRepository_Update_MergeFailure(t *testing.T) {
	db := newFakeDB()
	mapping := &noteMapping{mergeErr: errors.New("deadlock")}
	repo := NewRepository[note, string](db, mapping)

	updated, err := repo.Update(context.Background(), &note{ID: "n1"})

	assert.Nil(t, updated)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.True(t, db.tx.rolledBack)
}

func TestRepository_Delete_Existing(t *testing.T) {
	db := newFakeDB()
	db.tx.rows[lockNoteQuery] = fakeRow{values: []any{1}}
	repo := NewRepository[note, string](db, &noteMapping{})

	err := repo.Delete(context.Background(), "n1")

	require.NoError(t, err)
	assert.Equal(t, []string{deleteNoteQuery}, db.tx.execs)
	assert.True(t, db.tx.committed)
}

func TestRepository_Delete_MissingIsNoOp(t *testing.T) {
	db := newFakeDB()
	repo := NewRepository[note, string](db, &noteMapping{})

	err := repo.Delete(context.Background(), "missing")

	require.NoError(t, err)
	assert.Empty(t, db.tx.execs)
	assert.True(t, db.tx.committed, "absent entity commits as a no-op")
}

func TestRepository_Delete_ExecFailure(t *testing.T) {
	db := newFakeDB()
	db.tx.rows[lockNoteQuery] = fakeRow{values: []any{1}}
	db.tx.execErr = errors.New("io timeout")
	repo := NewRepository[note, string](db, &noteMapping{})

	err := repo.Delete(context.Background(), "n1")

	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, db.tx.execErr)
	assert.True(t, db.tx.rolledBack)
}

func TestRepository_FindByID(t *testing.T) {
	db := newFakeDB()
	db.rows[findNoteQuery] = fakeRow{values: []any{"n1", "text"}}
	repo := NewRepository[note, string](db, &noteMapping{})

	found, ok, err := repo.FindByID(context.Background(), "n1")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "text", found.Text)
	assert.Zero(t, db.begins, "reads run outside a transaction")
}

func TestRepository_FindByID_Absent(t *testing.T) {
	db := newFakeDB()
	repo := NewRepository[note, string](db, &noteMapping{})

	found, ok, err := repo.FindByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, found)
}

func TestRepository_FindByID_StorageError(t *testing.T) {
	db := newFakeDB()
	db.rows[findNoteQuery] = fakeRow{err: errors.New("connection refused")}
	repo := NewRepository[note, string](db, &noteMapping{})

	_, ok, err := repo.FindByID(context.Background(), "n1")

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestRepository_FindAll_QueryError(t *testing.T) {
	repo := NewRepository[note, string](newFakeDB(), &noteMapping{})

	notes, err := repo.FindAll(context.Background())

	assert.Nil(t, notes)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestRepository_Count(t *testing.T) {
	db := newFakeDB()
	db.rows[countNoteQuery] = fakeRow{values: []any{int64(3)}}
	repo := NewRepository[note, string](db, &noteMapping{})

	n, err := repo.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `snake\_case`, EscapeLike("snake_case"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
	assert.Equal(t, `%news%`, ContainsPattern("news"))
}
