package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.DB().Exec(`
		CREATE TABLE customers (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			city TEXT
		)`)
	require.NoError(t, err)
	return s
}

func TestStore_InsertReturnsGeneratedKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key, err := s.Insert(ctx, "customers", []string{"name", "city"}, [][]any{
		{"Ada", "Oslo"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)

	key, err = s.Insert(ctx, "customers", []string{"name", "city"}, [][]any{
		{"Grace", "Bergen"},
		{"Edsger", "Oslo"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), key, "a multi-row insert reports the last generated key")
}

func TestStore_SelectWithFilterOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "customers", []string{"name", "city"}, [][]any{
		{"Ada", "Oslo"},
		{"Grace", "Bergen"},
		{"Edsger", "Oslo"},
	})
	require.NoError(t, err)

	rows, err := s.Select(ctx, "customers", []string{"name"},
		&binding.Filter{Where: "city = ?", Args: []any{"Oslo"}, Order: "name"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada", rows[0][0])
	assert.Equal(t, "Edsger", rows[1][0])

	rows, err = s.Select(ctx, "customers", nil, &binding.Filter{Order: "id"}, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "limit caps the result")
	assert.Len(t, rows[0], 3, "an empty column list selects every column")
}

func TestStore_UpdateRefusesMissingFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "customers", []string{"city"}, []any{"Oslo"}, nil)
	require.Error(t, err)

	err = s.Update(ctx, "customers", []string{"city"}, []any{"Oslo"}, &binding.Filter{})
	require.Error(t, err, "an empty where clause would update the whole table")
}

func TestStore_DeleteRefusesMissingFilter(t *testing.T) {
	s := openTestStore(t)
	err := s.Delete(context.Background(), "customers", nil)
	require.Error(t, err)
}

func TestStore_UpdateAndDeleteByFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "customers", []string{"name", "city"}, [][]any{
		{"Ada", "Oslo"},
		{"Grace", "Bergen"},
	})
	require.NoError(t, err)

	err = s.Update(ctx, "customers", []string{"city"}, []any{"Trondheim"},
		binding.KeyFilter("id", int64(1)))
	require.NoError(t, err)

	rows, err := s.Select(ctx, "customers", []string{"city"}, binding.KeyFilter("id", int64(1)), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Trondheim", rows[0][0])

	err = s.Delete(ctx, "customers", &binding.Filter{Where: "city = ?", Args: []any{"Bergen"}})
	require.NoError(t, err)

	rows, err = s.Select(ctx, "customers", nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStore_ColumnsDiscoversDeclarationOrder(t *testing.T) {
	s := openTestStore(t)

	cols, err := s.Columns(context.Background(), "customers")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "city"}, cols)

	_, err = s.Columns(context.Background(), "no_such_table")
	require.Error(t, err)
}

func TestStore_ExecuteRoutesByStatementKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows, err := s.Execute(ctx, "INSERT INTO customers (name, city) VALUES (?, ?)", "Ada", "Oslo")
	require.NoError(t, err)
	assert.Nil(t, rows, "non-query statements return no rows")

	rows, err = s.Execute(ctx, "SELECT name FROM customers WHERE city = ?", "Oslo")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0][0])

	rows, err = s.Execute(ctx, "PRAGMA foreign_keys")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0][0], "foreign key enforcement stays on")
}

func TestStore_LockBlocksSecondHolder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Lock(ctx, "customers"))

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := s.Lock(blocked, "customers")
	require.Error(t, err, "a held lock blocks the next acquirer")

	require.NoError(t, s.Unlock("customers"))
	require.NoError(t, s.Lock(ctx, "customers"), "a released lock is acquirable again")
	require.NoError(t, s.Unlock("customers"))
}

func TestStore_UnlockWithoutLockFails(t *testing.T) {
	s := openTestStore(t)

	err := s.Unlock("customers")
	require.Error(t, err, "unpaired unlock indicates a caller bug")

	require.NoError(t, s.Lock(context.Background(), "customers"))
	require.NoError(t, s.Unlock("customers"))
	err = s.Unlock("customers")
	require.Error(t, err)
}

func TestStore_LocksAreIndependentPerTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Lock(ctx, "customers"))
	require.NoError(t, s.Lock(ctx, "bookings"), "locks on different tables never interfere")
	require.NoError(t, s.Unlock("customers"))
	require.NoError(t, s.Unlock("bookings"))
}

func TestStore_NextSequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.DB().Exec(`CREATE TABLE invoices (number INTEGER, year INTEGER)`)
	require.NoError(t, err)

	n, err := s.NextSequence(ctx, "invoices", "number", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "an empty table starts the sequence at 1")

	_, err = s.DB().Exec(`INSERT INTO invoices (number, year) VALUES (17, 2025), (3, 2026)`)
	require.NoError(t, err)

	n, err = s.NextSequence(ctx, "invoices", "number", "")
	require.NoError(t, err)
	assert.Equal(t, int64(18), n)

	n, err = s.NextSequence(ctx, "invoices", "number", "year = ?", 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "the condition scopes the sequence")
}
