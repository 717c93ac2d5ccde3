package store

import (
	"context"
	"fmt"
)

// tableLock is a cooperative, non-reentrant lock for one table.
type tableLock struct {
	ch chan struct{}
}

// Lock acquires exclusive cooperative use of a table, blocking until the
// current holder releases it or ctx is done. The lock is purely advisory:
// it orders engine callers around read-then-modify-then-store sequences
// and does not touch SQLite's own locking.
//
// The store never auto-releases: callers must pair every successful Lock
// with an Unlock on every exit path, including error paths.
func (s *Store) Lock(ctx context.Context, table string) error {
	s.mu.Lock()
	l, ok := s.locks[table]
	if !ok {
		l = &tableLock{ch: make(chan struct{}, 1)}
		s.locks[table] = l
	}
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock %s: %w", table, ctx.Err())
	}
}

// Unlock releases a table lock taken with Lock. Unlocking a table that is
// not held is an error rather than a silent no-op - it always indicates a
// broken acquire/release pairing in the caller.
func (s *Store) Unlock(table string) error {
	s.mu.Lock()
	l, ok := s.locks[table]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unlock %s: table was never locked", table)
	}

	select {
	case <-l.ch:
		return nil
	default:
		return fmt.Errorf("unlock %s: lock not held", table)
	}
}

// NextSequence returns the next value of a numeric column, scoped by an
// optional raw condition. Callers generating a number they intend to store
// must hold the table lock across the whole read-then-store sequence:
//
//	if err := s.Lock(ctx, "invoice"); err != nil { ... }
//	n, err := s.NextSequence(ctx, "invoice", "number", "")
//	// ... stamp n into the record and store it ...
//	s.Unlock("invoice")
//
// NextSequence itself takes no lock - it is only the read half.
func (s *Store) NextSequence(ctx context.Context, table, column, condition string, args ...any) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", column, table)
	if condition != "" {
		query += " WHERE " + condition
	}

	rows, err := s.Execute(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, fmt.Errorf("next sequence for %s.%s: empty result", table, column)
	}

	max, ok := rows[0][0].(int64)
	if !ok {
		return 0, fmt.Errorf("next sequence for %s.%s: non-integer maximum %T", table, column, rows[0][0])
	}
	return max + 1, nil
}
