package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
)

// Insert appends rows to the table and returns the last generated key.
// Every row must carry one value per column.
func (s *Store) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("insert %s: row has %d values for %d columns", table, len(row), len(columns))
		}
	}

	row := "(" + placeholders(len(columns)) + ")"
	values := make([]string, len(rows))
	var args []any
	for i, r := range rows {
		values[i] = row
		args = append(args, r...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(values, ", "))

	s.logger.Debug("insert", "table", table, "rows", len(rows))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}

	key, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last key: %w", table, err)
	}
	return key, nil
}

// Update assigns values to columns on every row matching filter.
func (s *Store) Update(ctx context.Context, table string, columns []string, values []any, filter *binding.Filter) error {
	if len(values) != len(columns) {
		return fmt.Errorf("update %s: %d values for %d columns", table, len(values), len(columns))
	}
	if filter == nil || filter.Where == "" {
		return fmt.Errorf("update %s: refusing unfiltered update", table)
	}

	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = c + " = ?"
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(sets, ", "), filter.Where)
	args := append(append([]any{}, values...), filter.Args...)

	s.logger.Debug("update", "table", table, "where", filter.Where)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// Delete removes the rows matching filter. An unfiltered delete is refused:
// the engine always scopes deletions to a key or a load filter.
func (s *Store) Delete(ctx context.Context, table string, filter *binding.Filter) error {
	if filter == nil || filter.Where == "" {
		return fmt.Errorf("delete %s: refusing unfiltered delete", table)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, filter.Where)

	s.logger.Debug("delete", "table", table, "where", filter.Where)
	if _, err := s.db.ExecContext(ctx, query, filter.Args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
