package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
)

// Select returns the requested columns of the rows matching filter.
// A nil filter selects every row; limit <= 0 means no limit.
func (s *Store) Select(ctx context.Context, table string, columns []string, filter *binding.Filter, limit int) ([][]any, error) {
	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	var args []any
	if filter != nil && filter.Where != "" {
		query += " WHERE " + filter.Where
		args = append(args, filter.Args...)
	}
	if filter != nil && filter.Order != "" {
		query += " ORDER BY " + filter.Order
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	s.logger.Debug("select", "table", table, "query", query)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Columns discovers a table's column set from the store.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", table, err)
	}
	return columns, nil
}

// Execute runs a raw statement. Statements that produce rows (SELECT,
// PRAGMA, WITH) are queried and their rows returned; everything else is
// executed with a nil result.
func (s *Store) Execute(ctx context.Context, statement string, args ...any) ([][]any, error) {
	s.logger.Debug("execute", "statement", statement)

	if returnsRows(statement) {
		rows, err := s.db.QueryContext(ctx, statement, args...)
		if err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		defer rows.Close()
		return scanRows(rows)
	}

	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return nil, nil
}

func returnsRows(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "PRAGMA", "WITH":
		return true
	default:
		return false
	}
}

// scanRows drains a result set into value slices, one per row.
func scanRows(rows *sql.Rows) ([][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
