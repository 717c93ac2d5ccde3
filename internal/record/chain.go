package record

import (
	"context"
	"fmt"
	"slices"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
	"github.com/aknob/AfpMaster-sub002/internal/filtersql"
	"github.com/aknob/AfpMaster-sub002/internal/joinrule"
)

// ChainConfig describes a self-referencing linked list of root-table rows:
// every row points at the next via NextColumn, forming either a ring that
// closes back on the origin or a nil-terminated list.
//
// Typical use is a group of related root rows - for example the bookings
// of one travelling party, each pointing at the next member's booking.
type ChainConfig struct {
	// Table is the self-referencing table; usually the record's main table.
	Table string

	// Columns optionally pre-supplies the column set.
	Columns []string

	// KeyColumn is the table's single-column primary key; NextColumn holds
	// the key of the following row.
	KeyColumn  string
	NextColumn string

	// Arena optionally restricts the candidate rows the walk may touch
	// (for example all rows sharing the origin's group column). Resolved
	// against the record like any join rule; nil loads the whole table.
	Arena joinrule.Node
}

// Chain builds a special selection walking a ChainConfig.
//
// Load selects the arena once, indexes it by key, and walks from the
// record's own key following NextColumn until the walk returns to the
// origin, hits a nil next-pointer, or leaves the arena. A visited set
// bounds the walk: revisiting any non-origin row is a CycleError, never a
// hang. The walked rows are adopted in walk order.
//
// Store persists the binding row by row through its unique key, so
// next-pointer edits (relinking the ring) commit like any keyed change.
func Chain(name string, cfg ChainConfig) SpecialSelection {
	return SpecialSelection{
		Load: func(ctx context.Context, r *Record, isNew bool) (*binding.Binding, error) {
			return chainLoad(ctx, r, name, cfg, isNew)
		},
		Store: func(ctx context.Context, r *Record, b *binding.Binding) error {
			return b.Store(ctx)
		},
	}
}

func chainLoad(ctx context.Context, r *Record, name string, cfg ChainConfig, isNew bool) (*binding.Binding, error) {
	cols, err := r.columnSet(ctx, cfg.Table, cfg.Columns)
	if err != nil {
		return nil, err
	}
	b := binding.New(r.exec, cfg.Table, cols,
		binding.WithUniqueKey(cfg.KeyColumn),
		binding.WithLogger(r.logger))

	if isNew {
		b.NewEmpty(false)
		return b, nil
	}

	// The arena filter may reference root columns; load the root first.
	if _, err := r.Selection(ctx, MainSelection); err != nil {
		return nil, err
	}

	arena, filter, err := chainArena(ctx, r, cfg, cols)
	if joinrule.IsUnresolved(err) {
		b.NewEmpty(false)
		return b, nil
	}
	if err != nil {
		return nil, err
	}

	ordered, err := walkChain(r.Key(), name, cfg, cols, arena)
	if err != nil {
		return nil, err
	}
	b.Adopt(ordered, filter)
	return b, nil
}

// chainArena selects the candidate rows the walk may touch.
func chainArena(ctx context.Context, r *Record, cfg ChainConfig, cols []string) ([][]any, *binding.Filter, error) {
	var filter *binding.Filter
	if cfg.Arena != nil {
		resolved, err := joinrule.Resolve(&joinrule.Rule{Table: cfg.Table, Filter: cfg.Arena}, r)
		if err != nil {
			return nil, nil, err
		}
		filter, err = filtersql.Compile(resolved)
		if err != nil {
			return nil, nil, err
		}
	}

	rows, err := r.exec.Select(ctx, cfg.Table, cols, filter, 0)
	if err != nil {
		return nil, nil, err
	}
	return rows, filter, nil
}

// walkChain orders the arena by following next-pointers from the origin.
func walkChain(origin any, name string, cfg ChainConfig, cols []string, arena [][]any) ([][]any, error) {
	ki := slices.Index(cols, cfg.KeyColumn)
	ni := slices.Index(cols, cfg.NextColumn)
	if ki < 0 || ni < 0 {
		return nil, fmt.Errorf("selection %s: chain columns %q/%q not in column set",
			name, cfg.KeyColumn, cfg.NextColumn)
	}

	byKey := make(map[any][]any, len(arena))
	for _, row := range arena {
		byKey[row[ki]] = row
	}

	var ordered [][]any
	visited := make(map[any]bool, len(arena))
	cur := origin
	for {
		row, inArena := byKey[cur]
		if !inArena {
			break // left the arena - treat like a terminator
		}
		if visited[cur] {
			return nil, &CycleError{Selection: name, Key: cur}
		}
		visited[cur] = true
		ordered = append(ordered, row)

		next := row[ni]
		if next == nil || next == cur {
			break
		}
		if next == origin {
			break // ring closed cleanly
		}
		cur = next
	}
	return ordered, nil
}
