package record

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
	"github.com/aknob/AfpMaster-sub002/internal/filtersql"
	"github.com/aknob/AfpMaster-sub002/internal/joinrule"
)

// ColumnFinder discovers a table's column set from the store. The SQLite
// store implements it; executors that cannot discover columns force
// definitions to pre-supply them.
type ColumnFinder interface {
	Columns(ctx context.Context, table string) ([]string, error)
}

// Hook is a pre-store extension point for entity-specific rules. Hooks run
// before anything is written; an error aborts the whole cascade.
type Hook func(ctx context.Context, r *Record) error

// Record is one live aggregate: a root row plus its dependent selections,
// loaded lazily and committed with Store.
//
// NOT thread-safe: a record belongs to a single caller.
type Record struct {
	def    *Definition
	exec   binding.Executor
	logger *slog.Logger

	keyValue any
	isNew    bool

	bindings map[string]*binding.Binding
	preStore []Hook
}

// Option configures a Record.
type Option func(*Record)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Record) {
		r.logger = logger
	}
}

// WithPreStore appends pre-store hooks, run in order at the start of every
// Store.
func WithPreStore(hooks ...Hook) Option {
	return func(r *Record) {
		r.preStore = append(r.preStore, hooks...)
	}
}

// New creates a record with no assigned key. All bindings start empty and
// are filled by the caller; the first Store assigns the main key.
func New(exec binding.Executor, def *Definition, opts ...Option) *Record {
	r := &Record{
		def:      def,
		exec:     exec,
		logger:   slog.Default(),
		isNew:    true,
		bindings: make(map[string]*binding.Binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a record bound to an existing main key. Bindings load
// lazily on first access.
func Open(exec binding.Executor, def *Definition, key any, opts ...Option) *Record {
	r := New(exec, def, opts...)
	r.isNew = false
	r.keyValue = key
	return r
}

// Name returns the entity name.
func (r *Record) Name() string { return r.def.Name }

// Key returns the main key value, or nil for a record never stored.
func (r *Record) Key() any { return r.keyValue }

// IsNew reports whether the root row has no assigned key yet.
func (r *Record) IsNew() bool { return r.isNew }

// Selection returns the binding for name, constructing it on first access:
// the main selection loads by key (or starts empty for a new record),
// dependents resolve their join rule and load the resulting filter. A rule
// that cannot resolve yet - typically because the main key is unassigned -
// yields an empty binding instead of an error.
func (r *Record) Selection(ctx context.Context, name string) (*binding.Binding, error) {
	if name == "" {
		name = MainSelection
	}
	if b, ok := r.bindings[name]; ok {
		return b, nil
	}

	var b *binding.Binding
	var err error
	switch {
	case name == MainSelection:
		b, err = r.loadMain(ctx)
	case r.def.Special != nil && r.def.Special[name].Load != nil:
		b, err = r.def.Special[name].Load(ctx, r, r.isNew)
	case r.def.Rules[name] != nil:
		b, err = r.loadDependent(ctx, name, r.def.Rules[name])
	default:
		return nil, &UnknownSelectionError{Record: r.def.Name, Selection: name}
	}
	if err != nil {
		return nil, err
	}

	r.bindings[name] = b
	return b, nil
}

func (r *Record) loadMain(ctx context.Context) (*binding.Binding, error) {
	cols, err := r.columnSet(ctx, r.def.Table, r.def.Columns)
	if err != nil {
		return nil, err
	}

	b := binding.New(r.exec, r.def.Table, cols,
		binding.WithUniqueKey(r.def.KeyColumn),
		binding.WithFormulas(r.def.Formulas[MainSelection]...),
		binding.WithLogger(r.logger))

	if r.isNew {
		b.NewEmpty(false)
		return b, nil
	}
	if err := b.Load(ctx, binding.KeyFilter(r.def.KeyColumn, r.keyValue), 0); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Record) loadDependent(ctx context.Context, name string, rule *joinrule.Rule) (*binding.Binding, error) {
	cols, err := r.columnSet(ctx, rule.Table, rule.Columns)
	if err != nil {
		return nil, err
	}

	opts := []binding.Option{binding.WithLogger(r.logger)}
	if rule.UniqueKey != "" {
		opts = append(opts, binding.WithUniqueKey(rule.UniqueKey))
	}
	if formulas := r.def.Formulas[name]; len(formulas) > 0 {
		opts = append(opts, binding.WithFormulas(formulas...))
	}
	b := binding.New(r.exec, rule.Table, cols, opts...)

	if r.isNew {
		b.NewEmpty(false)
		return b, nil
	}

	// Rules may reference non-key columns of the root; the root row must be
	// loaded before resolution can answer for them.
	if _, err := r.Selection(ctx, MainSelection); err != nil {
		return nil, err
	}

	resolved, err := joinrule.Resolve(rule, r)
	if joinrule.IsUnresolved(err) {
		// Selection not yet loadable - start it empty.
		b.NewEmpty(false)
		return b, nil
	}
	if err != nil {
		return nil, err
	}

	filter, err := filtersql.Compile(resolved)
	if err != nil {
		return nil, err
	}
	if err := b.Load(ctx, filter, 0); err != nil {
		return nil, err
	}
	return b, nil
}

// columnSet returns the pre-supplied columns or discovers them from the
// executor.
func (r *Record) columnSet(ctx context.Context, table string, supplied []string) ([]string, error) {
	if len(supplied) > 0 {
		return supplied, nil
	}
	finder, ok := r.exec.(ColumnFinder)
	if !ok {
		return nil, fmt.Errorf("record %s: no column set for %s and executor cannot discover one",
			r.def.Name, table)
	}
	return finder.Columns(ctx, table)
}

// Value implements joinrule.Source: it answers cross-selection references
// with already-known values. The main key of a never-stored record is
// reported as not yet known, which makes rules referencing it resolve to
// "no selection possible".
func (r *Record) Value(selection, column string) (any, bool, error) {
	if selection == MainSelection || selection == r.def.Name {
		if column == r.def.KeyColumn {
			if r.isNew || r.keyValue == nil {
				return nil, false, nil
			}
			return r.keyValue, true, nil
		}
		selection = MainSelection
	}

	b, ok := r.bindings[selection]
	if !ok {
		return nil, false, nil // only already-loaded data resolves
	}
	v, ok := b.Value(column, 0)
	return v, ok, nil
}

// Get returns the first-row value of a column. selection "" means main.
func (r *Record) Get(ctx context.Context, selection, column string) (any, error) {
	b, err := r.Selection(ctx, selection)
	if err != nil {
		return nil, err
	}
	v, _ := b.Value(column, 0)
	return v, nil
}

// Set writes a first-row value of a column. selection "" means main.
func (r *Record) Set(ctx context.Context, selection, column string, value any) error {
	return r.SetAt(ctx, selection, column, value, 0)
}

// SetAt writes a value at a row index, appending rows as needed.
func (r *Record) SetAt(ctx context.Context, selection, column string, value any, rowIndex int) error {
	b, err := r.Selection(ctx, selection)
	if err != nil {
		return err
	}
	return b.Set(column, value, rowIndex)
}

// Rows returns every row of a selection. selection "" means main.
func (r *Record) Rows(ctx context.Context, selection string) ([][]any, error) {
	b, err := r.Selection(ctx, selection)
	if err != nil {
		return nil, err
	}
	return b.Get(-1), nil
}

// HasChanged reports whether any already-loaded binding has pending or
// just-stored changes touching the given columns (any change when none
// are named).
func (r *Record) HasChanged(columns ...string) bool {
	for _, b := range r.bindings {
		if b.HasChanged(columns...) {
			return true
		}
	}
	return false
}

// Store commits the aggregate: pre-store hooks, the main binding, key
// propagation for a new record, then two passes over the changed
// dependents with back-propagation of their generated values.
//
// The cascade is not atomic. On error the remaining steps are skipped and
// already-stored bindings stay committed; re-running Store is the intended
// recovery.
func (r *Record) Store(ctx context.Context) error {
	log := r.logger.With("record", r.def.Name, "commit", uuid.NewString())

	for _, hook := range r.preStore {
		if err := hook(ctx, r); err != nil {
			return fmt.Errorf("record %s: pre-store hook: %w", r.def.Name, err)
		}
	}

	main, err := r.Selection(ctx, MainSelection)
	if err != nil {
		return err
	}

	wasNew := r.isNew
	if err := main.Store(ctx); err != nil {
		return err
	}

	if wasNew {
		if err := r.adoptGeneratedKey(main); err != nil {
			return err
		}
		log.Info("assigned main key", "key", r.keyValue)
		if err := r.propagateKey(); err != nil {
			return err
		}
	}

	// Two dependent passes: the second picks up bindings whose only change
	// was produced by key propagation or by another dependent's store.
	for pass := 1; pass <= 2; pass++ {
		if err := r.storeDependents(ctx, main, log, pass); err != nil {
			return err
		}
	}

	// Back-propagation edits the main binding after it was stored; flush
	// them so the root row matches the store.
	if len(main.Changes()) > 0 {
		if err := main.Store(ctx); err != nil {
			return err
		}
	}

	log.Info("stored record", "key", r.keyValue, "selections", len(r.bindings))
	return nil
}

// adoptGeneratedKey records the key assigned by the main insert.
func (r *Record) adoptGeneratedKey(main *binding.Binding) error {
	if k := main.LastGeneratedKey(); k != 0 {
		r.keyValue = k
	} else if v, ok := main.Value(r.def.KeyColumn, 0); ok && v != nil {
		r.keyValue = v
	} else {
		return fmt.Errorf("record %s: store assigned no main key", r.def.Name)
	}
	r.isNew = false
	return nil
}

// propagateKey overwrites the referencing column of every loaded dependent
// whose rule references the main key, on every row, sign-flipped when the
// rule's reference says so.
func (r *Record) propagateKey() error {
	for name, rule := range r.def.Rules {
		b, loaded := r.bindings[name]
		if !loaded {
			continue
		}
		clause, ok := joinrule.References(rule, MainSelection, r.def.KeyColumn)
		if !ok {
			continue
		}

		value := r.keyValue
		negate := false
		switch ref := clause.RHS.(type) {
		case joinrule.Ref:
			negate = ref.Negate
		case *joinrule.Ref:
			negate = ref.Negate
		}
		if negate {
			if k, isInt := value.(int64); isInt {
				value = -k
			}
		}
		for i := 0; i < b.Len(); i++ {
			if err := b.Set(clause.Column, value, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// storeDependents stores every loaded non-main binding with pending
// changes, in name order for reproducible cascades, back-propagating
// generated values into the root where the rule declares it.
func (r *Record) storeDependents(ctx context.Context, main *binding.Binding, log *slog.Logger, pass int) error {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		if name != MainSelection {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		b := r.bindings[name]

		if sp, ok := r.def.Special[name]; ok && sp.Store != nil {
			if len(b.Changes()) == 0 {
				continue
			}
			if err := sp.Store(ctx, r, b); err != nil {
				return err
			}
			log.Debug("stored special selection", "selection", name, "pass", pass)
			continue
		}

		if len(b.Changes()) == 0 {
			continue
		}
		if err := b.Store(ctx); err != nil {
			return err
		}
		log.Debug("stored selection", "selection", name, "pass", pass)

		if err := r.backpropagate(name, b, main); err != nil {
			return err
		}
	}
	return nil
}

// backpropagate copies a dependent's store-generated value back into the
// root when the rule declares a back-propagation column and the generated
// key actually belongs to one of the dependent's rows.
func (r *Record) backpropagate(name string, b *binding.Binding, main *binding.Binding) error {
	rule := r.def.Rules[name]
	if rule == nil || rule.BackpropColumn == "" || rule.UniqueKey == "" {
		return nil
	}
	generated := b.LastGeneratedKey()
	if generated == 0 {
		return nil
	}

	for i := 0; i < b.Len(); i++ {
		key, ok := b.Value(rule.UniqueKey, i)
		if !ok || key != generated {
			continue
		}
		value, ok := b.Value(rule.BackpropColumn, i)
		if !ok {
			return fmt.Errorf("record %s: selection %s has no column %q to back-propagate",
				r.def.Name, name, rule.BackpropColumn)
		}
		target := rule.BackpropTarget
		if target == "" {
			target = r.def.KeyColumn
		}
		return main.Set(target, value, 0)
	}
	return nil
}
