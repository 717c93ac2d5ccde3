package binding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake executor
// =============================================================================

type execCall struct {
	Op      string
	Table   string
	Columns []string
	Values  []any
	Rows    [][]any
	Filter  *Filter
}

// fakeExec records every statement the binding issues and serves canned
// select results, so tests can assert on exactly what would hit the store.
type fakeExec struct {
	selects [][][]any // queued Select results, consumed front to back
	calls   []execCall
	nextKey int64
	failOp  string // op name that should fail, "" for none
}

func (f *fakeExec) fail(op string) error {
	if f.failOp == op {
		return fmt.Errorf("forced %s failure", op)
	}
	return nil
}

func (f *fakeExec) Select(ctx context.Context, table string, columns []string, filter *Filter, limit int) ([][]any, error) {
	f.calls = append(f.calls, execCall{Op: "select", Table: table, Columns: columns, Filter: filter})
	if err := f.fail("select"); err != nil {
		return nil, err
	}
	if len(f.selects) == 0 {
		return nil, nil
	}
	rows := f.selects[0]
	f.selects = f.selects[1:]
	return rows, nil
}

func (f *fakeExec) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.calls = append(f.calls, execCall{Op: "insert", Table: table, Columns: columns, Rows: rows})
	if err := f.fail("insert"); err != nil {
		return 0, err
	}
	f.nextKey++
	return f.nextKey, nil
}

func (f *fakeExec) Update(ctx context.Context, table string, columns []string, values []any, filter *Filter) error {
	f.calls = append(f.calls, execCall{Op: "update", Table: table, Columns: columns, Values: values, Filter: filter})
	return f.fail("update")
}

func (f *fakeExec) Delete(ctx context.Context, table string, filter *Filter) error {
	f.calls = append(f.calls, execCall{Op: "delete", Table: table, Filter: filter})
	return f.fail("delete")
}

func (f *fakeExec) Execute(ctx context.Context, statement string, args ...any) ([][]any, error) {
	f.calls = append(f.calls, execCall{Op: "execute"})
	return nil, f.fail("execute")
}

func (f *fakeExec) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

var custCols = []string{"id", "name", "city"}

func loadedBinding(t *testing.T, exec *fakeExec, rows [][]any, opts ...Option) *Binding {
	t.Helper()
	exec.selects = append([][][]any{rows}, exec.selects...)
	b := New(exec, "customers", custCols, opts...)
	require.NoError(t, b.Load(context.Background(), KeyFilter("city", "Oslo"), 0))
	exec.calls = nil
	return b
}

// =============================================================================
// Load / NewEmpty
// =============================================================================

func TestBinding_Load_RecordsFilter(t *testing.T) {
	exec := &fakeExec{selects: [][][]any{{{int64(1), "Ada", "Oslo"}}}}
	b := New(exec, "customers", custCols, WithUniqueKey("id"))

	f := KeyFilter("city", "Oslo")
	require.NoError(t, b.Load(context.Background(), f, 0))

	assert.Equal(t, 1, b.Len())
	assert.Same(t, f, b.Filter())
	assert.False(t, b.IsNew())
	assert.Empty(t, b.Changes(), "a plain load records no changes")
}

func TestBinding_Load_FailureLeavesBindingEmpty(t *testing.T) {
	exec := &fakeExec{failOp: "select"}
	b := New(exec, "customers", custCols)

	err := b.Load(context.Background(), KeyFilter("city", "Oslo"), 0)
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Filter(), "a failed load must not keep the filter")
}

func TestBinding_NewEmpty_StartsWithOneBlankRow(t *testing.T) {
	b := New(&fakeExec{}, "customers", custCols)
	b.NewEmpty(false)

	assert.Equal(t, 1, b.Len())
	assert.True(t, b.IsNew())
	require.Len(t, b.Changes(), 1)
	assert.IsType(t, Append{}, b.Changes()[0])
}

func TestBinding_NewEmpty_Blank(t *testing.T) {
	b := New(&fakeExec{}, "customers", custCols)
	b.NewEmpty(true)

	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Changes())
}

// =============================================================================
// Set / change log
// =============================================================================

func TestBinding_Set_MergesIntoOneReplace(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}})

	require.NoError(t, b.Set("name", "Grace", 0))
	require.NoError(t, b.Set("name", "Edsger", 0))
	require.NoError(t, b.Set("city", "Bergen", 0))

	log := b.Changes()
	require.Len(t, log, 1, "edits of one row merge into one entry")
	r := log[0].(Replace)
	assert.Equal(t, "Ada", r.Original["name"], "original keeps the pre-edit value")
	assert.Equal(t, "Edsger", r.Updated["name"])
	assert.Equal(t, "Oslo", r.Original["city"])
	assert.Equal(t, "Bergen", r.Updated["city"])
}

func TestBinding_Set_AppendsBlankRowsWhenNeeded(t *testing.T) {
	b := New(&fakeExec{}, "customers", custCols)
	b.NewEmpty(true)

	require.NoError(t, b.Set("name", "Ada", 2))

	assert.Equal(t, 3, b.Len())
	v, ok := b.Value("name", 2)
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
}

func TestBinding_Set_UnknownColumn(t *testing.T) {
	b := New(&fakeExec{}, "customers", custCols)
	b.NewEmpty(false)

	err := b.Set("nope", 1, 0)
	require.Error(t, err)
	assert.True(t, IsArityError(err))
}

func TestBinding_AppendRow_WrongArity(t *testing.T) {
	b := New(&fakeExec{}, "customers", custCols)
	err := b.AppendRow([]any{int64(1), "Ada"})
	require.Error(t, err)
	assert.True(t, IsArityError(err))
}

func TestBinding_InsertRow_ShiftsPendingReplaces(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{
		{int64(1), "Ada", "Oslo"},
		{int64(2), "Grace", "Oslo"},
	})

	require.NoError(t, b.Set("name", "Grete", 1))
	require.NoError(t, b.InsertRow(0, []any{nil, "Linus", "Oslo"}))

	var replaces []Replace
	for _, c := range b.Changes() {
		if r, ok := c.(Replace); ok {
			replaces = append(replaces, r)
		}
	}
	require.Len(t, replaces, 1)
	assert.Equal(t, 2, replaces[0].At, "pending edit follows its row down")
}

func TestBinding_DeleteRow_DropsReplaceOfDeletedRow(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{
		{int64(1), "Ada", "Oslo"},
		{int64(2), "Grace", "Oslo"},
	})

	require.NoError(t, b.Set("name", "Gone", 0))
	require.NoError(t, b.DeleteRow(0))

	for _, c := range b.Changes() {
		_, isReplace := c.(Replace)
		assert.False(t, isReplace, "the Delete entry supersedes edits of the deleted row")
	}
	require.Len(t, b.Changes(), 1)
	d := b.Changes()[0].(Delete)
	assert.Equal(t, []any{int64(1), "Gone", "Oslo"}, d.Original)
}

func TestBinding_HasChanged_ByColumn(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}})

	require.NoError(t, b.Set("name", "Grace", 0))

	assert.True(t, b.HasChanged())
	assert.True(t, b.HasChanged("name"))
	assert.False(t, b.HasChanged("city"))
	assert.True(t, b.HasChanged("city", "name"), "any named column suffices")
}

// =============================================================================
// Store - keyed
// =============================================================================

func TestBinding_Store_NoChangesIssuesNoStatements(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}}, WithUniqueKey("id"))

	require.NoError(t, b.Store(context.Background()))
	assert.Empty(t, exec.calls, "an unchanged binding touches the store not at all")
}

func TestBinding_Store_KeyedInsertStampsGeneratedKey(t *testing.T) {
	exec := &fakeExec{nextKey: 41}
	b := New(exec, "customers", custCols, WithUniqueKey("id"))
	b.NewEmpty(false)
	require.NoError(t, b.Set("name", "Ada", 0))

	require.NoError(t, b.Store(context.Background()))

	require.Equal(t, []string{"insert"}, exec.ops())
	assert.Equal(t, []string{"name", "city"}, exec.calls[0].Columns, "the key column is never inserted explicitly")
	assert.Equal(t, int64(42), b.LastGeneratedKey())
	v, ok := b.Value("id", 0)
	require.True(t, ok)
	assert.Equal(t, int64(42), v, "the generated key is stamped back onto the row")
	assert.False(t, b.IsNew())
}

func TestBinding_Store_KeyedUpdateTargetsKey(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(7), "Ada", "Oslo"}}, WithUniqueKey("id"))

	require.NoError(t, b.Set("city", "Bergen", 0))
	require.NoError(t, b.Store(context.Background()))

	require.Equal(t, []string{"update"}, exec.ops())
	upd := exec.calls[0]
	assert.Equal(t, "id = ?", upd.Filter.Where)
	assert.Equal(t, []any{int64(7)}, upd.Filter.Args)
	assert.Equal(t, []string{"name", "city"}, upd.Columns)
	assert.Equal(t, []any{"Ada", "Bergen"}, upd.Values)
}

func TestBinding_Store_KeyedDeleteByKey(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{
		{int64(1), "Ada", "Oslo"},
		{int64(2), "Grace", "Oslo"},
	}, WithUniqueKey("id"))

	require.NoError(t, b.DeleteRow(1))
	require.NoError(t, b.Store(context.Background()))

	// Keyed stores walk every row, so the surviving row is updated and the
	// removed one deleted by its key.
	require.Equal(t, []string{"update", "delete"}, exec.ops())
	for _, c := range exec.calls {
		if c.Op == "delete" {
			assert.Equal(t, "id = ?", c.Filter.Where)
			assert.Equal(t, []any{int64(2)}, c.Filter.Args)
		}
	}
}

func TestBinding_Store_EmptiedBindingDeletesByLoadFilter(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{
		{int64(1), "Ada", "Oslo"},
		{int64(2), "Grace", "Oslo"},
	}, WithUniqueKey("id"))

	require.NoError(t, b.DeleteRow(1))
	require.NoError(t, b.DeleteRow(0))
	require.NoError(t, b.Store(context.Background()))

	require.Equal(t, []string{"delete"}, exec.ops())
	assert.Equal(t, "city = ?", exec.calls[0].Filter.Where, "a fully emptied binding is cleared with its load filter")
	assert.Equal(t, []any{"Oslo"}, exec.calls[0].Filter.Args)
}

func TestBinding_Store_PriorLogAnswersHasChanged(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}}, WithUniqueKey("id"))

	require.NoError(t, b.Set("city", "Bergen", 0))
	require.NoError(t, b.Store(context.Background()))

	assert.Empty(t, b.Changes())
	assert.True(t, b.HasChanged("city"), "the prior log keeps answering after a store")
	assert.False(t, b.HasChanged("name"))
}

func TestBinding_Store_FailurePropagates(t *testing.T) {
	exec := &fakeExec{failOp: "update"}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}}, WithUniqueKey("id"))

	require.NoError(t, b.Set("city", "Bergen", 0))
	err := b.Store(context.Background())
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "customers", qe.Table)
	assert.NotEmpty(t, b.Changes(), "a failed store keeps the change log for retry")
}

// =============================================================================
// Store - keyless
// =============================================================================

func TestBinding_Store_KeylessDeletesByOriginalFilter(t *testing.T) {
	exec := &fakeExec{selects: [][][]any{
		{{int64(1), "Ada", "Bergen"}},
		{{int64(1), "Ada", "Trondheim"}},
	}}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}})

	// Changing the very column the filter selects on must not change what
	// the delete targets.
	require.NoError(t, b.Set("city", "Bergen", 0))
	require.NoError(t, b.Store(context.Background()))

	require.Equal(t, []string{"delete", "insert", "select"}, exec.ops())
	assert.Equal(t, []any{"Oslo"}, exec.calls[0].Filter.Args, "the delete targets the original load filter")
	assert.Equal(t, []any{"Oslo"}, exec.calls[2].Filter.Args, "the reload also uses the original filter")

	// A second mutate-and-store cycle still replaces against the original
	// filter, never one derived from the current data.
	require.NoError(t, b.Set("city", "Trondheim", 0))
	require.NoError(t, b.Store(context.Background()))

	require.Equal(t, []string{"delete", "insert", "select", "delete", "insert", "select"}, exec.ops())
	assert.Equal(t, []any{"Oslo"}, exec.calls[3].Filter.Args, "the second delete keeps targeting the original filter")
	assert.Equal(t, []any{"Oslo"}, exec.calls[5].Filter.Args)
}

func TestBinding_Store_KeylessNewSkipsDelete(t *testing.T) {
	exec := &fakeExec{}
	b := New(exec, "customers", custCols)
	b.NewEmpty(false)
	require.NoError(t, b.Set("name", "Ada", 0))

	require.NoError(t, b.Store(context.Background()))

	for _, op := range exec.ops() {
		assert.NotEqual(t, "delete", op, "a never-persisted binding has nothing to delete")
	}
}

// =============================================================================
// Afterburner formulas
// =============================================================================

func TestBinding_Store_FormulaTriggersOneFollowUpStore(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}},
		WithUniqueKey("id"),
		WithFormulas(Formula{Column: "name", Expr: Concat{Parts: []Expr{Column{Name: "name"}, Literal{Value: " Lovelace"}}}}),
	)

	require.NoError(t, b.Set("city", "Bergen", 0))
	require.NoError(t, b.Store(context.Background()))

	// First store updates the edited row, the formula edit forces exactly
	// one more update.
	assert.Equal(t, []string{"update", "update"}, exec.ops())
	v, _ := b.Value("name", 0)
	assert.Equal(t, "Ada Lovelace", v)
}

func TestBinding_Store_FormulaWithStableValueStoresOnce(t *testing.T) {
	exec := &fakeExec{}
	b := loadedBinding(t, exec, [][]any{{int64(1), "Ada", "Oslo"}},
		WithUniqueKey("id"),
		WithFormulas(Formula{Column: "name", Expr: Column{Name: "name"}}),
	)

	require.NoError(t, b.Set("city", "Bergen", 0))
	require.NoError(t, b.Store(context.Background()))

	assert.Equal(t, []string{"update"}, exec.ops(), "an already-satisfied formula issues no second store")
}

func TestEval_AddCoercesIntegers(t *testing.T) {
	cols := []string{"a", "b"}
	row := []any{int64(2), 3}

	v, err := eval(Add{Terms: []Expr{Column{Name: "a"}, Column{Name: "b"}, Literal{Value: int64(5)}}}, cols, row)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}
