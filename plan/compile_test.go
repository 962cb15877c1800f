package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabq/pipeline"
	"tabq/spec"
	"tabq/token"
)

func sourceSchema() spec.Schema {
	return spec.Schema{
		{Name: "name", Type: spec.TypeString},
		{Name: "age", Type: spec.TypeInt},
		{Name: "city", Type: spec.TypeString},
	}
}

func expr(t *testing.T, name, src string) spec.NamedExpression {
	t.Helper()
	e, err := spec.MakeNamedExpression(name, src)
	require.NoError(t, err)
	return e
}

func TestCompileProjectsGroupedSummarize(t *testing.T) {
	schema := spec.Schema{
		{Name: "g1", Type: spec.TypeString},
		{Name: "g2", Type: spec.TypeString},
		{Name: "v", Type: spec.TypeInt},
	}
	p, err := pipeline.New(schema).GroupBy("g1", "g2")
	require.NoError(t, err)
	p, err = p.Summarize(expr(t, "m", "sum(v)"))
	require.NoError(t, err)

	compiled, err := Compile(p)
	require.NoError(t, err)

	// Grouping columns first, then result names, in declared order.
	assert.Equal(t, []spec.ColumnName{"g1", "g2", "m"}, compiled.Schema.Names())
	assert.Equal(t, spec.TypeString, compiled.Schema[0].Type)
	assert.Equal(t, spec.TypeUnknown, compiled.Schema[2].Type)
}

func TestCompileUngroupedSummarize(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).Summarize(expr(t, "n", "count()"))
	require.NoError(t, err)

	compiled, err := Compile(p)
	require.NoError(t, err)
	assert.Equal(t, []spec.ColumnName{"n"}, compiled.Schema.Names())
}

func TestCompileFailsFastWithStageIndex(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).Filter("age > 10")
	require.NoError(t, err)
	p, err = p.GroupBy("city")
	require.NoError(t, err)
	p, err = p.Select("city", "missing") // stage index 2
	require.NoError(t, err)
	p, err = p.Filter("city == \"NY\"")
	require.NoError(t, err)
	p, err = p.Arrange(spec.SortKey{Column: "city"})
	require.NoError(t, err)

	compiled, err := Compile(p)
	assert.Nil(t, compiled)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Stage)
	assert.Equal(t, "select", ce.Op)
	assert.Equal(t, "missing", ce.Name)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestCompileChecksExpressionRefs(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).Filter("salary > 100")
	require.NoError(t, err)

	_, err = Compile(p)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Stage)
	assert.Equal(t, "salary", ce.Name)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestCompileAllowsFunctionHeads(t *testing.T) {
	// upper is a call head, not a column reference.
	p, err := pipeline.New(sourceSchema()).Filter(`upper(city) == "NY"`)
	require.NoError(t, err)

	_, err = Compile(p)
	assert.NoError(t, err)
}

func TestCompileRefsResolveAgainstProjectedSchema(t *testing.T) {
	// After summarize, the original columns are gone; a later filter can
	// only mention the projected ones.
	p, err := pipeline.New(sourceSchema()).GroupBy("city")
	require.NoError(t, err)
	p, err = p.Summarize(expr(t, "n", "count()"))
	require.NoError(t, err)
	p, err = p.Filter("age > 10")
	require.NoError(t, err)

	_, err = Compile(p)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Stage)
	assert.Equal(t, "age", ce.Name)
}

func TestCompileMutateOverwriteKeepsPosition(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).Mutate(
		expr(t, "age", "age + 1"),
		expr(t, "is_adult", "age >= 18"),
	)
	require.NoError(t, err)

	compiled, err := Compile(p)
	require.NoError(t, err)
	assert.Equal(t, []spec.ColumnName{"name", "age", "city", "is_adult"}, compiled.Schema.Names())
	assert.Equal(t, spec.TypeUnknown, compiled.Schema[1].Type)
}

func TestCompileSelectCannotDropGroupingColumn(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).GroupBy("city")
	require.NoError(t, err)
	p, err = p.Select("name", "age")
	require.NoError(t, err)

	_, err = Compile(p)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "city", ce.Name)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCompileSummarizeResultShadowsGrouping(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).GroupBy("city")
	require.NoError(t, err)
	p, err = p.Summarize(expr(t, "city", "count()"))
	require.NoError(t, err)

	_, err = Compile(p)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCompileMutateCannotTouchGroupingColumn(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).GroupBy("city")
	require.NoError(t, err)
	p, err = p.Mutate(expr(t, "city", `upper(city)`))
	require.NoError(t, err)

	_, err = Compile(p)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCompileMalformedExpression(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).Filter(`age > "unterminated`)
	require.NoError(t, err)

	_, err = Compile(p)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestCompileUngroupClearsGrouping(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).GroupBy("city")
	require.NoError(t, err)
	p = p.Ungroup()
	p, err = p.Summarize(expr(t, "n", "count()"))
	require.NoError(t, err)

	compiled, err := Compile(p)
	require.NoError(t, err)
	// No grouping survives the ungroup: summarize projects only results.
	assert.Equal(t, []spec.ColumnName{"n"}, compiled.Schema.Names())
}

func TestCompileArrangeDirections(t *testing.T) {
	p, err := pipeline.New(sourceSchema()).Arrange(
		spec.SortKey{Column: "city"},
		spec.SortKey{Column: "age", Dir: spec.Desc},
	)
	require.NoError(t, err)

	compiled, err := Compile(p)
	require.NoError(t, err)
	require.Len(t, compiled.Stages, 1)
	assert.Equal(t, []KeyDesc{
		{Column: "city", Dir: "asc"},
		{Column: "age", Dir: "desc"},
	}, compiled.Stages[0].Keys)
}
