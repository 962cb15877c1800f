package engine

import (
	"errors"
	"testing"

	"tabq/pipeline"
	"tabq/plan"
	"tabq/spec"
	"tabq/table"
)

func usersTable() *table.Table {
	t := table.New([]string{"name", "age", "city"})
	t.AddRow([]table.Value{table.StrVal("Alice"), table.IntVal(30), table.StrVal("NY")})
	t.AddRow([]table.Value{table.StrVal("Bob"), table.IntVal(25), table.StrVal("LA")})
	t.AddRow([]table.Value{table.StrVal("Charlie"), table.IntVal(35), table.StrVal("NY")})
	t.AddRow([]table.Value{table.StrVal("Diana"), table.IntVal(28), table.StrVal("SF")})
	t.AddRow([]table.Value{table.StrVal("Eve"), table.IntVal(22), table.StrVal("LA")})
	t.AddRow([]table.Value{table.StrVal("Frank"), table.IntVal(40), table.StrVal("NY")})
	return t
}

type buildFn func(p *pipeline.Pipeline) (*pipeline.Pipeline, error)

func runPipeline(t *testing.T, input *table.Table, steps ...buildFn) *table.Table {
	t.Helper()
	p := pipeline.New(input.Schema())
	var err error
	for _, step := range steps {
		p, err = step(p)
		if err != nil {
			t.Fatalf("build error: %v", err)
		}
	}
	compiled, err := plan.Compile(p)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	result, err := New().Run(compiled, input)
	if err != nil {
		t.Fatalf("exec error: %v", err)
	}
	return result
}

func namedExpr(t *testing.T, name, src string) spec.NamedExpression {
	t.Helper()
	e, err := spec.MakeNamedExpression(name, src)
	if err != nil {
		t.Fatalf("bad expression %q: %v", src, err)
	}
	return e
}

func TestExecuteFilter(t *testing.T) {
	result := runPipeline(t, usersTable(), func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
		return p.Filter("age > 25")
	})
	if len(result.Rows) != 4 {
		t.Errorf("expected 4 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Values[0].Str != "Alice" {
		t.Errorf("expected first row to be Alice")
	}
}

func TestExecuteSelect(t *testing.T) {
	result := runPipeline(t, usersTable(), func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
		return p.Select("city", "name")
	})
	if len(result.Columns) != 2 || result.Columns[0] != "city" || result.Columns[1] != "name" {
		t.Errorf("select must project in the given order, got %v", result.Columns)
	}
	if result.Rows[0].Values[0].Str != "NY" {
		t.Errorf("expected NY, got %s", result.Rows[0].Values[0].Str)
	}
}

func TestExecuteGroupedSummarize(t *testing.T) {
	result := runPipeline(t, usersTable(),
		func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) { return p.GroupBy("city") },
		func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
			return p.Summarize(namedExpr(t, "n", "count()"), namedExpr(t, "total", "sum(age)"))
		},
	)

	if len(result.Columns) != 3 || result.Columns[0] != "city" || result.Columns[1] != "n" || result.Columns[2] != "total" {
		t.Fatalf("unexpected columns %v", result.Columns)
	}
	// Groups preserve first-seen order: NY, LA, SF.
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(result.Rows))
	}
	if result.Rows[0].Values[0].Str != "NY" || result.Rows[0].Values[1].Int != 3 || result.Rows[0].Values[2].Int != 105 {
		t.Errorf("unexpected NY group: %v", result.Rows[0])
	}
	if result.Rows[1].Values[0].Str != "LA" || result.Rows[1].Values[2].Int != 47 {
		t.Errorf("unexpected LA group: %v", result.Rows[1])
	}
}

func TestExecuteUngroupedSummarize(t *testing.T) {
	result := runPipeline(t, usersTable(), func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
		return p.Summarize(namedExpr(t, "avg_age", "mean(age)"))
	})
	if len(result.Rows) != 1 {
		t.Fatalf("expected a single summary row, got %d", len(result.Rows))
	}
	if result.Rows[0].Values[0].Float != 30 {
		t.Errorf("expected mean 30, got %v", result.Rows[0].Values[0])
	}
}

func TestExecuteMutate(t *testing.T) {
	result := runPipeline(t, usersTable(), func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
		return p.Mutate(
			namedExpr(t, "age", "age + 1"),
			namedExpr(t, "shout", "upper(name)"),
		)
	})
	if len(result.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %v", result.Columns)
	}
	if result.Columns[1] != "age" {
		t.Errorf("overwritten column must keep its position, got %v", result.Columns)
	}
	if result.Rows[0].Values[1].Int != 31 {
		t.Errorf("expected age 31, got %d", result.Rows[0].Values[1].Int)
	}
	if result.Rows[0].Values[3].Str != "ALICE" {
		t.Errorf("expected ALICE, got %s", result.Rows[0].Values[3].Str)
	}
}

func TestExecuteArrange(t *testing.T) {
	result := runPipeline(t, usersTable(), func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
		return p.Arrange(
			spec.SortKey{Column: "city"},
			spec.SortKey{Column: "age", Dir: spec.Desc},
		)
	})
	// LA desc-by-age first: Bob(25), Eve(22).
	if result.Rows[0].Values[0].Str != "Bob" || result.Rows[1].Values[0].Str != "Eve" {
		t.Errorf("unexpected LA order: %s, %s", result.Rows[0].Values[0].Str, result.Rows[1].Values[0].Str)
	}
	if result.Rows[2].Values[0].Str != "Frank" {
		t.Errorf("expected Frank to lead NY, got %s", result.Rows[2].Values[0].Str)
	}
}

func TestExecuteArrangeNullsLast(t *testing.T) {
	in := table.New([]string{"v"})
	in.AddRow([]table.Value{table.Null()})
	in.AddRow([]table.Value{table.IntVal(2)})
	in.AddRow([]table.Value{table.IntVal(1)})

	result := runPipeline(t, in, func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
		return p.Arrange(spec.SortKey{Column: "v", Dir: spec.Desc})
	})
	if result.Rows[0].Values[0].Int != 2 || result.Rows[1].Values[0].Int != 1 {
		t.Errorf("unexpected order: %v", result)
	}
	if !result.Rows[2].Values[0].IsNull() {
		t.Error("null must sort last even when descending")
	}
}

func TestExecuteFullPipeline(t *testing.T) {
	result := runPipeline(t, usersTable(),
		func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) { return p.Filter("age >= 25") },
		func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) { return p.GroupBy("city") },
		func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
			return p.Summarize(namedExpr(t, "n", "count()"), namedExpr(t, "oldest", "max(age)"))
		},
		func(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
			return p.Arrange(spec.SortKey{Column: "oldest", Dir: spec.Desc})
		},
	)
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Values[0].Str != "NY" || result.Rows[0].Values[2].Int != 40 {
		t.Errorf("unexpected first row: %v", result.Rows[0])
	}
}

func TestExecuteStageErrorCarriesIndex(t *testing.T) {
	// A plan compiled against one schema, run against a table missing a
	// column, fails inside the engine with the stage index attached.
	schema := spec.Schema{{Name: "a", Type: spec.TypeInt}, {Name: "b", Type: spec.TypeInt}}
	p, err := pipeline.New(schema).Filter("a > 0")
	if err != nil {
		t.Fatal(err)
	}
	p, err = p.Select("b")
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := plan.Compile(p)
	if err != nil {
		t.Fatal(err)
	}

	in := table.New([]string{"a"})
	in.AddRow([]table.Value{table.IntVal(1)})

	_, err = New().Run(compiled, in)
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("expected *engine.Error, got %v", err)
	}
	if engErr.Stage != 1 || engErr.Op != "select" {
		t.Errorf("unexpected error location: %+v", engErr)
	}
}

func TestExecuteImplementsPlanEngine(t *testing.T) {
	var eng plan.Engine = New()
	in := usersTable()

	p, err := pipeline.New(in.Schema()).Select("name")
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := plan.Compile(p)
	if err != nil {
		t.Fatal(err)
	}
	out, err := eng.Execute(compiled, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Schema()) != 1 || out.Schema()[0].Name != "name" {
		t.Errorf("unexpected result schema %v", out.Schema())
	}
}

func TestAggregateInRowContextFails(t *testing.T) {
	in := usersTable()
	p, err := pipeline.New(in.Schema()).Mutate(namedExpr(t, "bad", "sum(age)"))
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := plan.Compile(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New().Run(compiled, in); err == nil {
		t.Fatal("expected error for aggregate outside summarize")
	}
}
