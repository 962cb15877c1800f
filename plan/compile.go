package plan

import (
	"fmt"

	"tabq/pipeline"
	"tabq/spec"
	"tabq/token"
)

// compiler threads the running projected schema and active grouping through
// the stage walk.
type compiler struct {
	schema   spec.Schema
	grouping []spec.ColumnName
}

// Compile validates p stage by stage against its declared source schema and
// emits the plan. Validation order is stage order; the first failure halts
// compilation and no plan is emitted.
func Compile(p *pipeline.Pipeline) (*Plan, error) {
	c := &compiler{schema: p.Source.Clone()}
	out := &Plan{Stages: make([]StageDesc, 0, len(p.Stages))}

	for i, stage := range p.Stages {
		desc, err := c.compileStage(i, stage)
		if err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, desc)
	}
	out.Schema = c.schema
	return out, nil
}

func (c *compiler) compileStage(idx int, stage pipeline.Stage) (StageDesc, error) {
	switch s := stage.(type) {
	case *pipeline.GroupBy:
		return c.compileGroupBy(idx, s)
	case *pipeline.Summarize:
		return c.compileSummarize(idx, s)
	case *pipeline.Select:
		return c.compileSelect(idx, s)
	case *pipeline.Mutate:
		return c.compileMutate(idx, s)
	case *pipeline.Filter:
		return c.compileFilter(idx, s)
	case *pipeline.Arrange:
		return c.compileArrange(idx, s)
	case *pipeline.Ungroup:
		c.grouping = nil
		return StageDesc{Op: s.Op()}, nil
	default:
		return StageDesc{}, fmt.Errorf("unknown stage type %T", stage)
	}
}

func (c *compiler) compileGroupBy(idx int, s *pipeline.GroupBy) (StageDesc, error) {
	for _, col := range s.Columns {
		if !c.schema.Has(col) {
			return StageDesc{}, &CompileError{Stage: idx, Op: s.Op(), Name: string(col), Err: ErrUnknownColumn}
		}
	}
	c.grouping = s.Columns
	return StageDesc{Op: s.Op(), Columns: colNames(s.Columns)}, nil
}

func (c *compiler) compileSummarize(idx int, s *pipeline.Summarize) (StageDesc, error) {
	for _, e := range s.Exprs {
		if err := c.checkExprRefs(idx, s.Op(), e.Expr); err != nil {
			return StageDesc{}, err
		}
	}

	// Projected schema: grouping columns first, then result names, both in
	// declared order. A result name shadowing a grouping column would make
	// the projection ambiguous.
	next := make(spec.Schema, 0, len(c.grouping)+len(s.Exprs))
	for _, g := range c.grouping {
		next = append(next, c.schema[c.schema.Index(g)])
	}
	for _, e := range s.Exprs {
		if next.Has(e.Name) {
			return StageDesc{}, &CompileError{Stage: idx, Op: s.Op(), Name: string(e.Name), Err: ErrSchemaMismatch}
		}
		next = append(next, spec.Column{Name: e.Name, Type: spec.TypeUnknown})
	}
	c.schema = next
	c.grouping = nil
	return StageDesc{Op: s.Op(), Exprs: exprDescs(s.Exprs)}, nil
}

func (c *compiler) compileSelect(idx int, s *pipeline.Select) (StageDesc, error) {
	next := make(spec.Schema, 0, len(s.Columns))
	for _, col := range s.Columns {
		j := c.schema.Index(col)
		if j < 0 {
			return StageDesc{}, &CompileError{Stage: idx, Op: s.Op(), Name: string(col), Err: ErrUnknownColumn}
		}
		next = append(next, c.schema[j])
	}
	// Selecting away an active grouping column would leave later stages
	// grouped by a column that no longer exists.
	for _, g := range c.grouping {
		if !next.Has(g) {
			return StageDesc{}, &CompileError{Stage: idx, Op: s.Op(), Name: string(g), Err: ErrSchemaMismatch}
		}
	}
	c.schema = next
	return StageDesc{Op: s.Op(), Columns: colNames(s.Columns)}, nil
}

func (c *compiler) compileMutate(idx int, s *pipeline.Mutate) (StageDesc, error) {
	for _, e := range s.Exprs {
		if err := c.checkExprRefs(idx, s.Op(), e.Expr); err != nil {
			return StageDesc{}, err
		}
	}
	next := c.schema.Clone()
	for _, e := range s.Exprs {
		if isGrouping(c.grouping, e.Name) {
			return StageDesc{}, &CompileError{Stage: idx, Op: s.Op(), Name: string(e.Name), Err: ErrSchemaMismatch}
		}
		if j := next.Index(e.Name); j >= 0 {
			// Overwrite keeps the column's position; the computed type
			// is unknown until execution.
			next[j].Type = spec.TypeUnknown
		} else {
			next = append(next, spec.Column{Name: e.Name, Type: spec.TypeUnknown})
		}
	}
	c.schema = next
	return StageDesc{Op: s.Op(), Exprs: exprDescs(s.Exprs)}, nil
}

func (c *compiler) compileFilter(idx int, s *pipeline.Filter) (StageDesc, error) {
	if err := c.checkExprRefs(idx, s.Op(), s.Expr); err != nil {
		return StageDesc{}, err
	}
	return StageDesc{Op: s.Op(), Expr: s.Expr}, nil
}

func (c *compiler) compileArrange(idx int, s *pipeline.Arrange) (StageDesc, error) {
	keys := make([]KeyDesc, len(s.Keys))
	for i, k := range s.Keys {
		if !c.schema.Has(k.Column) {
			return StageDesc{}, &CompileError{Stage: idx, Op: s.Op(), Name: string(k.Column), Err: ErrUnknownColumn}
		}
		keys[i] = KeyDesc{Column: string(k.Column), Dir: k.Dir.String()}
	}
	return StageDesc{Op: s.Op(), Keys: keys}, nil
}

// checkExprRefs shallow-checks an opaque expression: every identifier that
// reads as a column reference must be in the running schema. The same
// tokenizer the substitution engine uses finds the identifier boundaries.
func (c *compiler) checkExprRefs(idx int, op, expr string) error {
	tokens, err := token.Tokenize(expr)
	if err != nil {
		return &CompileError{Stage: idx, Op: op, Err: err}
	}
	for _, ref := range token.ColumnRefs(tokens) {
		if !c.schema.Has(spec.ColumnName(ref)) {
			return &CompileError{Stage: idx, Op: op, Name: ref, Err: ErrUnknownColumn}
		}
	}
	return nil
}

func isGrouping(grouping []spec.ColumnName, name spec.ColumnName) bool {
	for _, g := range grouping {
		if g == name {
			return true
		}
	}
	return false
}

func colNames(cols []spec.ColumnName) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c)
	}
	return out
}

func exprDescs(exprs []spec.NamedExpression) []ExprDesc {
	out := make([]ExprDesc, len(exprs))
	for i, e := range exprs {
		out[i] = ExprDesc{Name: string(e.Name), Expr: e.Expr}
	}
	return out
}
