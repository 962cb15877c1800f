// Package engine is the TableEngine collaborator: it executes compiled
// plans against in-memory tables. The pipeline core never looks inside it;
// engine failures pass through to the caller unchanged.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"tabq/plan"
	"tabq/table"
)

// Error reports a failure while executing one plan stage.
type Error struct {
	Stage int
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine: stage %d (%s): %v", e.Stage, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Engine executes plans. It is stateless; one value can serve any number
// of concurrent Execute calls.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// Execute implements plan.Engine for tables owned by this package.
func (eng *Engine) Execute(p *plan.Plan, t plan.Table) (plan.Table, error) {
	in, ok := t.(*table.Table)
	if !ok {
		return nil, fmt.Errorf("engine: unsupported table type %T", t)
	}
	return eng.Run(p, in)
}

// Run executes every stage of p in order against in.
func (eng *Engine) Run(p *plan.Plan, in *table.Table) (*table.Table, error) {
	st := &execState{}
	current := in
	for i, desc := range p.Stages {
		next, err := st.exec(desc, current)
		if err != nil {
			return nil, &Error{Stage: i, Op: desc.Op, Err: err}
		}
		current = next
	}
	return current, nil
}

// execState carries the active grouping between stages.
type execState struct {
	grouping []string
}

func (st *execState) exec(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	switch desc.Op {
	case "group_by":
		return st.execGroupBy(desc, t)
	case "summarize":
		return st.execSummarize(desc, t)
	case "select":
		return execSelect(desc, t)
	case "mutate":
		return execMutate(desc, t)
	case "filter":
		return execFilter(desc, t)
	case "arrange":
		return execArrange(desc, t)
	case "ungroup":
		st.grouping = nil
		return t, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", desc.Op)
	}
}

func (st *execState) execGroupBy(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	for _, c := range desc.Columns {
		if t.ColIndex(c) < 0 {
			return nil, fmt.Errorf("column %q not found", c)
		}
	}
	st.grouping = desc.Columns
	return t, nil
}

// execSummarize collapses each group to one row: grouping values first,
// then the aggregate results, in declared order. Without an active grouping
// the whole table is one group and the result is a single row.
func (st *execState) execSummarize(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	exprs := make([]Expr, len(desc.Exprs))
	for i, e := range desc.Exprs {
		parsed, err := ParseExpr(e.Expr)
		if err != nil {
			return nil, fmt.Errorf("summarize %q: %w", e.Name, err)
		}
		exprs[i] = parsed
	}

	groupIdx := make([]int, len(st.grouping))
	for i, c := range st.grouping {
		idx := t.ColIndex(c)
		if idx < 0 {
			return nil, fmt.Errorf("grouping column %q not found", c)
		}
		groupIdx[i] = idx
	}

	// Build groups preserving first-seen order.
	type groupEntry struct {
		key  []table.Value
		rows *table.Table
	}
	var groups []groupEntry
	keyMap := make(map[string]int)

	for _, row := range t.Rows {
		keyParts := make([]string, len(groupIdx))
		keyVals := make([]table.Value, len(groupIdx))
		for i, idx := range groupIdx {
			keyVals[i] = row.Values[idx]
			keyParts[i] = row.Values[idx].AsString()
		}
		keyStr := strings.Join(keyParts, "\x00")

		gi, exists := keyMap[keyStr]
		if !exists {
			gi = len(groups)
			groups = append(groups, groupEntry{key: keyVals, rows: table.New(t.Columns)})
			keyMap[keyStr] = gi
		}
		groups[gi].rows.AddRow(row.Values)
	}
	if len(groups) == 0 && len(st.grouping) == 0 {
		groups = append(groups, groupEntry{rows: table.New(t.Columns)})
	}

	cols := make([]string, 0, len(st.grouping)+len(desc.Exprs))
	cols = append(cols, st.grouping...)
	for _, e := range desc.Exprs {
		cols = append(cols, e.Name)
	}

	result := table.New(cols)
	for _, g := range groups {
		vals := make([]table.Value, 0, len(cols))
		vals = append(vals, g.key...)
		for i, expr := range exprs {
			v, err := EvalAggregate(expr, g.rows)
			if err != nil {
				return nil, fmt.Errorf("summarize %q: %w", desc.Exprs[i].Name, err)
			}
			vals = append(vals, v)
		}
		result.AddRow(vals)
	}

	st.grouping = nil
	return result, nil
}

func execSelect(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	indices := make([]int, len(desc.Columns))
	for i, c := range desc.Columns {
		idx := t.ColIndex(c)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", c)
		}
		indices[i] = idx
	}

	result := table.New(desc.Columns)
	for _, row := range t.Rows {
		vals := make([]table.Value, len(indices))
		for i, idx := range indices {
			vals[i] = row.Values[idx]
		}
		result.AddRow(vals)
	}
	return result, nil
}

// execMutate computes named columns row-wise. Every expression sees the
// stage's input row; assignments do not observe each other within a stage.
func execMutate(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	exprs := make([]Expr, len(desc.Exprs))
	for i, e := range desc.Exprs {
		parsed, err := ParseExpr(e.Expr)
		if err != nil {
			return nil, fmt.Errorf("mutate %q: %w", e.Name, err)
		}
		exprs[i] = parsed
	}

	newCols := make([]string, len(t.Columns))
	copy(newCols, t.Columns)
	targets := make([]int, len(desc.Exprs))
	for i, e := range desc.Exprs {
		idx := -1
		for j, c := range newCols {
			if c == e.Name {
				idx = j
				break
			}
		}
		if idx < 0 {
			idx = len(newCols)
			newCols = append(newCols, e.Name)
		}
		targets[i] = idx
	}

	result := table.New(newCols)
	for _, row := range t.Rows {
		vals := make([]table.Value, len(newCols))
		copy(vals, row.Values)
		for i := len(row.Values); i < len(newCols); i++ {
			vals[i] = table.Null()
		}

		ctx := &EvalContext{Table: t, Row: &row}
		for i, expr := range exprs {
			v, err := Eval(expr, ctx)
			if err != nil {
				return nil, fmt.Errorf("mutate %q: %w", desc.Exprs[i].Name, err)
			}
			vals[targets[i]] = v
		}
		result.AddRow(vals)
	}
	return result, nil
}

func execFilter(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	expr, err := ParseExpr(desc.Expr)
	if err != nil {
		return nil, err
	}

	result := table.New(t.Columns)
	for _, row := range t.Rows {
		ctx := &EvalContext{Table: t, Row: &row}
		val, err := Eval(expr, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := val.AsBool()
		if !ok {
			return nil, fmt.Errorf("filter expression did not return boolean, got %v", val.AsString())
		}
		if b {
			result.AddRow(row.Values)
		}
	}
	return result, nil
}

func execArrange(desc plan.StageDesc, t *table.Table) (*table.Table, error) {
	indices := make([]int, len(desc.Keys))
	descending := make([]bool, len(desc.Keys))
	for i, k := range desc.Keys {
		idx := t.ColIndex(k.Column)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", k.Column)
		}
		indices[i] = idx
		descending[i] = k.Dir == "desc"
	}

	result := t.Clone()
	sort.SliceStable(result.Rows, func(i, j int) bool {
		for k, idx := range indices {
			a := result.Rows[i].Values[idx]
			b := result.Rows[j].Values[idx]

			// Nulls sort last in both directions.
			if a.IsNull() || b.IsNull() {
				if a.IsNull() && b.IsNull() {
					continue
				}
				return b.IsNull()
			}

			cmp := compareValues(a, b)
			if cmp != 0 {
				if descending[k] {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})
	return result, nil
}

func compareValues(a, b table.Value) int {
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if aok && bok {
		if af < bf {
			return -1
		}
		if af > bf {
			return 1
		}
		return 0
	}
	return strings.Compare(a.AsString(), b.AsString())
}
