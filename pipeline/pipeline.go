// Package pipeline builds an ordered sequence of relational stages over a
// declared source schema. Every column reference is the literal string value
// the caller supplied; no stage ever consults identifiers in caller code.
// Builder calls are purely additive: each returns a new Pipeline and leaves
// its input untouched, so intermediate pipelines stay independently usable.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"tabq/spec"
)

// Build-time failures, reported before compilation is ever attempted.
var (
	ErrDuplicateResult = errors.New("duplicate result name")
	ErrEmptyStage      = errors.New("stage has no arguments")
)

// Stage is one relational operation. Stages are immutable once appended.
type Stage interface {
	stageNode()
	// Op returns the stage's operation name as it appears in emitted plans.
	Op() string
}

// GroupBy declares grouping columns. Order is preserved and observable in
// the projected schema.
type GroupBy struct {
	Columns []spec.ColumnName
}

func (*GroupBy) stageNode() {}
func (*GroupBy) Op() string { return "group_by" }

// Summarize collapses each group to one row of named aggregate results.
type Summarize struct {
	Exprs []spec.NamedExpression
}

func (*Summarize) stageNode() {}
func (*Summarize) Op() string { return "summarize" }

// Select projects columns in the given order.
type Select struct {
	Columns []spec.ColumnName
}

func (*Select) stageNode() {}
func (*Select) Op() string { return "select" }

// Mutate computes named columns row-wise. Assigning to an existing column
// overwrites it in place; new names append to the schema.
type Mutate struct {
	Exprs []spec.NamedExpression
}

func (*Mutate) stageNode() {}
func (*Mutate) Op() string { return "mutate" }

// Filter keeps rows where the expression is true.
type Filter struct {
	Expr string
}

func (*Filter) stageNode() {}
func (*Filter) Op() string { return "filter" }

// Arrange sorts by the given keys.
type Arrange struct {
	Keys []spec.SortKey
}

func (*Arrange) stageNode() {}
func (*Arrange) Op() string { return "arrange" }

// Ungroup clears the active grouping.
type Ungroup struct{}

func (*Ungroup) stageNode() {}
func (*Ungroup) Op() string { return "ungroup" }

// Pipeline is an ordered stage sequence plus the source schema it will be
// validated against. The schema is used only for compile-time validation,
// never for resolving spec strings against anything else.
type Pipeline struct {
	Source spec.Schema
	Stages []Stage
}

// New starts an empty pipeline over the given source schema.
func New(source spec.Schema) *Pipeline {
	return &Pipeline{Source: source.Clone()}
}

// append copies the receiver and adds one stage.
func (p *Pipeline) append(s Stage) *Pipeline {
	stages := make([]Stage, len(p.Stages)+1)
	copy(stages, p.Stages)
	stages[len(p.Stages)] = s
	return &Pipeline{Source: p.Source, Stages: stages}
}

// GroupBy appends a grouping stage. Column existence is checked by the
// compiler, which knows the schema projected by prior stages.
func (p *Pipeline) GroupBy(cols ...spec.ColumnName) (*Pipeline, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("group_by: %w", ErrEmptyStage)
	}
	return p.append(&GroupBy{Columns: cloneCols(cols)}), nil
}

// Summarize appends an aggregation stage. Result names must be unique
// within the stage.
func (p *Pipeline) Summarize(exprs ...spec.NamedExpression) (*Pipeline, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("summarize: %w", ErrEmptyStage)
	}
	if err := checkResultNames("summarize", exprs); err != nil {
		return nil, err
	}
	return p.append(&Summarize{Exprs: cloneExprs(exprs)}), nil
}

// Select appends a projection stage.
func (p *Pipeline) Select(cols ...spec.ColumnName) (*Pipeline, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("select: %w", ErrEmptyStage)
	}
	return p.append(&Select{Columns: cloneCols(cols)}), nil
}

// Mutate appends a row-wise computation stage.
func (p *Pipeline) Mutate(exprs ...spec.NamedExpression) (*Pipeline, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("mutate: %w", ErrEmptyStage)
	}
	if err := checkResultNames("mutate", exprs); err != nil {
		return nil, err
	}
	return p.append(&Mutate{Exprs: cloneExprs(exprs)}), nil
}

// Filter appends a row predicate stage. The expression stays opaque here;
// its column references are checked by the compiler.
func (p *Pipeline) Filter(expr string) (*Pipeline, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("filter: %w", spec.ErrEmptyExpression)
	}
	return p.append(&Filter{Expr: expr}), nil
}

// Arrange appends a sort stage.
func (p *Pipeline) Arrange(keys ...spec.SortKey) (*Pipeline, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("arrange: %w", ErrEmptyStage)
	}
	out := make([]spec.SortKey, len(keys))
	copy(out, keys)
	return p.append(&Arrange{Keys: out}), nil
}

// Ungroup appends a stage clearing the active grouping.
func (p *Pipeline) Ungroup() *Pipeline {
	return p.append(&Ungroup{})
}

func checkResultNames(op string, exprs []spec.NamedExpression) error {
	seen := make(map[spec.ColumnName]bool, len(exprs))
	for _, e := range exprs {
		if seen[e.Name] {
			return fmt.Errorf("%s: %w: %q", op, ErrDuplicateResult, e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

func cloneCols(cols []spec.ColumnName) []spec.ColumnName {
	out := make([]spec.ColumnName, len(cols))
	copy(out, cols)
	return out
}

func cloneExprs(exprs []spec.NamedExpression) []spec.NamedExpression {
	out := make([]spec.NamedExpression, len(exprs))
	copy(out, exprs)
	return out
}
