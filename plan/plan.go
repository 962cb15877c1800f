// Package plan compiles a finalized pipeline into an ordered, engine-agnostic
// stage descriptor sequence. Compilation walks the stages once with a running
// projected schema, fails fast on the first unresolved name, and never
// executes anything; execution belongs to the TableEngine collaborator.
package plan

import (
	"errors"
	"fmt"

	"tabq/spec"
)

// Compile-time failures. Both are wrapped in a CompileError carrying the
// offending stage index.
var (
	ErrUnknownColumn  = errors.New("unknown column")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// CompileError locates a validation failure in the stage sequence.
type CompileError struct {
	Stage int    // zero-based index of the failing stage
	Op    string // stage operation name
	Name  string // offending column or result name, when one exists
	Err   error
}

func (e *CompileError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("stage %d (%s): %v: %q", e.Stage, e.Op, e.Err, e.Name)
	}
	return fmt.Sprintf("stage %d (%s): %v", e.Stage, e.Op, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ExprDesc is one named expression in a descriptor.
type ExprDesc struct {
	Name string `json:"name" yaml:"name"`
	Expr string `json:"expr" yaml:"expr"`
}

// KeyDesc is one sort key in an arrange descriptor.
type KeyDesc struct {
	Column string `json:"column" yaml:"column"`
	Dir    string `json:"dir" yaml:"dir"`
}

// StageDesc is one emitted stage. Only the fields relevant to Op are set.
type StageDesc struct {
	Op      string     `json:"op" yaml:"op"`
	Columns []string   `json:"columns,omitempty" yaml:"columns,omitempty"`
	Exprs   []ExprDesc `json:"exprs,omitempty" yaml:"exprs,omitempty"`
	Expr    string     `json:"expr,omitempty" yaml:"expr,omitempty"`
	Keys    []KeyDesc  `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// Plan is the compiled pipeline: the stage sequence plus the final projected
// schema. The wire encoding is the consumer's choice; the descriptors
// marshal to JSON or YAML as-is.
type Plan struct {
	Stages []StageDesc `json:"stages" yaml:"stages"`
	Schema spec.Schema `json:"schema" yaml:"schema"`
}

// Table is the engine-owned handle a plan runs against. The core reads only
// its schema, and only to validate names at compile time.
type Table interface {
	Schema() spec.Schema
}

// Engine executes compiled plans. The core hands the plan over without
// inspecting engine-internal results; engine failures pass through unchanged.
type Engine interface {
	Execute(p *Plan, t Table) (Table, error)
}
