// Package spec holds the value types a pipeline is built from: column
// names, named expressions, and sort keys. Everything here is plain string
// data supplied by the caller at runtime; nothing is ever resolved against
// identifiers in the calling code.
package spec

import (
	"fmt"
	"unicode"
)

// ColumnName names a column. It is used literally: equality is exact string
// equality, with no normalization and no resolution against any scope.
type ColumnName string

// NamedExpression pairs a result column name with an opaque expression
// fragment in the engine's expression language. The fragment is not parsed
// here; validating its referenced columns requires schema context and is the
// compiler's job.
type NamedExpression struct {
	Name ColumnName
	Expr string
}

// Direction orders an Arrange key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// SortKey is one column of an Arrange stage with its direction.
type SortKey struct {
	Column ColumnName
	Dir    Direction
}

// identRules is the single source of truth for what counts as a legal
// column identifier. Callers never encode character-class or reserved-word
// policy themselves.
var identRules = struct {
	start    func(rune) bool
	part     func(rune) bool
	reserved map[string]bool
}{
	start: func(r rune) bool { return unicode.IsLetter(r) || r == '_' },
	part:  func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' },
	reserved: map[string]bool{
		"and": true, "or": true, "not": true, "is": true,
		"true": true, "false": true, "null": true, "as": true,
	},
}

// ValidIdent reports whether s is a syntactically legal column identifier
// under the engine's rules.
func ValidIdent(s string) bool {
	if s == "" || identRules.reserved[s] {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !identRules.start(r) {
				return false
			}
			continue
		}
		if !identRules.part(r) {
			return false
		}
	}
	return true
}

// MakeColumn validates s and returns it as a ColumnName.
func MakeColumn(s string) (ColumnName, error) {
	if !ValidIdent(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return ColumnName(s), nil
}

// MakeColumns validates every name in order.
func MakeColumns(names ...string) ([]ColumnName, error) {
	cols := make([]ColumnName, len(names))
	for i, n := range names {
		c, err := MakeColumn(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// MakeNamedExpression validates the result name and rejects blank
// expressions. The expression body itself stays opaque.
func MakeNamedExpression(name, expr string) (NamedExpression, error) {
	c, err := MakeColumn(name)
	if err != nil {
		return NamedExpression{}, err
	}
	if isBlank(expr) {
		return NamedExpression{}, fmt.Errorf("%w: result %q", ErrEmptyExpression, name)
	}
	return NamedExpression{Name: c, Expr: expr}, nil
}

// MakeSortKey validates the column name for an Arrange key.
func MakeSortKey(name string, dir Direction) (SortKey, error) {
	c, err := MakeColumn(name)
	if err != nil {
		return SortKey{}, err
	}
	return SortKey{Column: c, Dir: dir}, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
