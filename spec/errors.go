package spec

import "errors"

// Construction-time failures. Both are surfaced immediately to the caller
// and never downgraded to a default value.
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrEmptyExpression   = errors.New("empty expression")
)
