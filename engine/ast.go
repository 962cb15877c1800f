package engine

// Expr is a parsed engine expression, used by filter, mutate, and summarize.
type Expr interface {
	exprNode()
}

// LiteralExpr is a literal value: number, string, bool, null.
type LiteralExpr struct {
	// Kind: "int", "float", "string", "bool", "null"
	Kind  string
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func (e *LiteralExpr) exprNode() {}

// ColumnExpr references a column by name.
type ColumnExpr struct {
	Name string
}

func (e *ColumnExpr) exprNode() {}

// BinaryExpr is a binary operation: a op b.
type BinaryExpr struct {
	Op    string // +, -, *, /, ==, !=, <, >, <=, >=, and, or
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) exprNode() {}

// UnaryExpr is a unary operation (not, unary minus).
type UnaryExpr struct {
	Op      string
	Operand Expr
}

func (e *UnaryExpr) exprNode() {}

// CallExpr is a function call: name(arg1, arg2, ...).
type CallExpr struct {
	Name string
	Args []Expr
}

func (e *CallExpr) exprNode() {}

// IsNullExpr is "expr is null" or "expr is not null".
type IsNullExpr struct {
	Operand Expr
	Negated bool
}

func (e *IsNullExpr) exprNode() {}
