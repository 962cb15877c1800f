package engine

import (
	"fmt"
	"math"
	"strings"

	"tabq/table"
)

// evalCall dispatches row-wise function calls.
func evalCall(e *CallExpr, ctx *EvalContext) (table.Value, error) {
	switch e.Name {
	case "upper":
		return callUpper(e.Args, ctx)
	case "lower":
		return callLower(e.Args, ctx)
	case "len":
		return callLen(e.Args, ctx)
	case "substr":
		return callSubstr(e.Args, ctx)
	case "trim":
		return callTrim(e.Args, ctx)
	case "coalesce":
		return callCoalesce(e.Args, ctx)
	case "if":
		return callIf(e.Args, ctx)

	// Aggregates are only meaningful inside summarize, where the executor
	// evaluates them over a whole group.
	case "count", "sum", "mean", "min", "max", "first", "last":
		return table.Null(), fmt.Errorf("aggregate function %q can only be used inside summarize", e.Name)

	default:
		return table.Null(), fmt.Errorf("unknown function %q", e.Name)
	}
}

func callUpper(args []Expr, ctx *EvalContext) (table.Value, error) {
	v, err := singleArg("upper", args, ctx)
	if err != nil || v.IsNull() {
		return v, err
	}
	return table.StrVal(strings.ToUpper(v.AsString())), nil
}

func callLower(args []Expr, ctx *EvalContext) (table.Value, error) {
	v, err := singleArg("lower", args, ctx)
	if err != nil || v.IsNull() {
		return v, err
	}
	return table.StrVal(strings.ToLower(v.AsString())), nil
}

func callLen(args []Expr, ctx *EvalContext) (table.Value, error) {
	v, err := singleArg("len", args, ctx)
	if err != nil || v.IsNull() {
		return v, err
	}
	return table.IntVal(int64(len(v.AsString()))), nil
}

func callTrim(args []Expr, ctx *EvalContext) (table.Value, error) {
	v, err := singleArg("trim", args, ctx)
	if err != nil || v.IsNull() {
		return v, err
	}
	return table.StrVal(strings.TrimSpace(v.AsString())), nil
}

func callSubstr(args []Expr, ctx *EvalContext) (table.Value, error) {
	if len(args) != 3 {
		return table.Null(), fmt.Errorf("substr() takes 3 arguments, got %d", len(args))
	}
	v, err := Eval(args[0], ctx)
	if err != nil {
		return table.Null(), err
	}
	if v.IsNull() {
		return table.Null(), nil
	}
	start, err := intArg("substr", args[1], ctx)
	if err != nil {
		return table.Null(), err
	}
	length, err := intArg("substr", args[2], ctx)
	if err != nil {
		return table.Null(), err
	}

	runes := []rune(v.AsString())
	if start < 0 || start >= int64(len(runes)) || length < 0 {
		return table.StrVal(""), nil
	}
	end := start + length
	if end > int64(len(runes)) {
		end = int64(len(runes))
	}
	return table.StrVal(string(runes[start:end])), nil
}

func callCoalesce(args []Expr, ctx *EvalContext) (table.Value, error) {
	for _, arg := range args {
		v, err := Eval(arg, ctx)
		if err != nil {
			return table.Null(), err
		}
		if !v.IsNull() {
			return v, nil
		}
	}
	return table.Null(), nil
}

func callIf(args []Expr, ctx *EvalContext) (table.Value, error) {
	if len(args) != 3 {
		return table.Null(), fmt.Errorf("if() takes 3 arguments, got %d", len(args))
	}
	cond, err := Eval(args[0], ctx)
	if err != nil {
		return table.Null(), err
	}
	b, ok := cond.AsBool()
	if !ok {
		return table.Null(), fmt.Errorf("if() condition must be boolean, got %v", cond.AsString())
	}
	if b {
		return Eval(args[1], ctx)
	}
	return Eval(args[2], ctx)
}

func singleArg(name string, args []Expr, ctx *EvalContext) (table.Value, error) {
	if len(args) != 1 {
		return table.Null(), fmt.Errorf("%s() takes 1 argument, got %d", name, len(args))
	}
	return Eval(args[0], ctx)
}

func intArg(name string, arg Expr, ctx *EvalContext) (int64, error) {
	v, err := Eval(arg, ctx)
	if err != nil {
		return 0, err
	}
	if v.Type != table.TypeInt {
		return 0, fmt.Errorf("%s() argument must be an integer, got %v", name, v.AsString())
	}
	return v.Int, nil
}

// --- Aggregate evaluation (used by summarize) ---

// EvalAggregate evaluates an aggregate expression over one group of rows.
func EvalAggregate(expr Expr, group *table.Table) (table.Value, error) {
	switch e := expr.(type) {
	case *CallExpr:
		switch e.Name {
		case "count":
			return aggCount(e, group)
		case "sum":
			return aggSum(e, group)
		case "mean":
			return aggMean(e, group)
		case "min":
			return aggMinMax(e, group, true)
		case "max":
			return aggMinMax(e, group, false)
		case "first":
			return aggFirst(e, group)
		case "last":
			return aggLast(e, group)
		default:
			return table.Null(), fmt.Errorf("non-aggregate function %q in summarize context", e.Name)
		}
	case *BinaryExpr:
		left, err := EvalAggregate(e.Left, group)
		if err != nil {
			return table.Null(), err
		}
		right, err := EvalAggregate(e.Right, group)
		if err != nil {
			return table.Null(), err
		}
		return applyBinary(e.Op, left, right)
	case *UnaryExpr:
		operand, err := EvalAggregate(e.Operand, group)
		if err != nil {
			return table.Null(), err
		}
		if e.Op == "-" {
			return applyBinary("-", table.IntVal(0), operand)
		}
		return table.Null(), fmt.Errorf("unary %q not supported in summarize context", e.Op)
	case *LiteralExpr:
		return evalLiteral(e), nil
	default:
		return table.Null(), fmt.Errorf("unsupported expression type %T in summarize", expr)
	}
}

func aggColValues(e *CallExpr, group *table.Table) ([]table.Value, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%s() takes 1 argument, got %d", e.Name, len(e.Args))
	}
	col, ok := e.Args[0].(*ColumnExpr)
	if !ok {
		return nil, fmt.Errorf("%s() argument must be a column reference", e.Name)
	}
	idx := group.ColIndex(col.Name)
	if idx < 0 {
		return nil, fmt.Errorf("%s(): column %q not found", e.Name, col.Name)
	}
	vals := make([]table.Value, len(group.Rows))
	for i, r := range group.Rows {
		vals[i] = r.Values[idx]
	}
	return vals, nil
}

// aggCount counts rows with no argument, non-null values with one.
func aggCount(e *CallExpr, group *table.Table) (table.Value, error) {
	if len(e.Args) == 0 {
		return table.IntVal(int64(len(group.Rows))), nil
	}
	vals, err := aggColValues(e, group)
	if err != nil {
		return table.Null(), err
	}
	var n int64
	for _, v := range vals {
		if !v.IsNull() {
			n++
		}
	}
	return table.IntVal(n), nil
}

func aggSum(e *CallExpr, group *table.Table) (table.Value, error) {
	vals, err := aggColValues(e, group)
	if err != nil {
		return table.Null(), err
	}
	var sum float64
	var intSum int64
	hasInt := true
	any := false
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		f, ok := v.AsFloat()
		if !ok {
			return table.Null(), fmt.Errorf("sum: non-numeric value %v", v.AsString())
		}
		sum += f
		any = true
		if v.Type == table.TypeInt {
			intSum += v.Int
		} else {
			hasInt = false
		}
	}
	if !any {
		return table.Null(), nil
	}
	if hasInt {
		return table.IntVal(intSum), nil
	}
	return table.FloatVal(sum), nil
}

func aggMean(e *CallExpr, group *table.Table) (table.Value, error) {
	vals, err := aggColValues(e, group)
	if err != nil {
		return table.Null(), err
	}
	var sum float64
	count := 0
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		f, ok := v.AsFloat()
		if !ok {
			return table.Null(), fmt.Errorf("mean: non-numeric value %v", v.AsString())
		}
		sum += f
		count++
	}
	if count == 0 {
		return table.Null(), nil
	}
	return table.FloatVal(sum / float64(count)), nil
}

func aggMinMax(e *CallExpr, group *table.Table, min bool) (table.Value, error) {
	vals, err := aggColValues(e, group)
	if err != nil {
		return table.Null(), err
	}
	best := math.Inf(1)
	if !min {
		best = math.Inf(-1)
	}
	var bestInt int64
	isInt := true
	any := false
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		f, ok := v.AsFloat()
		if !ok {
			return table.Null(), fmt.Errorf("%s: non-numeric value %v", e.Name, v.AsString())
		}
		better := f < best
		if !min {
			better = f > best
		}
		if !any || better {
			best = f
			if v.Type == table.TypeInt {
				bestInt = v.Int
			} else {
				isInt = false
			}
		}
		any = true
	}
	if !any {
		return table.Null(), nil
	}
	if isInt {
		return table.IntVal(bestInt), nil
	}
	return table.FloatVal(best), nil
}

func aggFirst(e *CallExpr, group *table.Table) (table.Value, error) {
	vals, err := aggColValues(e, group)
	if err != nil {
		return table.Null(), err
	}
	if len(vals) == 0 {
		return table.Null(), nil
	}
	return vals[0], nil
}

func aggLast(e *CallExpr, group *table.Table) (table.Value, error) {
	vals, err := aggColValues(e, group)
	if err != nil {
		return table.Null(), err
	}
	if len(vals) == 0 {
		return table.Null(), nil
	}
	return vals[len(vals)-1], nil
}
