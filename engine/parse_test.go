package engine

import (
	"testing"
)

func TestParsePrecedence(t *testing.T) {
	expr, err := ParseExpr("a + b * c")
	if err != nil {
		t.Fatal(err)
	}
	add, ok := expr.(*BinaryExpr)
	if !ok || add.Op != "+" {
		t.Fatalf("expected + at root, got %#v", expr)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != "*" {
		t.Fatalf("expected * on the right, got %#v", add.Right)
	}
}

func TestParseLogical(t *testing.T) {
	expr, err := ParseExpr(`age > 20 and city == "NY" or vip`)
	if err != nil {
		t.Fatal(err)
	}
	or, ok := expr.(*BinaryExpr)
	if !ok || or.Op != "or" {
		t.Fatalf("expected or at root, got %#v", expr)
	}
	and, ok := or.Left.(*BinaryExpr)
	if !ok || and.Op != "and" {
		t.Fatalf("expected and on the left, got %#v", or.Left)
	}
}

func TestParseCall(t *testing.T) {
	expr, err := ParseExpr("substr(name, 0, 3)")
	if err != nil {
		t.Fatal(err)
	}
	call, ok := expr.(*CallExpr)
	if !ok || call.Name != "substr" || len(call.Args) != 3 {
		t.Fatalf("unexpected call %#v", expr)
	}
}

func TestParseEmptyCall(t *testing.T) {
	expr, err := ParseExpr("count()")
	if err != nil {
		t.Fatal(err)
	}
	call, ok := expr.(*CallExpr)
	if !ok || call.Name != "count" || len(call.Args) != 0 {
		t.Fatalf("unexpected call %#v", expr)
	}
}

func TestParseIsNull(t *testing.T) {
	expr, err := ParseExpr("email is not null")
	if err != nil {
		t.Fatal(err)
	}
	isNull, ok := expr.(*IsNullExpr)
	if !ok || !isNull.Negated {
		t.Fatalf("unexpected expression %#v", expr)
	}
}

func TestParseIsNullInsideConjunction(t *testing.T) {
	expr, err := ParseExpr("email is null and age > 20")
	if err != nil {
		t.Fatal(err)
	}
	and, ok := expr.(*BinaryExpr)
	if !ok || and.Op != "and" {
		t.Fatalf("expected and at root, got %#v", expr)
	}
	if _, ok := and.Left.(*IsNullExpr); !ok {
		t.Fatalf("expected is-null on the left, got %#v", and.Left)
	}
}

func TestParseStringEscapes(t *testing.T) {
	expr, err := ParseExpr(`name == "a\"b\n"`)
	if err != nil {
		t.Fatal(err)
	}
	eq := expr.(*BinaryExpr)
	lit, ok := eq.Right.(*LiteralExpr)
	if !ok || lit.Str != "a\"b\n" {
		t.Fatalf("unexpected literal %#v", eq.Right)
	}
}

func TestParseUnaryMinus(t *testing.T) {
	expr, err := ParseExpr("-x + 3")
	if err != nil {
		t.Fatal(err)
	}
	add := expr.(*BinaryExpr)
	neg, ok := add.Left.(*UnaryExpr)
	if !ok || neg.Op != "-" {
		t.Fatalf("unexpected %#v", add.Left)
	}
}

func TestParseBacktickColumn(t *testing.T) {
	expr, err := ParseExpr("`unit price` * qty")
	if err != nil {
		t.Fatal(err)
	}
	mul := expr.(*BinaryExpr)
	col, ok := mul.Left.(*ColumnExpr)
	if !ok || col.Name != "unit price" {
		t.Fatalf("unexpected %#v", mul.Left)
	}
}

func TestParseRejectsTrailingTokens(t *testing.T) {
	if _, err := ParseExpr("a + b c"); err == nil {
		t.Fatal("expected error for trailing tokens")
	}
}

func TestParseRejectsBareKeyword(t *testing.T) {
	if _, err := ParseExpr("a + and"); err == nil {
		t.Fatal("expected error for stray keyword")
	}
}
