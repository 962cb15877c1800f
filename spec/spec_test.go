package spec

import (
	"errors"
	"testing"
)

func TestMakeColumn(t *testing.T) {
	valid := []string{"age", "first_name", "_tmp", "x1", "colonne_année"}
	for _, s := range valid {
		c, err := MakeColumn(s)
		if err != nil {
			t.Errorf("MakeColumn(%q): unexpected error %v", s, err)
		}
		if string(c) != s {
			t.Errorf("MakeColumn(%q) = %q, want exact string", s, c)
		}
	}

	invalid := []string{"", "1age", "first name", "a-b", "a.b", "and", "null", "true"}
	for _, s := range invalid {
		if _, err := MakeColumn(s); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("MakeColumn(%q): want ErrInvalidIdentifier, got %v", s, err)
		}
	}
}

func TestMakeColumnsPreservesOrder(t *testing.T) {
	cols, err := MakeColumns("b", "a", "c")
	if err != nil {
		t.Fatal(err)
	}
	want := []ColumnName{"b", "a", "c"}
	for i, c := range cols {
		if c != want[i] {
			t.Errorf("column %d: got %q, want %q", i, c, want[i])
		}
	}
}

func TestMakeNamedExpression(t *testing.T) {
	e, err := MakeNamedExpression("m", "mean(age)")
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "m" || e.Expr != "mean(age)" {
		t.Errorf("unexpected expression %+v", e)
	}

	if _, err := MakeNamedExpression("1bad", "mean(age)"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("want ErrInvalidIdentifier, got %v", err)
	}
	if _, err := MakeNamedExpression("m", "   "); !errors.Is(err, ErrEmptyExpression) {
		t.Errorf("want ErrEmptyExpression, got %v", err)
	}
}

func TestSchemaIndex(t *testing.T) {
	s := Schema{
		{Name: "g1", Type: TypeString},
		{Name: "g2", Type: TypeInt},
	}
	if s.Index("g2") != 1 {
		t.Errorf("Index(g2) = %d, want 1", s.Index("g2"))
	}
	if s.Index("missing") != -1 {
		t.Errorf("Index(missing) = %d, want -1", s.Index("missing"))
	}
	if !s.Has("g1") || s.Has("G1") {
		t.Error("Has must compare by exact string equality")
	}
}

func TestSchemaCloneIsIndependent(t *testing.T) {
	s := Schema{{Name: "a", Type: TypeInt}}
	c := s.Clone()
	c[0].Name = "b"
	if s[0].Name != "a" {
		t.Error("Clone shares backing array with original")
	}
}
