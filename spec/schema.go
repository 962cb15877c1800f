package spec

// ColumnType is the engine-level type of a column, used only for validation.
type ColumnType string

const (
	TypeUnknown ColumnType = ""
	TypeInt     ColumnType = "int"
	TypeFloat   ColumnType = "float"
	TypeString  ColumnType = "string"
	TypeBool    ColumnType = "bool"
	TypeNull    ColumnType = "null"
)

// Column is one schema entry.
type Column struct {
	Name ColumnName `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Schema is an ordered column list. Order is observable: grouping and
// select order round-trip through the projected schema.
type Schema []Column

// Index returns the position of name, or -1.
func (s Schema) Index(name ColumnName) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether name is present.
func (s Schema) Has(name ColumnName) bool {
	return s.Index(name) >= 0
}

// Names returns the column names in order.
func (s Schema) Names() []ColumnName {
	names := make([]ColumnName, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Clone returns an independent copy.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}
