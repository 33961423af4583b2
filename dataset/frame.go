package dataset

import (
	"errors"
	"fmt"
	"time"
)

// Type is the logical type of a column
type Type int

// Column types
const (
	TypeInteger Type = iota
	TypeFloat
	TypeString
	TypeBoolean
	TypeDatetime
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeDatetime:
		return "datetime"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// MarshalText renders the type by name in JSON and YAML output
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name written by MarshalText
func (t *Type) UnmarshalText(text []byte) error {
	for typ := TypeInteger; typ <= TypeDatetime; typ++ {
		if typ.String() == string(text) {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown column type: %s", text)
}

// Numeric reports whether values of the type can take part in arithmetic
func (t Type) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Column describes one named, typed column
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

var (
	// ErrColumnNotFound is wrapped by every ColumnError
	ErrColumnNotFound = errors.New("column not found")
	// ErrRowOutOfRange is returned for row indexes outside [0, rows)
	ErrRowOutOfRange = errors.New("row index out of range")
)

// ColumnError reports a lookup of a column that is not part of the frame
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: %q", ErrColumnNotFound, e.Column)
}

func (e *ColumnError) Unwrap() error {
	return ErrColumnNotFound
}

// Frame is an immutable column-major table
type Frame struct {
	columns []Column
	index   map[string]int
	series  [][]any
	rows    int
}

// New validates the columns and series and returns a Frame owning private
// copies of them. Cells must be nil (missing) or hold the Go type matching the
// column: int64, float64, string, bool or time.Time. Plain ints and float32
// values are widened.
func New(columns []Column, series [][]any) (*Frame, error) {
	if len(columns) != len(series) {
		return nil, fmt.Errorf("got %d columns but %d series", len(columns), len(series))
	}

	f := &Frame{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
		series:  make([][]any, len(series)),
	}
	copy(f.columns, columns)

	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := f.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name: %q", col.Name)
		}
		f.index[col.Name] = i

		if i == 0 {
			f.rows = len(series[i])
		} else if len(series[i]) != f.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", col.Name, len(series[i]), f.rows)
		}

		values := make([]any, len(series[i]))
		for row, v := range series[i] {
			normalized, err := normalize(col.Type, v)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col.Name, row, err)
			}
			values[row] = normalized
		}
		f.series[i] = values
	}

	return f, nil
}

func normalize(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeDatetime:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not match column type %s", v, v, t)
}

// Shape returns the row and column counts
func (f *Frame) Shape() (rows, cols int) {
	return f.rows, len(f.columns)
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.rows
}

// Columns returns a copy of the column descriptors in order
func (f *Frame) Columns() []Column {
	out := make([]Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, col := range f.columns {
		names[i] = col.Name
	}
	return names
}

// Lookup returns the descriptor of the named column
func (f *Frame) Lookup(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, false
	}
	return f.columns[i], true
}

// Series returns a copy of the named column's values
func (f *Frame) Series(name string) ([]any, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	out := make([]any, f.rows)
	copy(out, f.series[i])
	return out, nil
}

// Value returns a single cell
func (f *Frame) Value(row int, name string) (any, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	if row < 0 || row >= f.rows {
		return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, f.rows)
	}
	return f.series[i][row], nil
}

// Row returns the cells of one row keyed by column name
func (f *Frame) Row(row int) (map[string]any, error) {
	if row < 0 || row >= f.rows {
		return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, f.rows)
	}
	out := make(map[string]any, len(f.columns))
	for i, col := range f.columns {
		out[col.Name] = f.series[i][row]
	}
	return out, nil
}

// Take returns a new frame holding the given rows in the given order
func (f *Frame) Take(rows []int) (*Frame, error) {
	series := make([][]any, len(f.columns))
	for i := range f.columns {
		values := make([]any, len(rows))
		for j, row := range rows {
			if row < 0 || row >= f.rows {
				return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, f.rows)
			}
			values[j] = f.series[i][row]
		}
		series[i] = values
	}
	return New(f.columns, series)
}

// Schema summarizes the frame for script generation
type Schema struct {
	Columns []Column `json:"columns" yaml:"columns"`
	Rows    int      `json:"rows" yaml:"rows"`
}

// Schema returns the frame's schema
func (f *Frame) Schema() Schema {
	return Schema{Columns: f.Columns(), Rows: f.rows}
}

// DTypes maps column names to their type names
func (s Schema) DTypes() map[string]string {
	out := make(map[string]string, len(s.Columns))
	for _, col := range s.Columns {
		out[col.Name] = col.Type.String()
	}
	return out
}

// Names returns the column names in order
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}
