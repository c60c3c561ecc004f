package nwb

import (
	"fmt"
)

// Column is one named column of a dynamic table. Plain columns hold one
// value per row; ragged columns hold a variable-length group per row,
// stored as a flat value buffer plus cumulative group boundaries.
type Column struct {
	Name        string
	Description string
	Values      []any

	Ragged     bool
	FlatValues []float64
	Index      []int64
}

// Table is a dynamic table: ordered named columns over a shared row-id
// vector, optionally tagged with the name of the column the ids came from.
type Table struct {
	Name string

	ids       []int64
	indexName string
	columns   []*Column
}

// NewTable returns an empty table with the given name.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.ids) > 0 {
		return len(t.ids)
	}
	for _, c := range t.columns {
		if !c.Ragged {
			return len(c.Values)
		}
	}
	return 0
}

// IDs returns the row-id vector.
func (t *Table) IDs() []int64 { return t.ids }

// IndexName reports the name of the column the row ids were taken from,
// or "" if ids were never assigned from a column.
func (t *Table) IndexName() string { return t.indexName }

// SetIDs assigns the row-id vector directly, naming its origin.
func (t *Table) SetIDs(name string, ids []int64) {
	t.indexName = name
	t.ids = append([]int64(nil), ids...)
}

// Column returns the named column, if present.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasColumn reports whether a column with this name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns column names in their stored order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.Name)
	}
	return names
}

// AddColumn appends a plain column. The value count must match the row
// count of any existing column or id vector.
func (t *Table) AddColumn(name, description string, values []any) error {
	if t.HasColumn(name) {
		return fmt.Errorf("table %s already has column %q", t.Name, name)
	}
	if n := t.Len(); n > 0 && len(values) != n {
		return fmt.Errorf("table %s: column %q has %d values, want %d", t.Name, name, len(values), n)
	}
	t.columns = append(t.columns, &Column{Name: name, Description: description, Values: values})
	return nil
}

// AddConstantColumn appends a plain column holding the same value in
// every row.
func (t *Table) AddConstantColumn(name, description string, value any) error {
	values := make([]any, t.Len())
	for i := range values {
		values[i] = value
	}
	return t.AddColumn(name, description, values)
}

// AddRaggedColumn appends a ragged column. index must contain one
// cumulative boundary per row; values[index[i-1]:index[i]] is row i's group.
func (t *Table) AddRaggedColumn(name, description string, values []float64, index []int64) error {
	if t.HasColumn(name) {
		return fmt.Errorf("table %s already has column %q", t.Name, name)
	}
	if len(index) != t.Len() {
		return fmt.Errorf("table %s: ragged column %q has %d boundaries, want %d", t.Name, name, len(index), t.Len())
	}
	if n := len(index); n > 0 && index[n-1] != int64(len(values)) {
		return fmt.Errorf("table %s: ragged column %q final boundary %d does not cover %d values", t.Name, name, index[n-1], len(values))
	}
	t.columns = append(t.columns, &Column{
		Name:        name,
		Description: description,
		Ragged:      true,
		FlatValues:  values,
		Index:       index,
	})
	return nil
}

// RaggedSlice returns row i's group of a ragged column.
func (c *Column) RaggedSlice(i int) []float64 {
	if !c.Ragged || i < 0 || i >= len(c.Index) {
		return nil
	}
	lo := int64(0)
	if i > 0 {
		lo = c.Index[i-1]
	}
	return c.FlatValues[lo:c.Index[i]]
}

// SetIndexFromColumn moves a plain integer column into the row-id vector,
// dropping it from the column set.
func (t *Table) SetIndexFromColumn(name string) error {
	col, ok := t.Column(name)
	if !ok {
		return fmt.Errorf("table %s has no column %q", t.Name, name)
	}
	if col.Ragged {
		return fmt.Errorf("table %s: cannot index on ragged column %q", t.Name, name)
	}
	ids := make([]int64, len(col.Values))
	for i, v := range col.Values {
		id, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("table %s: column %q row %d: %w", t.Name, name, i, err)
		}
		ids[i] = id
	}
	t.ids = ids
	t.indexName = name
	kept := t.columns[:0]
	for _, c := range t.columns {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	t.columns = kept
	return nil
}

// RenameColumns renames columns according to the given old-to-new map.
// Names absent from the table are ignored.
func (t *Table) RenameColumns(renames map[string]string) {
	for _, c := range t.columns {
		if n, ok := renames[c.Name]; ok {
			c.Name = n
		}
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:      t.Name,
		ids:       append([]int64(nil), t.ids...),
		indexName: t.indexName,
	}
	for _, c := range t.columns {
		out.columns = append(out.columns, &Column{
			Name:        c.Name,
			Description: c.Description,
			Values:      append([]any(nil), c.Values...),
			Ragged:      c.Ragged,
			FlatValues:  append([]float64(nil), c.FlatValues...),
			Index:       append([]int64(nil), c.Index...),
		})
	}
	return out
}

// Float64Column converts a plain column to float64 values.
func (t *Table) Float64Column(name string) ([]float64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("table %s has no column %q", t.Name, name)
	}
	out := make([]float64, len(col.Values))
	for i, v := range col.Values {
		f, err := asFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("table %s: column %q row %d: %w", t.Name, name, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Int64Column converts a plain column to int64 values.
func (t *Table) Int64Column(name string) ([]int64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("table %s has no column %q", t.Name, name)
	}
	out := make([]int64, len(col.Values))
	for i, v := range col.Values {
		n, err := asInt64(v)
		if err != nil {
			return nil, fmt.Errorf("table %s: column %q row %d: %w", t.Name, name, i, err)
		}
		out[i] = n
	}
	return out, nil
}

// Concat appends the rows of several tables into one, preserving input
// order. Columns are the union of the inputs' columns in order of first
// appearance; cells for rows missing a column are filled with fill.
// Ragged columns cannot be concatenated.
func Concat(name string, tables []*Table, fill any) (*Table, error) {
	out := NewTable(name)
	total := 0
	for _, t := range tables {
		for _, c := range t.columns {
			if c.Ragged {
				return nil, fmt.Errorf("concat %s: ragged column %q in table %s", name, c.Name, t.Name)
			}
		}
		total += t.Len()
	}

	var order []string
	seen := map[string]struct{}{}
	for _, t := range tables {
		for _, c := range t.columns {
			if _, ok := seen[c.Name]; !ok {
				seen[c.Name] = struct{}{}
				order = append(order, c.Name)
			}
		}
	}

	for _, colName := range order {
		values := make([]any, 0, total)
		desc := ""
		for _, t := range tables {
			if c, ok := t.Column(colName); ok {
				if desc == "" {
					desc = c.Description
				}
				values = append(values, c.Values...)
			} else {
				for i := 0; i < t.Len(); i++ {
					values = append(values, fill)
				}
			}
		}
		if err := out.AddColumn(colName, desc, values); err != nil {
			return nil, err
		}
	}

	var ids []int64
	indexName := ""
	for _, t := range tables {
		if t.indexName == "" {
			ids = nil
			break
		}
		if indexName == "" {
			indexName = t.indexName
		}
		ids = append(ids, t.ids...)
	}
	if ids != nil {
		out.SetIDs(indexName, ids)
	}
	return out, nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not an integer", v, v)
	}
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
