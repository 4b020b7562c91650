package table

// Row maps a column name to an untyped cell. Cells are strings, numbers,
// time.Time values or nil, depending on where the table was loaded from.
type Row map[string]interface{}

// RawTable represents a loaded file or database table before any cleaning
type RawTable struct {
	Columns []string
	Rows    []Row
	Source  string
}

// New creates an empty table with the given header
func New(columns ...string) *RawTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &RawTable{Columns: cols}
}

// Append adds a row built from positional values. Missing trailing values
// are stored as nil.
func (t *RawTable) Append(values ...interface{}) {
	row := make(Row, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = nil
		}
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of data rows
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the header contains name
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the cells of a column in row order
func (t *RawTable) Column(name string) []interface{} {
	out := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[name]
	}
	return out
}
