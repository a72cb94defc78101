package sheetfeed

// Field is one cell of a row, keyed by its normalized column name.
type Field struct {
	Name  string
	Value string
}

// Record is a decoded list-feed row. Fields keep document order.
type Record struct {
	Fields   []Field
	EditLink string // target for PUT updates of this row
}

// Get returns the value of the named column
func (r *Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of the named column, appending the field when absent
func (r *Record) Set(name, value string) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	fields := make([]Field, len(r.Fields))
	copy(fields, r.Fields)
	return &Record{Fields: fields, EditLink: r.EditLink}
}

// Row lays the record out along schema, leaving missing columns empty
func (r *Record) Row(schema *Schema) []string {
	row := make([]string, schema.Len())
	for _, f := range r.Fields {
		if i, ok := schema.Index(f.Name); ok {
			row[i] = f.Value
		}
	}
	return row
}
