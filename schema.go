package sheetfeed

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NormalizeName derives the feed's column name from a display heading:
// lower-cased, with everything but letters and digits removed.
func NormalizeName(heading string) string {
	var b strings.Builder
	for _, r := range heading {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Column pairs a display heading with its normalized name
type Column struct {
	Heading string
	Name    string
}

// Schema is the ordered column list taken from row 1 of a worksheet
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema builds a schema from headings in column order.
// Headings that normalize to the same name are rejected.
func NewSchema(headings []string) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(headings))}
	for _, h := range headings {
		if err := s.add(h); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) add(heading string) error {
	name := NormalizeName(heading)
	if name == "" {
		return fmt.Errorf("%w: heading %q has no letters or digits", ErrSchema, heading)
	}
	if prev, exists := s.index[name]; exists {
		return fmt.Errorf("%w: heading %q collides with %q as %q",
			ErrSchema, heading, s.columns[prev].Heading, name)
	}
	s.index[name] = len(s.columns)
	s.columns = append(s.columns, Column{Heading: heading, Name: name})
	return nil
}

// Len returns the number of columns
func (s *Schema) Len() int {
	return len(s.columns)
}

// Columns returns a copy of the columns
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Index returns the position of a normalized column name
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Headings returns display headings in column order
func (s *Schema) Headings() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Heading
	}
	return out
}

// Names returns normalized names in column order
func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// Lookup resolves either a heading or a normalized name to a column name
func (s *Schema) Lookup(col string) (string, bool) {
	if _, ok := s.index[col]; ok {
		return col, true
	}
	name := NormalizeName(col)
	if _, ok := s.index[name]; ok {
		return name, true
	}
	return "", false
}

// SchemaBuilder accepts heading cells in feed order and enforces that they
// sit on row 1 and arrive as A1, B1, C1, ... without gaps.
type SchemaBuilder struct {
	schema *Schema
}

func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{schema: &Schema{index: make(map[string]int)}}
}

// Add appends the heading found at the given cell address
func (b *SchemaBuilder) Add(address, heading string) error {
	col, row, err := ParseCellAddress(address)
	if err != nil {
		return err
	}
	if row != 1 {
		return fmt.Errorf("%w: heading cell %s is not on row 1", ErrSchema, address)
	}
	if want := b.schema.Len(); col != want {
		return fmt.Errorf("%w: heading cell %s out of order, expected column %s",
			ErrSchema, address, ColumnLetters(want))
	}
	return b.schema.add(heading)
}

// Schema returns the schema built so far
func (b *SchemaBuilder) Schema() *Schema {
	return b.schema
}

// ParseCellAddress splits an A1-style address into a 0-based column index
// and a 1-based row number.
func ParseCellAddress(address string) (col int, row int, err error) {
	i := 0
	col = 0
	for i < len(address) && address[i] >= 'A' && address[i] <= 'Z' {
		col = col*26 + int(address[i]-'A') + 1
		i++
	}
	if i == 0 || i == len(address) {
		return 0, 0, fmt.Errorf("%w: bad cell address %q", ErrSchema, address)
	}
	row, err = strconv.Atoi(address[i:])
	if err != nil || address[i] < '1' || address[i] > '9' {
		return 0, 0, fmt.Errorf("%w: bad cell address %q", ErrSchema, address)
	}
	return col - 1, row, nil
}

// ColumnLetters renders a 0-based column index as spreadsheet letters
func ColumnLetters(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
