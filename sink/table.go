package sink

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows as a boxed terminal table once closed
type Table struct {
	shape
	t table.Writer
}

func NewTable(out io.Writer) *Table {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return &Table{t: t}
}

func (t *Table) WriteHeader(header []string) error {
	if err := t.begin(header); err != nil {
		return err
	}
	t.t.AppendHeader(toRow(header))
	return nil
}

func (t *Table) WriteRow(row []string) error {
	if err := t.add(row); err != nil {
		return err
	}
	t.t.AppendRow(toRow(row))
	return nil
}

func (t *Table) Close() error {
	if t.close() {
		t.t.Render()
	}
	return nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
