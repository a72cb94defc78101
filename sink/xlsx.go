package sink

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet XLSX writes to when none is given
const DefaultSheetName = "Sheet1"

// XLSX writes rows into a single worksheet of a new workbook. The workbook
// is serialized to the output on Close.
type XLSX struct {
	shape
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	bold   int
	line   int
}

func NewXLSX(out io.Writer, sheetName string) (*XLSX, error) {
	f := excelize.NewFile()
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if sheetName != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	stream, err := f.NewStreamWriter(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}
	return &XLSX{out: out, file: f, stream: stream, bold: bold}, nil
}

func (x *XLSX) WriteHeader(header []string) error {
	if err := x.begin(header); err != nil {
		return err
	}
	values := make([]interface{}, len(header))
	for i, h := range header {
		values[i] = excelize.Cell{StyleID: x.bold, Value: h}
	}
	return x.setRow(values)
}

func (x *XLSX) WriteRow(row []string) error {
	if err := x.add(row); err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = cellValue(v)
	}
	return x.setRow(values)
}

func (x *XLSX) setRow(values []interface{}) error {
	x.line++
	cell, err := excelize.CoordinatesToCellName(1, x.line)
	if err != nil {
		return err
	}
	if err := x.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", x.line, err)
	}
	return nil
}

// cellValue stores numeric text as a number when formatting it back gives
// the same text, so "007" and "1e3" stay strings
func cellValue(s string) interface{} {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || strconv.FormatFloat(f, 'f', -1, 64) != s {
		return s
	}
	return f
}

// Close writes the workbook to the output
func (x *XLSX) Close() error {
	if !x.close() {
		return nil
	}
	defer x.file.Close()
	if err := x.stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := x.file.Write(x.out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
