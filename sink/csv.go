package sink

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSV writes rows as comma-separated values
type CSV struct {
	shape
	w *csv.Writer
}

func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

func (c *CSV) WriteHeader(header []string) error {
	if err := c.begin(header); err != nil {
		return err
	}
	return c.write(header)
}

func (c *CSV) WriteRow(row []string) error {
	if err := c.add(row); err != nil {
		return err
	}
	return c.write(row)
}

func (c *CSV) write(record []string) error {
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("failed to write csv record: %w", err)
	}
	return nil
}

// Close flushes buffered records. It does not close the underlying writer.
func (c *CSV) Close() error {
	if !c.close() {
		return nil
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
