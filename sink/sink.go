// Package sink writes tabular rows to CSV, XLSX and terminal tables. Every
// sink accepts one header followed by rows of the same width.
package sink

import (
	"fmt"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

var (
	_ sheetfeed.Sink = (*CSV)(nil)
	_ sheetfeed.Sink = (*XLSX)(nil)
	_ sheetfeed.Sink = (*Table)(nil)
)

// shape enforces the header-then-rows protocol shared by all sinks
type shape struct {
	width  int
	header bool
	rows   int
	closed bool
}

func (s *shape) begin(header []string) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.header:
		return ErrHeaderOrder
	}
	s.header = true
	s.width = len(header)
	return nil
}

func (s *shape) add(row []string) error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.header:
		return ErrHeaderOrder
	case len(row) != s.width:
		return fmt.Errorf("%w: row %d has %d cells, header has %d", ErrArity, s.rows+1, len(row), s.width)
	}
	s.rows++
	return nil
}

// close reports whether this is the first close
func (s *shape) close() bool {
	if s.closed {
		return false
	}
	s.closed = true
	return true
}
