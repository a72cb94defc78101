package sink

import "errors"

var (
	// ErrHeaderOrder is returned when a row precedes the header or the header
	// is written twice
	ErrHeaderOrder = errors.New("header must be written exactly once, before any row")

	// ErrArity is returned when a row's width differs from the header's
	ErrArity = errors.New("row width does not match header")

	// ErrClosed is returned when writing to a closed sink
	ErrClosed = errors.New("sink is closed")
)
