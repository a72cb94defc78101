package sheetfeed

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig         = errors.New("invalid configuration")
	ErrAuth           = errors.New("authentication failed")
	ErrReauthRequired = fmt.Errorf("%w: refresh token rejected, authorization must be re-run", ErrAuth)
	ErrProtocol       = errors.New("unexpected response from remote api")
	ErrDecode         = fmt.Errorf("%w: decode", ErrProtocol)
	ErrSchema         = fmt.Errorf("%w: schema violation", ErrProtocol)
	ErrConflict       = errors.New("conflicting remote change")
	ErrConsistency    = errors.New("consistency fault")
	ErrClosed         = errors.New("client is closed")
)

// ConflictError is returned when the feed rejects a row update with HTTP 409.
// Current holds the row as the server has it now, for manual reconciliation.
type ConflictError struct {
	Method  string
	URL     string
	Current *Record
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s: row was changed remotely", e.Method, e.URL)
	if e.Current == nil {
		return msg
	}
	fields := make([]string, len(e.Current.Fields))
	for i, f := range e.Current.Fields {
		fields[i] = f.Name + "=" + f.Value
	}
	return msg + "; server has " + strings.Join(fields, ", ")
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConsistencyFault reports a scraped value that disagrees with the value
// observed on the first page of a walk.
type ConsistencyFault struct {
	Page int    // 1-based page number, 0 when detected after the walk
	What string // "counter", "header", "row arity" or "total"
	Want string
	Got  string
}

func (e *ConsistencyFault) Error() string {
	if e.Page == 0 {
		return fmt.Sprintf("consistency fault: %s: want %s, got %s", e.What, e.Want, e.Got)
	}
	return fmt.Sprintf("consistency fault on page %d: %s: want %s, got %s", e.Page, e.What, e.Want, e.Got)
}

func (e *ConsistencyFault) Is(target error) bool {
	return target == ErrConsistency
}
