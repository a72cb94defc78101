package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

// EntryFunc fills in the fields of a request entry
type EntryFunc func(w *EntryWriter) error

// EntryWriter emits one <entry> document with a gsx element per field.
// Use BeginEntry, then Field for each value, then Finish.
type EntryWriter struct {
	enc      *xml.Encoder
	finished bool
}

var errEntryFinished = errors.New("entry already finished")

// BeginEntry writes the document start and the opening entry tag
func BeginEntry(w io.Writer) (*EntryWriter, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, err
	}
	enc := xml.NewEncoder(w)
	start := xml.StartElement{
		Name: xml.Name{Local: "entry"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: AtomNS},
			{Name: xml.Name{Local: "xmlns:gsx"}, Value: ExtendedNS},
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	return &EntryWriter{enc: enc}, nil
}

// Field writes <gsx:name>value</gsx:name>
func (w *EntryWriter) Field(name, value string) error {
	if w.finished {
		return errEntryFinished
	}
	if name == "" || sheetfeed.NormalizeName(name) != name {
		return fmt.Errorf("invalid field name %q", name)
	}
	el := xml.Name{Local: "gsx:" + name}
	if err := w.enc.EncodeToken(xml.StartElement{Name: el}); err != nil {
		return err
	}
	if err := w.enc.EncodeToken(xml.CharData(value)); err != nil {
		return err
	}
	return w.enc.EncodeToken(xml.EndElement{Name: el})
}

// Finish closes the entry and flushes the document
func (w *EntryWriter) Finish() error {
	if w.finished {
		return errEntryFinished
	}
	w.finished = true
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "entry"}}); err != nil {
		return err
	}
	return w.enc.Flush()
}

// writeEntry runs the whole begin/fill/finish protocol against w
func writeEntry(w io.Writer, fill EntryFunc) error {
	ew, err := BeginEntry(w)
	if err != nil {
		return err
	}
	if err := fill(ew); err != nil {
		return err
	}
	return ew.Finish()
}

// FieldsEntry returns an EntryFunc writing the given fields in order
func FieldsEntry(fields []sheetfeed.Field) EntryFunc {
	return func(w *EntryWriter) error {
		for _, f := range fields {
			if err := w.Field(f.Name, f.Value); err != nil {
				return err
			}
		}
		return nil
	}
}

// bufferedBody encodes the whole entry up front so the request carries a
// Content-Length and an encoder error never reaches the wire.
func bufferedBody(fill EntryFunc) (io.Reader, int64, error) {
	var buf bytes.Buffer
	if err := writeEntry(&buf, fill); err != nil {
		return nil, 0, fmt.Errorf("failed to encode entry: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil
}

// streamingBody encodes the entry while it is being sent. The returned
// length is -1, which makes net/http use chunked transfer-encoding. An
// encoder error aborts the request body, and net/http closes rather than
// reuses a connection whose request body failed.
func streamingBody(fill EntryFunc) (io.ReadCloser, int64) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeEntry(pw, fill))
	}()
	return pr, -1
}
