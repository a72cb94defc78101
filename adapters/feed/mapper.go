package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"strings"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"golang.org/x/net/html/charset"
)

// AcceptedTypes are the media types the feed API may answer with
var AcceptedTypes = []string{"application/atom+xml", "text/xml", "application/xml"}

func acceptedType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, t := range AcceptedTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// Link is an Atom hyperlink
type Link struct {
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
	Href string `xml:"href,attr"`
}

// Text is an Atom text construct. Nested inline markup is flattened.
type Text struct {
	Type  string
	Value string
}

func (t *Text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Space == "" && a.Name.Local == "type" {
			t.Type = a.Value
		}
	}
	v, err := flattenText(d)
	if err != nil {
		return err
	}
	t.Value = v
	return nil
}

// Element is a non-Atom child of an entry, with its text flattened
type Element struct {
	Name xml.Name
	Text string
}

func (e *Element) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	e.Name = start.Name
	v, err := flattenText(d)
	if err != nil {
		return err
	}
	e.Text = v
	return nil
}

// flattenText concatenates every descendant text node up to the end of
// the current element.
func flattenText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}

// Entry is one Atom entry: a worksheet, a cell or a list row
type Entry struct {
	ID         string    `xml:"http://www.w3.org/2005/Atom id"`
	Title      Text      `xml:"http://www.w3.org/2005/Atom title"`
	Content    Text      `xml:"http://www.w3.org/2005/Atom content"`
	Updated    string    `xml:"http://www.w3.org/2005/Atom updated"`
	Links      []Link    `xml:"http://www.w3.org/2005/Atom link"`
	Extensions []Element `xml:",any"`
}

// Feed is an Atom feed document
type Feed struct {
	Title        Text    `xml:"http://www.w3.org/2005/Atom title"`
	Updated      string  `xml:"http://www.w3.org/2005/Atom updated"`
	TotalResults int     `xml:"http://a9.com/-/spec/opensearchrss/1.0/ totalResults"`
	Links        []Link  `xml:"http://www.w3.org/2005/Atom link"`
	Entries      []Entry `xml:"http://www.w3.org/2005/Atom entry"`
}

// Document is a decoded response body; exactly one of Feed and Entry is set
type Document struct {
	Feed  *Feed
	Entry *Entry
}

// Decode parses a feed or entry document. A non-empty declaredCharset
// (from the Content-Type header) overrides the XML declaration.
func Decode(r io.Reader, declaredCharset string) (*Document, error) {
	if declaredCharset != "" && !strings.EqualFold(declaredCharset, "utf-8") {
		converted, err := charset.NewReaderLabel(declaredCharset, r)
		if err != nil {
			return nil, fmt.Errorf("%w: charset %q: %v", sheetfeed.ErrDecode, declaredCharset, err)
		}
		r = converted
	}
	d := xml.NewDecoder(r)
	if declaredCharset != "" {
		d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	} else {
		d.CharsetReader = charset.NewReaderLabel
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", sheetfeed.ErrDecode)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sheetfeed.ErrDecode, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if NamespaceOf(start.Name.Space) != NamespaceAtom {
			return nil, fmt.Errorf("%w: unexpected root element %s", sheetfeed.ErrDecode, qualifiedName(start.Name))
		}
		switch start.Name.Local {
		case "feed":
			var f Feed
			if err := d.DecodeElement(&f, &start); err != nil {
				return nil, fmt.Errorf("%w: %v", sheetfeed.ErrDecode, err)
			}
			return &Document{Feed: &f}, nil
		case "entry":
			var e Entry
			if err := d.DecodeElement(&e, &start); err != nil {
				return nil, fmt.Errorf("%w: %v", sheetfeed.ErrDecode, err)
			}
			return &Document{Entry: &e}, nil
		default:
			return nil, fmt.Errorf("%w: unexpected root element %s", sheetfeed.ErrDecode, qualifiedName(start.Name))
		}
	}
}

// FindLink returns the href of the single link with relation rel and an
// accepted feed media type. Zero or several matches is a decode error.
func FindLink(links []Link, rel string) (string, error) {
	href, n := matchLinks(links, rel)
	if n != 1 {
		return "", fmt.Errorf("%w: found %d links with rel %q, want exactly 1", sheetfeed.ErrDecode, n, rel)
	}
	return href, nil
}

// findOptionalLink is FindLink for links that read-only feeds omit
func findOptionalLink(links []Link, rel string) (string, error) {
	href, n := matchLinks(links, rel)
	if n > 1 {
		return "", fmt.Errorf("%w: found %d links with rel %q, want at most 1", sheetfeed.ErrDecode, n, rel)
	}
	return href, nil
}

func matchLinks(links []Link, rel string) (string, int) {
	var href string
	n := 0
	for _, l := range links {
		if l.Rel != rel || l.Href == "" || !acceptedType(l.Type) {
			continue
		}
		href = l.Href
		n++
	}
	return href, n
}

// DecodeEntry maps a list-feed entry to a record. Extension-namespace
// children become fields in document order.
func DecodeEntry(e *Entry) (*sheetfeed.Record, error) {
	edit, err := findOptionalLink(e.Links, RelEdit)
	if err != nil {
		return nil, err
	}
	rec := &sheetfeed.Record{EditLink: edit}
	for _, ext := range e.Extensions {
		if NamespaceOf(ext.Name.Space) != NamespaceExtended {
			continue
		}
		rec.Fields = append(rec.Fields, sheetfeed.Field{Name: ext.Name.Local, Value: ext.Text})
	}
	return rec, nil
}

// checkRecord verifies that every field is a schema column and that
// fields follow column order.
func checkRecord(rec *sheetfeed.Record, schema *sheetfeed.Schema) error {
	if schema == nil {
		return nil
	}
	last := -1
	for _, f := range rec.Fields {
		i, ok := schema.Index(f.Name)
		if !ok {
			return fmt.Errorf("%w: row field %q is not a known column", sheetfeed.ErrSchema, f.Name)
		}
		if i < last {
			return fmt.Errorf("%w: row field %q out of column order", sheetfeed.ErrSchema, f.Name)
		}
		last = i
	}
	return nil
}
