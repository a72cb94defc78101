package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Namespace identifies the XML vocabularies that appear in feed documents
type Namespace int

const (
	NamespaceUnknown Namespace = iota
	NamespaceAtom
	NamespaceOpenSearch
	NamespaceSheets
	NamespaceExtended
	NamespaceGData
)

const (
	AtomNS       = "http://www.w3.org/2005/Atom"
	OpenSearchNS = "http://a9.com/-/spec/opensearchrss/1.0/"
	SheetsNS     = "http://schemas.google.com/spreadsheets/2006"
	ExtendedNS   = SheetsNS + "/extended"
	GDataNS      = "http://schemas.google.com/g/2005"
)

// Link relations used to navigate between feeds
const (
	RelListFeed  = SheetsNS + "#listfeed"
	RelCellsFeed = SheetsNS + "#cellsfeed"
	RelPost      = GDataNS + "#post"
	RelEdit      = "edit"
	RelSelf      = "self"
)

// NamespaceOf classifies a namespace URI
func NamespaceOf(uri string) Namespace {
	switch uri {
	case AtomNS:
		return NamespaceAtom
	case OpenSearchNS:
		return NamespaceOpenSearch
	case SheetsNS:
		return NamespaceSheets
	case ExtendedNS:
		return NamespaceExtended
	case GDataNS:
		return NamespaceGData
	}
	return NamespaceUnknown
}

// Prefix returns the short prefix used when printing names in ns
func (ns Namespace) Prefix() string {
	switch ns {
	case NamespaceAtom:
		return ""
	case NamespaceOpenSearch:
		return "os:"
	case NamespaceSheets:
		return "gs:"
	case NamespaceExtended:
		return "gsx:"
	case NamespaceGData:
		return "gd:"
	}
	return "?:"
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	ns := NamespaceOf(name.Space)
	if ns == NamespaceUnknown {
		return "{" + name.Space + "}" + name.Local
	}
	return ns.Prefix() + name.Local
}

// DumpTree writes an indented outline of an XML document: one line per
// element with its sorted attributes, and quoted non-blank text.
func DumpTree(w io.Writer, r io.Reader) error {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	depth := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read xml: %w", err)
		}
		indent := strings.Repeat("  ", depth)
		switch t := tok.(type) {
		case xml.StartElement:
			attrs := make([]string, 0, len(t.Attr))
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				attrs = append(attrs, " "+qualifiedName(a.Name)+"="+strconv.Quote(a.Value))
			}
			sort.Strings(attrs)
			if _, err := fmt.Fprintf(w, "%s%s%s\n", indent, qualifiedName(t.Name), strings.Join(attrs, "")); err != nil {
				return err
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if strings.TrimSpace(string(t)) == "" {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s%s\n", indent, strconv.Quote(string(t))); err != nil {
				return err
			}
		}
	}
}
