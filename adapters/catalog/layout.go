package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	sheetfeed "github.com/ideamans/go-sheetfeed"
	"golang.org/x/net/html"
)

// Layout extracts the listing from one parsed page
type Layout interface {
	// Counter returns the total number of rows the listing claims to have
	Counter(doc *goquery.Document) (int, error)
	Header(doc *goquery.Document) ([]string, error)
	Rows(doc *goquery.Document) ([][]string, error)
}

// getText concatenates every text node under node
func getText(node *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}

func selectionText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		b.WriteString(getText(n))
	}
	return b.String()
}

func decodeErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{sheetfeed.ErrDecode}, args...)...)
}

// single requires sel to hold exactly one node
func single(sel *goquery.Selection, what string) (*goquery.Selection, error) {
	if n := sel.Length(); n != 1 {
		return nil, decodeErr("found %d %s, want exactly 1", n, what)
	}
	return sel, nil
}

func parseCounter(doc *goquery.Document, selector string) (int, error) {
	sel, err := single(doc.Find(selector), "counters "+strconv.Quote(selector))
	if err != nil {
		return 0, err
	}
	text := strings.ReplaceAll(strings.TrimSpace(selectionText(sel)), ",", "")
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, decodeErr("counter %q is not a number", text)
	}
	return n, nil
}

func cellTexts(row *goquery.Selection, cells string) []string {
	var out []string
	row.Find(cells).Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(selectionText(cell)))
	})
	return out
}

// TableLayout reads a listing laid out as plain HTML tables
type TableLayout struct {
	CounterSelector string
	// HeaderSelector matches the one element whose first row holds headings
	HeaderSelector string
	// RowSelector matches each data row
	RowSelector string
	// CellSelector matches cells within a row, "td, th" when empty
	CellSelector string
}

func (l TableLayout) cells() string {
	if l.CellSelector == "" {
		return "td, th"
	}
	return l.CellSelector
}

func (l TableLayout) Counter(doc *goquery.Document) (int, error) {
	return parseCounter(doc, l.CounterSelector)
}

func (l TableLayout) Header(doc *goquery.Document) ([]string, error) {
	table, err := single(doc.Find(l.HeaderSelector), "header tables")
	if err != nil {
		return nil, err
	}
	row := table.Find("tr").First()
	if row.Length() == 0 {
		return nil, decodeErr("header table has no rows")
	}
	return cellTexts(row, l.cells()), nil
}

func (l TableLayout) Rows(doc *goquery.Document) ([][]string, error) {
	var rows [][]string
	doc.Find(l.RowSelector).Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, cellTexts(row, l.cells()))
	})
	return rows, nil
}

// PartDetails are the labelled items of a product's part details cell
var PartDetails = []string{"RS Stock No.", "Brand", "Mfr. Part No."}

// ProductLayout reads an electronics distributor's product listing. The
// description cell is expanded into link, description, price and packaging
// columns, and the part details cell into one column per PartDetails label.
type ProductLayout struct{}

func (ProductLayout) Counter(doc *goquery.Document) (int, error) {
	return parseCounter(doc, ".mpcCounter")
}

func (ProductLayout) Header(doc *goquery.Document) ([]string, error) {
	table, err := single(doc.Find("table.srtnTblHeader"), "header tables")
	if err != nil {
		return nil, err
	}
	cells := cellTexts(table.Find("tr").First(), "td")
	if len(cells) < 2 {
		return nil, decodeErr("header has %d cells, want at least 2", len(cells))
	}
	if cells[1] != "Part Details" {
		return nil, decodeErr("second header cell is %q, want Part Details", cells[1])
	}

	header := []string{"href", "prodDesc", cells[0], "pricing", "packaging", "pack size", "min packs"}
	header = append(header, PartDetails...)
	return append(header, cells[2:]...), nil
}

func (ProductLayout) Rows(doc *goquery.Document) ([][]string, error) {
	table, err := single(doc.Find("table.srtnListTbl"), "listing tables")
	if err != nil {
		return nil, err
	}
	var rows [][]string
	var rowErr error
	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		row, err := productRow(tr)
		if err != nil {
			rowErr = fmt.Errorf("listing row %d: %w", i+1, err)
			return false
		}
		rows = append(rows, row)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return rows, nil
}

func productRow(tr *goquery.Selection) ([]string, error) {
	cells := tr.Find("td")
	if cells.Length() < 2 {
		return nil, decodeErr("row has %d cells, want at least 2", cells.Length())
	}

	desc := cells.Eq(0)
	link, err := single(desc.Find("a.tnProdDesc"), "product links")
	if err != nil {
		return nil, err
	}
	href, _ := link.Attr("href")
	row := []string{href, strings.TrimSpace(selectionText(link))}

	pricing, err := productPricing(desc)
	if err != nil {
		return nil, err
	}
	row = append(row, pricing...)

	details, err := partDetails(cells.Eq(1))
	if err != nil {
		return nil, err
	}
	row = append(row, details...)

	cells.Slice(2, cells.Length()).Each(func(_ int, td *goquery.Selection) {
		row = append(row, strings.TrimSpace(selectionText(td)))
	})
	return row, nil
}

const (
	packPrefix = "Each (In a "
	packSuffix = ")"
)

// productPricing returns the price followed by the per-unit count, the
// packaging, the pack size and the minimum number of packs.
func productPricing(desc *goquery.Selection) ([]string, error) {
	// the price block is the element whose first child is a span of class price
	block := desc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		first := s.Children().First()
		return first.Is("span") && first.HasClass("price")
	})
	block, err := single(block, "price blocks")
	if err != nil {
		return nil, err
	}
	children := block.Children()
	price := selectionText(children.First())
	unit := selectionText(children.Slice(1, children.Length()))

	qtyInput, err := single(desc.Find(".qty input"), "quantity inputs")
	if err != nil {
		return nil, err
	}
	qtyValue, _ := qtyInput.Attr("value")
	qty, err := strconv.Atoi(qtyValue)
	if err != nil {
		return nil, decodeErr("quantity %q is not a number", qtyValue)
	}
	minQty := strconv.Itoa(qty)

	switch {
	case unit == "Each":
		return []string{price, "1", "Each", "1", minQty}, nil

	case strings.HasPrefix(unit, packPrefix) && strings.HasSuffix(unit, packSuffix):
		packaging, size, err := splitPack(unit[len(packPrefix) : len(unit)-len(packSuffix)])
		if err != nil {
			return nil, err
		}
		if size != minQty {
			return nil, decodeErr("pack of %s but minimum quantity %s", size, minQty)
		}
		return []string{price, "1", packaging, size, "1"}, nil

	case strings.HasPrefix(unit, "1 "):
		packaging, size, err := splitPack(unit[len("1 "):])
		if err != nil {
			return nil, err
		}
		return []string{price, size, packaging, size, minQty}, nil
	}
	return nil, decodeErr("unrecognised pricing unit %q", unit)
}

// splitPack splits "Tube of 50" into "Tube" and "50"
func splitPack(s string) (string, string, error) {
	i := strings.LastIndex(s, " of ")
	if i < 0 {
		return "", "", decodeErr("pack description %q has no size", s)
	}
	size := s[i+len(" of "):]
	if _, err := strconv.Atoi(size); err != nil {
		return "", "", decodeErr("pack size %q is not a number", size)
	}
	return s[:i], size, nil
}

// partDetails reads one value per PartDetails label from the list items of
// cell. Only the manufacturer part number may be missing.
func partDetails(cell *goquery.Selection) ([]string, error) {
	items := cell.Find("li")
	out := make([]string, 0, len(PartDetails))
	for i, label := range PartDetails {
		if i >= items.Length() {
			if label != "Mfr. Part No." {
				return nil, decodeErr("part details missing %q", label)
			}
			out = append(out, "")
			continue
		}
		children := items.Eq(i).Children()
		if got := selectionText(children.First()); got != label {
			return nil, decodeErr("part detail %d is %q, want %q", i+1, got, label)
		}
		out = append(out, strings.TrimSpace(selectionText(children.Slice(1, children.Length()))))
	}
	return out, nil
}
