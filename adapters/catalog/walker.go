package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	sheetfeed "github.com/ideamans/go-sheetfeed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
)

// Page is one scraped listing page
type Page struct {
	Number  int
	URL     string
	Cached  bool
	Counter int
	Header  []string
	Rows    [][]string
	// Next is the absolute URL of the following page, empty on the last
	Next string
}

// Walker follows rel=next links from a start page. Every page must report
// the same counter and header as the first, every row must match the header
// width, and the row total must equal the counter once the last page is
// read. A Walker is not restartable.
type Walker struct {
	cache  *Cache
	layout Layout

	next    string
	page    int
	counter int
	header  []string
	total   int
	done    bool
}

func NewWalker(cache *Cache, layout Layout, start string) *Walker {
	return &Walker{cache: cache, layout: layout, next: start}
}

// Header returns the header of the first page, nil before it is read
func (w *Walker) Header() []string {
	return w.header
}

// Next fetches and checks the following page. After the last page it
// verifies the row total and returns io.EOF.
func (w *Walker) Next(ctx context.Context) (*Page, error) {
	if w.done {
		if w.total != w.counter {
			return nil, &sheetfeed.ConsistencyFault{
				What: "total",
				Want: strconv.Itoa(w.counter),
				Got:  strconv.Itoa(w.total),
			}
		}
		return nil, io.EOF
	}

	ctx, span := tracer.Start(ctx, "walker:Next")
	defer span.End()
	span.SetAttributes(attribute.Int("page", w.page+1), attribute.String("url", w.next))

	page, err := w.fetch(ctx, w.next)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page")
		return nil, err
	}
	w.page++
	page.Number = w.page

	if err := w.check(page); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inconsistent page")
		return nil, err
	}
	w.total += len(page.Rows)
	if page.Next == "" {
		w.done = true
	}
	w.next = page.Next
	return page, nil
}

// Walk calls fn for every page until the listing ends or an error occurs
func (w *Walker) Walk(ctx context.Context, fn func(*Page) error) error {
	for {
		page, err := w.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
	}
}

func (w *Walker) check(page *Page) error {
	if w.page == 1 {
		w.counter = page.Counter
		w.header = page.Header
	} else {
		if page.Counter != w.counter {
			return &sheetfeed.ConsistencyFault{
				Page: w.page,
				What: "counter",
				Want: strconv.Itoa(w.counter),
				Got:  strconv.Itoa(page.Counter),
			}
		}
		if !slices.Equal(page.Header, w.header) {
			return &sheetfeed.ConsistencyFault{
				Page: w.page,
				What: "header",
				Want: strings.Join(w.header, " | "),
				Got:  strings.Join(page.Header, " | "),
			}
		}
	}
	for i, row := range page.Rows {
		if len(row) != len(w.header) {
			return &sheetfeed.ConsistencyFault{
				Page: w.page,
				What: "row arity",
				Want: strconv.Itoa(len(w.header)),
				Got:  fmt.Sprintf("%d in row %d", len(row), i+1),
			}
		}
	}
	return nil
}

func (w *Walker) fetch(ctx context.Context, pageURL string) (*Page, error) {
	entry, err := w.cache.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer entry.Body.Close()

	r, err := charset.NewReader(entry.Body, entry.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: page %s: %v", sheetfeed.ErrDecode, pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	// the cache entry only completes once the whole body is consumed
	if _, err := io.Copy(io.Discard, entry.Body); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	page := &Page{URL: pageURL, Cached: entry.Cached}
	if page.Counter, err = w.layout.Counter(doc); err != nil {
		return nil, fmt.Errorf("page %s: %w", pageURL, err)
	}
	if page.Header, err = w.layout.Header(doc); err != nil {
		return nil, fmt.Errorf("page %s: %w", pageURL, err)
	}
	if page.Rows, err = w.layout.Rows(doc); err != nil {
		return nil, fmt.Errorf("page %s: %w", pageURL, err)
	}
	if page.Next, err = nextLink(doc, pageURL); err != nil {
		return nil, fmt.Errorf("page %s: %w", pageURL, err)
	}
	return page, nil
}

// nextLink resolves the page's single <link rel="next">, if any
func nextLink(doc *goquery.Document, pageURL string) (string, error) {
	links := doc.Find(`link[rel="next"]`)
	switch links.Length() {
	case 0:
		return "", nil
	case 1:
	default:
		return "", decodeErr("found %d next links, want at most 1", links.Length())
	}
	href, ok := links.Attr("href")
	if !ok || href == "" {
		return "", decodeErr("next link has no href")
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", decodeErr("bad next link %q: %v", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
