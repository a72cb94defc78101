package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"go.opentelemetry.io/otel/attribute"
)

// Worksheet is one entry of a spreadsheet's worksheets feed
type Worksheet struct {
	Title     string
	Updated   string
	ListFeed  string
	CellsFeed string
}

// Spreadsheet is the decoded worksheets feed
type Spreadsheet struct {
	Title      string
	Worksheets []Worksheet
}

// List is a page of list-feed rows
type List struct {
	Records      []*sheetfeed.Record
	TotalResults int
	// PostURL is where new rows are appended; empty for read-only feeds
	PostURL string
}

// SheetsAdaptor implements the Adapter interface for one worksheet of a
// spreadsheet served through the Atom feed API.
type SheetsAdaptor struct {
	config    Config
	key       string
	transport *Transport
	store     sheetfeed.CredentialStore

	worksheet *Worksheet
	schema    *sheetfeed.Schema
	postURL   string
}

// NewSheetsAdaptor creates an adaptor for the spreadsheet identified by
// key. A nil store makes every request anonymous.
func NewSheetsAdaptor(key string, config Config, store sheetfeed.CredentialStore) *SheetsAdaptor {
	config = config.withDefaults()
	var refresher Refresher
	if store != nil {
		refresher = &OAuthRefresher{TokenURL: config.TokenURL, HTTPClient: config.HTTPClient}
	}
	return &SheetsAdaptor{
		config:    config,
		key:       key,
		transport: NewTransport(config, refresher),
		store:     store,
	}
}

// do sends req with the stored credentials and keeps any refreshed token
func (a *SheetsAdaptor) do(ctx context.Context, req Request) (*Document, error) {
	var creds sheetfeed.Credentials
	if a.store != nil {
		creds = a.store.Credentials()
	}
	doc, updated, err := a.transport.Do(ctx, creds, req)
	if a.store != nil && updated != creds {
		a.store.Update(updated)
	}
	return doc, err
}

func (a *SheetsAdaptor) getFeed(ctx context.Context, href string) (*Feed, error) {
	doc, err := a.do(ctx, Request{Method: http.MethodGet, URL: href})
	if err != nil {
		return nil, err
	}
	if doc.Feed == nil {
		return nil, fmt.Errorf("%w: %s returned an entry, want a feed", sheetfeed.ErrDecode, href)
	}
	return doc.Feed, nil
}

// Open reads the spreadsheet's worksheets feed
func (a *SheetsAdaptor) Open(ctx context.Context) (*Spreadsheet, error) {
	ctx, span := tracer.Start(ctx, "sheets:Open")
	defer span.End()
	span.SetAttributes(attribute.String("spreadsheet", a.key))

	href, err := url.JoinPath(a.config.BaseURL, "feeds", "worksheets", a.key, a.config.Visibility, "full")
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", sheetfeed.ErrConfig, err)
	}
	feed, err := a.getFeed(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", a.key, err)
	}

	ss := &Spreadsheet{Title: feed.Title.Value}
	for _, e := range feed.Entries {
		ws := Worksheet{Title: e.Title.Value, Updated: e.Updated}
		if ws.ListFeed, err = FindLink(e.Links, RelListFeed); err != nil {
			return nil, fmt.Errorf("worksheet %q: %w", ws.Title, err)
		}
		if ws.CellsFeed, err = FindLink(e.Links, RelCellsFeed); err != nil {
			return nil, fmt.Errorf("worksheet %q: %w", ws.Title, err)
		}
		ss.Worksheets = append(ss.Worksheets, ws)
	}
	return ss, nil
}

// Select picks the configured worksheet, by title when one is set and by
// index otherwise.
func (a *SheetsAdaptor) Select(ss *Spreadsheet) (*Worksheet, error) {
	if a.config.Worksheet != "" {
		for i := range ss.Worksheets {
			if ss.Worksheets[i].Title == a.config.Worksheet {
				return &ss.Worksheets[i], nil
			}
		}
		return nil, fmt.Errorf("%w: no worksheet titled %q", sheetfeed.ErrConfig, a.config.Worksheet)
	}
	i := a.config.WorksheetIndex
	if i < 0 || i >= len(ss.Worksheets) {
		return nil, fmt.Errorf("%w: worksheet index %d out of range (%d worksheets)",
			sheetfeed.ErrConfig, i, len(ss.Worksheets))
	}
	return &ss.Worksheets[i], nil
}

// Columns reads the row 1 headings through the cells feed
func (a *SheetsAdaptor) Columns(ctx context.Context, ws *Worksheet) (*sheetfeed.Schema, error) {
	ctx, span := tracer.Start(ctx, "sheets:Columns")
	defer span.End()

	href, err := withProjection(ws.CellsFeed, "basic", url.Values{
		"min-row": {"1"},
		"max-row": {"1"},
	})
	if err != nil {
		return nil, err
	}
	feed, err := a.getFeed(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("failed to read headings: %w", err)
	}

	b := sheetfeed.NewSchemaBuilder()
	for _, e := range feed.Entries {
		if e.Title.Type != "text" || e.Content.Type != "text" {
			return nil, fmt.Errorf("%w: heading cell %q is not plain text", sheetfeed.ErrDecode, e.Title.Value)
		}
		if err := b.Add(e.Title.Value, e.Content.Value); err != nil {
			return nil, err
		}
	}
	return b.Schema(), nil
}

// Rows reads list-feed rows matching query
func (a *SheetsAdaptor) Rows(ctx context.Context, ws *Worksheet, schema *sheetfeed.Schema, query sheetfeed.Query) (*List, error) {
	ctx, span := tracer.Start(ctx, "sheets:Rows")
	defer span.End()

	params, err := query.Encode()
	if err != nil {
		return nil, err
	}
	href, err := withProjection(ws.ListFeed, "full", params)
	if err != nil {
		return nil, err
	}
	feed, err := a.getFeed(ctx, href)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	list := &List{TotalResults: feed.TotalResults}
	if list.PostURL, err = findOptionalLink(feed.Links, RelPost); err != nil {
		return nil, err
	}
	for i := range feed.Entries {
		rec, err := DecodeEntry(&feed.Entries[i])
		if err != nil {
			return nil, err
		}
		if err := checkRecord(rec, schema); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		list.Records = append(list.Records, rec)
	}
	span.SetAttributes(attribute.Int("rows", len(list.Records)))
	return list, nil
}

// Load implements sheetfeed.Adapter
func (a *SheetsAdaptor) Load(ctx context.Context, query sheetfeed.Query) (*sheetfeed.Schema, []*sheetfeed.Record, error) {
	ss, err := a.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	ws, err := a.Select(ss)
	if err != nil {
		return nil, nil, err
	}
	schema, err := a.Columns(ctx, ws)
	if err != nil {
		return nil, nil, err
	}
	list, err := a.Rows(ctx, ws, schema, query)
	if err != nil {
		return nil, nil, err
	}

	a.worksheet = ws
	a.schema = schema
	a.postURL = list.PostURL
	return schema, list.Records, nil
}

// Update implements sheetfeed.Adapter. The whole row is sent to its edit
// link with one cell changed.
func (a *SheetsAdaptor) Update(ctx context.Context, row *sheetfeed.Record, column, value string) (*sheetfeed.Record, error) {
	if row.EditLink == "" {
		return nil, fmt.Errorf("%w: row has no edit link, feed is read-only", sheetfeed.ErrDecode)
	}
	changed := row.Clone()
	changed.Set(column, value)
	if a.schema != nil {
		changed.Fields = orderFields(changed.Fields, a.schema)
	}
	return a.write(ctx, http.MethodPut, row.EditLink, changed.Fields)
}

// Append implements sheetfeed.Adapter
func (a *SheetsAdaptor) Append(ctx context.Context, fields []sheetfeed.Field) (*sheetfeed.Record, error) {
	if a.postURL == "" {
		return nil, fmt.Errorf("%w: list feed has no post link, load it first", sheetfeed.ErrDecode)
	}
	if a.schema != nil {
		fields = orderFields(fields, a.schema)
	}
	return a.write(ctx, http.MethodPost, a.postURL, fields)
}

func (a *SheetsAdaptor) write(ctx context.Context, method, href string, fields []sheetfeed.Field) (*sheetfeed.Record, error) {
	ctx, span := tracer.Start(ctx, "sheets:"+strings.ToLower(method))
	defer span.End()

	doc, err := a.do(ctx, Request{Method: method, URL: href, Entry: FieldsEntry(fields)})
	if err != nil {
		return nil, err
	}
	if doc.Entry == nil {
		return nil, fmt.Errorf("%w: %s %s returned a feed, want an entry", sheetfeed.ErrDecode, method, href)
	}
	rec, err := DecodeEntry(doc.Entry)
	if err != nil {
		return nil, err
	}
	if err := checkRecord(rec, a.schema); err != nil {
		return nil, err
	}
	return rec, nil
}

// orderFields sorts fields into schema column order, keeping unknown
// names at the end for the server to reject.
func orderFields(fields []sheetfeed.Field, schema *sheetfeed.Schema) []sheetfeed.Field {
	out := make([]sheetfeed.Field, 0, len(fields))
	for _, name := range schema.Names() {
		for _, f := range fields {
			if f.Name == name {
				out = append(out, f)
			}
		}
	}
	for _, f := range fields {
		if _, ok := schema.Index(f.Name); !ok {
			out = append(out, f)
		}
	}
	return out
}

// withProjection swaps the projection path segment of a feed link and
// replaces its query.
func withProjection(href, projection string, params url.Values) (string, error) {
	base, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: bad feed link %q: %v", sheetfeed.ErrDecode, href, err)
	}
	ref := &url.URL{Path: projection, RawQuery: params.Encode()}
	return base.ResolveReference(ref).String(), nil
}
