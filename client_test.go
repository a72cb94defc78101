package sheetfeed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	sheetfeed "github.com/ideamans/go-sheetfeed"
)

// fakeAdapter serves fixed rows and records the mutations it receives
type fakeAdapter struct {
	schema    *sheetfeed.Schema
	rows      []*sheetfeed.Record
	query     sheetfeed.Query
	updateErr error
	updates   []string
	appended  [][]sheetfeed.Field
}

func (a *fakeAdapter) Load(ctx context.Context, query sheetfeed.Query) (*sheetfeed.Schema, []*sheetfeed.Record, error) {
	a.query = query
	return a.schema, a.rows, nil
}

func (a *fakeAdapter) Update(ctx context.Context, r *sheetfeed.Record, column, value string) (*sheetfeed.Record, error) {
	a.updates = append(a.updates, column+"="+value)
	if a.updateErr != nil {
		return nil, a.updateErr
	}
	updated := r.Clone()
	updated.Set(column, value)
	updated.EditLink = r.EditLink + "/v2"
	return updated, nil
}

func (a *fakeAdapter) Append(ctx context.Context, fields []sheetfeed.Field) (*sheetfeed.Record, error) {
	a.appended = append(a.appended, fields)
	return &sheetfeed.Record{Fields: fields, EditLink: "edit/new"}, nil
}

type fakeStore struct {
	creds   sheetfeed.Credentials
	flushes int
	err     error
}

func (s *fakeStore) Credentials() sheetfeed.Credentials { return s.creds }
func (s *fakeStore) Update(c sheetfeed.Credentials)     { s.creds = c }
func (s *fakeStore) Flush() error                       { s.flushes++; return s.err }

func newFakeAdapter(t *testing.T) *fakeAdapter {
	t.Helper()
	schema, err := sheetfeed.NewSchema([]string{"Name", "Unit Price"})
	if err != nil {
		t.Fatal(err)
	}
	return &fakeAdapter{
		schema: schema,
		rows: []*sheetfeed.Record{
			{Fields: []sheetfeed.Field{{Name: "name", Value: "bolt"}, {Name: "unitprice", Value: "0.10"}}, EditLink: "edit/1"},
			{Fields: []sheetfeed.Field{{Name: "name", Value: "nut"}}, EditLink: "edit/2"},
		},
	}
}

func openClient(t *testing.T, adapter sheetfeed.Adapter, store sheetfeed.CredentialStore, config *sheetfeed.Config) *sheetfeed.Client {
	t.Helper()
	client := sheetfeed.New(adapter, store, config)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return client
}

func TestClient_Initialize(t *testing.T) {
	adapter := newFakeAdapter(t)
	query := sheetfeed.Query{OrderBy: "name", Limit: 5}
	client := openClient(t, adapter, nil, &sheetfeed.Config{Query: query})
	defer client.Close()

	if diff := cmp.Diff(query, adapter.query); diff != "" {
		t.Errorf("adapter query mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Name", "Unit Price"}, client.Schema().Headings()); diff != "" {
		t.Errorf("Headings() mismatch (-want +got):\n%s", diff)
	}
	if len(client.Rows()) != 2 {
		t.Errorf("Rows() = %d rows, want 2", len(client.Rows()))
	}

	got, err := client.Query(sheetfeed.Query{Conditions: []sheetfeed.Condition{{Column: "name", Operator: "==", Value: "nut"}}})
	if err != nil || len(got) != 1 {
		t.Errorf("Query() = %d rows, %v, want 1 row", len(got), err)
	}
	if _, err := client.Query(sheetfeed.Query{Limit: -1}); err == nil {
		t.Error("Query() should validate")
	}
}

func TestClient_ApplyUpdate(t *testing.T) {
	adapter := newFakeAdapter(t)
	client := openClient(t, adapter, nil, nil)
	defer client.Close()

	updated, err := client.Apply(context.Background(), sheetfeed.Operation{
		Type: sheetfeed.OpUpdate, Row: 0, Column: "Unit Price", Value: "0.12",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if diff := cmp.Diff([]string{"unitprice=0.12"}, adapter.updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if updated.EditLink != "edit/1/v2" {
		t.Errorf("EditLink = %q, want edit/1/v2", updated.EditLink)
	}
	cached, _ := client.Get(0)
	if diff := cmp.Diff(updated, cached); diff != "" {
		t.Errorf("cached row not replaced (-want +got):\n%s", diff)
	}
}

func TestClient_ApplyUpdateFailureKeepsRow(t *testing.T) {
	adapter := newFakeAdapter(t)
	conflict := &sheetfeed.ConflictError{Method: "PUT", URL: "edit/1"}
	adapter.updateErr = conflict
	client := openClient(t, adapter, nil, nil)
	defer client.Close()

	before, _ := client.Get(0)
	_, err := client.Apply(context.Background(), sheetfeed.Operation{
		Type: sheetfeed.OpUpdate, Row: 0, Column: "name", Value: "screw",
	})
	if !errors.Is(err, sheetfeed.ErrConflict) {
		t.Fatalf("Apply() error = %v, want ErrConflict", err)
	}
	after, _ := client.Get(0)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("row changed after failed update (-before +after):\n%s", diff)
	}
}

func TestClient_ApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		op   sheetfeed.Operation
	}{
		{"row out of range", sheetfeed.Operation{Type: sheetfeed.OpUpdate, Row: 9, Column: "name"}},
		{"unknown column", sheetfeed.Operation{Type: sheetfeed.OpUpdate, Row: 0, Column: "brand"}},
		{"unknown append column", sheetfeed.Operation{Type: sheetfeed.OpAppend, Fields: []sheetfeed.Field{{Name: "brand", Value: "x"}}}},
		{"unknown type", sheetfeed.Operation{Type: sheetfeed.OperationType(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newFakeAdapter(t)
			client := openClient(t, adapter, nil, nil)
			defer client.Close()

			if _, err := client.Apply(context.Background(), tt.op); err == nil {
				t.Error("Apply() error = nil, want error")
			}
			if len(adapter.updates)+len(adapter.appended) != 0 {
				t.Error("invalid operation reached the adapter")
			}
		})
	}
}

func TestClient_ApplyAppend(t *testing.T) {
	adapter := newFakeAdapter(t)
	client := openClient(t, adapter, nil, nil)
	defer client.Close()

	_, err := client.Apply(context.Background(), sheetfeed.Operation{
		Type:   sheetfeed.OpAppend,
		Fields: []sheetfeed.Field{{Name: "Unit Price", Value: "1.00"}, {Name: "name", Value: "pin"}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := [][]sheetfeed.Field{{{Name: "unitprice", Value: "1.00"}, {Name: "name", Value: "pin"}}}
	if diff := cmp.Diff(want, adapter.appended); diff != "" {
		t.Errorf("appended fields mismatch (-want +got):\n%s", diff)
	}
	if len(client.Rows()) != 3 {
		t.Errorf("Rows() = %d, want 3", len(client.Rows()))
	}
}

type recordingSink struct {
	header []string
	rows   [][]string
}

func (s *recordingSink) WriteHeader(h []string) error { s.header = h; return nil }
func (s *recordingSink) WriteRow(r []string) error    { s.rows = append(s.rows, r); return nil }
func (s *recordingSink) Close() error                 { return nil }

func TestClient_Export(t *testing.T) {
	client := openClient(t, newFakeAdapter(t), nil, nil)
	defer client.Close()

	var s recordingSink
	if err := client.Export(&s); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Name", "Unit Price"}, s.header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"bolt", "0.10"}, {"nut", ""}}, s.rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_CloseFlushesOnce(t *testing.T) {
	store := &fakeStore{}
	client := openClient(t, newFakeAdapter(t), store, nil)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if store.flushes != 1 {
		t.Errorf("Flush() called %d times, want 1", store.flushes)
	}

	if _, err := client.Get(0); !errors.Is(err, sheetfeed.ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
	if _, err := client.Apply(context.Background(), sheetfeed.Operation{Type: sheetfeed.OpAppend}); !errors.Is(err, sheetfeed.ErrClosed) {
		t.Errorf("Apply() after Close error = %v, want ErrClosed", err)
	}
	if err := client.Initialize(context.Background()); !errors.Is(err, sheetfeed.ErrClosed) {
		t.Errorf("Initialize() after Close error = %v, want ErrClosed", err)
	}
}

func TestClient_CloseReportsFlushError(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	client := openClient(t, newFakeAdapter(t), store, nil)
	if err := client.Close(); err == nil {
		t.Error("Close() error = nil, want flush error")
	}
}
