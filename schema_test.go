package sheetfeed_test

import (
	"errors"
	"strconv"
	"testing"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		heading string
		want    string
	}{
		{"Unit Price", "unitprice"},
		{"RS Stock No.", "rsstockno"},
		{"Qty (min)", "qtymin"},
		{"Größe", "größe"},
		{"2nd-Choice", "2ndchoice"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sheetfeed.NormalizeName(tt.heading); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.heading, got, tt.want)
		}
		// normalizing a name again must not change it
		if got := sheetfeed.NormalizeName(tt.want); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, not idempotent", tt.want, got)
		}
	}
}

func TestNewSchema(t *testing.T) {
	schema, err := sheetfeed.NewSchema([]string{"Name", "Unit Price", "Qty"})
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	if schema.Len() != 3 {
		t.Errorf("Len() = %d, want 3", schema.Len())
	}
	if i, ok := schema.Index("unitprice"); !ok || i != 1 {
		t.Errorf("Index(unitprice) = %d, %v, want 1, true", i, ok)
	}
	if _, ok := schema.Index("Unit Price"); ok {
		t.Error("Index() must only accept normalized names")
	}

	for _, col := range []string{"Unit Price", "unitprice", "UNIT-PRICE"} {
		if name, ok := schema.Lookup(col); !ok || name != "unitprice" {
			t.Errorf("Lookup(%q) = %q, %v, want unitprice", col, name, ok)
		}
	}
	if _, ok := schema.Lookup("price"); ok {
		t.Error("Lookup(price) should fail")
	}

	names := schema.Names()
	names[0] = "mutated"
	if schema.Names()[0] != "name" {
		t.Error("Names() must return a copy")
	}
}

func TestNewSchema_Errors(t *testing.T) {
	tests := []struct {
		name     string
		headings []string
	}{
		{"collision", []string{"Unit Price", "unit-price"}},
		{"no letters", []string{"Name", "#"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sheetfeed.NewSchema(tt.headings)
			if !errors.Is(err, sheetfeed.ErrSchema) {
				t.Errorf("NewSchema() error = %v, want ErrSchema", err)
			}
			if !errors.Is(err, sheetfeed.ErrProtocol) {
				t.Errorf("ErrSchema should wrap ErrProtocol")
			}
		})
	}
}

func TestSchemaBuilder(t *testing.T) {
	tests := []struct {
		name      string
		addresses []string
		wantErr   bool
	}{
		{"in order", []string{"A1", "B1", "C1"}, false},
		{"gap", []string{"A1", "C1"}, true},
		{"not from A", []string{"B1"}, true},
		{"second row", []string{"A1", "B2"}, true},
		{"repeat", []string{"A1", "A1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sheetfeed.NewSchemaBuilder()
			var err error
			for i, addr := range tt.addresses {
				if err = b.Add(addr, "Heading "+string(rune('a'+i))); err != nil {
					break
				}
			}
			if tt.wantErr {
				if !errors.Is(err, sheetfeed.ErrSchema) {
					t.Errorf("Add() error = %v, want ErrSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			if b.Schema().Len() != len(tt.addresses) {
				t.Errorf("Len() = %d, want %d", b.Schema().Len(), len(tt.addresses))
			}
		})
	}
}

func TestSchemaBuilder_WideSheet(t *testing.T) {
	b := sheetfeed.NewSchemaBuilder()
	for i := 0; i < 30; i++ {
		addr := sheetfeed.ColumnLetters(i) + "1"
		if err := b.Add(addr, "col "+addr); err != nil {
			t.Fatalf("Add(%s) error = %v", addr, err)
		}
	}
	if got := b.Schema().Headings()[27]; got != "col AB1" {
		t.Errorf("Headings()[27] = %q, want %q", got, "col AB1")
	}
}

func TestParseCellAddress(t *testing.T) {
	tests := []struct {
		address string
		col     int
		row     int
		wantErr bool
	}{
		{address: "A1", col: 0, row: 1},
		{address: "Z9", col: 25, row: 9},
		{address: "AA1", col: 26, row: 1},
		{address: "AZ12", col: 51, row: 12},
		{address: "BA3", col: 52, row: 3},
		{address: "a1", wantErr: true},
		{address: "A", wantErr: true},
		{address: "1", wantErr: true},
		{address: "A0", wantErr: true},
		{address: "A01", wantErr: true},
		{address: "A-1", wantErr: true},
		{address: "A+1", wantErr: true},
		{address: "", wantErr: true},
	}
	for _, tt := range tests {
		col, row, err := sheetfeed.ParseCellAddress(tt.address)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCellAddress(%q) = %d, %d, want error", tt.address, col, row)
			}
			continue
		}
		if err != nil || col != tt.col || row != tt.row {
			t.Errorf("ParseCellAddress(%q) = %d, %d, %v, want %d, %d", tt.address, col, row, err, tt.col, tt.row)
		}
		if got := sheetfeed.ColumnLetters(col) + strconv.Itoa(row); got != tt.address {
			t.Errorf("ColumnLetters round trip = %q, want %q", got, tt.address)
		}
	}
}
