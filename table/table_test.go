package table

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rushteam/tabrec/core"
)

func TestReadCSV(t *testing.T) {
	in := "item_id,title,genres\n1,A,x y\n2,B\n3,C,\"x, z\"\n"
	tb, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tb.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tb.Len())
	}
	if got := tb.Value(1, "genres"); got != "" {
		t.Errorf("short row should be padded, got %q", got)
	}
	if got := tb.Value(2, "genres"); got != "x, z" {
		t.Errorf("quoted value = %q", got)
	}
	if got := tb.Value(0, "missing"); got != "" {
		t.Errorf("missing column = %q", got)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"duplicate header", "a,a\n1,2\n"},
		{"bare quote", "a,b\n\"x,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			if !core.IsInputCoercion(err) {
				t.Fatalf("want INPUT_COERCION, got %v", err)
			}
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	if err := os.WriteFile(path, []byte("\uFEFFid,title\n1,A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tb, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if !tb.Has("id") {
		t.Fatalf("BOM should be stripped from header, columns = %v", tb.Columns)
	}
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestFromRecords(t *testing.T) {
	tb, err := FromRecords([]string{"user", "item", "rating"}, []map[string]any{
		{"user": 7, "item": 3.0, "rating": 4.5},
		{"user": "u2", "item": int64(12)},
	})
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	want := [][]string{{"7", "3", "4.5"}, {"u2", "12", ""}}
	if !reflect.DeepEqual(tb.Rows, want) {
		t.Errorf("rows = %v, want %v", tb.Rows, want)
	}

	_, err = FromRecords([]string{"x"}, []map[string]any{{"x": []int{1}}})
	if !core.IsInputCoercion(err) {
		t.Errorf("want INPUT_COERCION, got %v", err)
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"4", 4, false},
		{" 3.5 ", 3.5, false},
		{"-1", -1, false},
		{"", 0, true},
		{"   ", 0, true},
		{"five", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"1.5e308", 1.5e308, false},
		{"1e400", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRating(tt.in)
			if tt.wantErr {
				if !core.IsInputCoercion(err) {
					t.Fatalf("want INPUT_COERCION, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
