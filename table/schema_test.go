package table

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rushteam/tabrec/core"
)

func itemsTable(t *testing.T) *Table {
	t.Helper()
	tb, err := New([]string{"id", "name", "genres", "plot"}, [][]string{
		{"1", "A", "x", "p"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func TestSchemaFromPairs(t *testing.T) {
	s, err := SchemaFromPairs([]Pair{
		{RoleItemID, "id"},
		{RoleItemTitle, "name"},
		{RoleFeatureCol, "genres"},
		{RoleFeatureCol, "plot"},
	})
	if err != nil {
		t.Fatalf("SchemaFromPairs: %v", err)
	}
	want := Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"genres", "plot"}}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("got %+v, want %+v", s, want)
	}
	if !reflect.DeepEqual(s.Pairs()[2:], []Pair{{RoleFeatureCol, "genres"}, {RoleFeatureCol, "plot"}}) {
		t.Errorf("Pairs = %v", s.Pairs())
	}

	if _, err := SchemaFromPairs([]Pair{{"weight", "w"}}); !core.IsConfiguration(err) {
		t.Errorf("unknown role: want CONFIGURATION, got %v", err)
	}
}

func TestParseSchema(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Schema
	}{
		{
			name: "structured",
			in:   "item_id: id\nitem_title: name\nfeature_cols: [genres, plot]\n",
			want: Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"genres", "plot"}},
		},
		{
			name: "pairs",
			in:   "pairs:\n  - {role: user_id, column: uid}\n  - {role: item_id, column: iid}\n  - {role: rating, column: r}\n",
			want: Schema{UserID: "uid", ItemID: "iid", Rating: "r"},
		},
		{
			name: "json",
			in:   `{"item_id": "id", "item_title": "name", "feature_cols": ["genres"]}`,
			want: Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"genres"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchema([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseSchema: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadSchemaFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	data := `{"pairs":[{"role":"item_id","column":"id"},{"role":"feature_col","column":"genres"}],"item_title":"name"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("LoadSchemaFile: %v", err)
	}
	want := Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"genres"}}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestResolveContent(t *testing.T) {
	tb := itemsTable(t)
	tests := []struct {
		name    string
		schema  Schema
		want    []string
		wantErr bool
	}{
		{"ok", Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"plot", "genres"}}, []string{"plot", "genres"}, false},
		{"blank feature dropped", Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{" ", "genres"}}, []string{"genres"}, false},
		{"no item id", Schema{ItemTitle: "name", FeatureCols: []string{"genres"}}, nil, true},
		{"title column absent", Schema{ItemID: "id", ItemTitle: "title", FeatureCols: []string{"genres"}}, nil, true},
		{"no features", Schema{ItemID: "id", ItemTitle: "name"}, nil, true},
		{"only blank features", Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{""}}, nil, true},
		{"no feature present", Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"cast"}}, nil, true},
		{"one feature absent", Schema{ItemID: "id", ItemTitle: "name", FeatureCols: []string{"genres", "cast"}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := ResolveContent(tb, tt.schema)
			if tt.wantErr {
				if !core.IsConfiguration(err) {
					t.Fatalf("want CONFIGURATION, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cols.FeatureNames, tt.want) {
				t.Errorf("features = %v, want %v", cols.FeatureNames, tt.want)
			}
		})
	}
}

func TestResolveInteraction(t *testing.T) {
	tb, _ := New([]string{"uid", "iid", "r"}, nil)

	cols, err := ResolveInteraction(tb, Schema{UserID: "uid", ItemID: "iid", Rating: "r"})
	if err != nil {
		t.Fatalf("ResolveInteraction: %v", err)
	}
	if cols.UserID != 0 || cols.ItemID != 1 || !cols.HasRating() {
		t.Errorf("cols = %+v", cols)
	}

	cols, err = ResolveInteraction(tb, Schema{UserID: "uid", ItemID: "iid"})
	if err != nil || cols.HasRating() {
		t.Errorf("implicit rating: cols = %+v, err = %v", cols, err)
	}

	for _, s := range []Schema{
		{ItemID: "iid"},
		{UserID: "uid"},
		{UserID: "uid", ItemID: "iid", Rating: "score"},
	} {
		if _, err := ResolveInteraction(tb, s); !core.IsConfiguration(err) {
			t.Errorf("schema %+v: want CONFIGURATION, got %v", s, err)
		}
	}
	if _, err := ResolveInteraction(nil, Schema{UserID: "uid", ItemID: "iid"}); !core.IsConfiguration(err) {
		t.Errorf("nil table: want CONFIGURATION, got %v", err)
	}
}
