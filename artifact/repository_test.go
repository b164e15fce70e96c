package artifact

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/model"
	"github.com/rushteam/tabrec/store"
	"github.com/rushteam/tabrec/table"
)

var (
	itemSchema   = table.Schema{ItemID: "id", ItemTitle: "title", FeatureCols: []string{"genre"}}
	ratingSchema = table.Schema{UserID: "user", ItemID: "item", Rating: "rating"}
)

type fixture struct {
	items   *table.Table
	content *model.Content
	collab  *model.Collaborative
	catalog *Catalog
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	items, err := table.New([]string{"id", "title", "genre"}, [][]string{
		{"1", "A", "x"},
		{"2", "B", "x"},
		{"3", "C", "y"},
		{"4", "D", "x y"},
	})
	if err != nil {
		t.Fatal(err)
	}
	ratings, err := table.New([]string{"user", "item", "rating"}, [][]string{
		{"u1", "1", "5"}, {"u1", "2", "1"},
		{"u2", "1", "4"}, {"u2", "2", "5"}, {"u2", "3", "2"},
		{"u3", "4", "3"}, {"u3", "3", "4.5"},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := model.FitContent(ctx, items, itemSchema)
	if err != nil {
		t.Fatalf("FitContent: %v", err)
	}
	cf, err := model.FitCollaborative(ctx, ratings, ratingSchema, 2)
	if err != nil {
		t.Fatalf("FitCollaborative: %v", err)
	}
	cat, err := NewCatalog(items, itemSchema)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return fixture{items: items, content: c, collab: cf, catalog: cat}
}

func meta(version int) Manifest {
	return Manifest{Project: "movies", Version: version, RunID: "run-1", ContentSchema: &itemSchema, InteractionSchema: &ratingSchema}
}

func TestRepositoryRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(store.NewMemoryStore())

	bundles := []Bundle{
		&ContentBundle{Meta: meta(1), Content: f.content, Items: f.catalog},
		&CollaborativeBundle{Meta: meta(2), Collaborative: f.collab},
		&HybridBundle{Meta: meta(3), Hybrid: model.NewHybrid(f.content, f.collab, 0.7), Items: f.catalog},
	}
	for _, b := range bundles {
		t.Run(string(b.Kind()), func(t *testing.T) {
			written, err := repo.Put(ctx, b)
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if written.Kind != b.Kind() || len(written.Parts) == 0 || written.CreatedAt.IsZero() {
				t.Fatalf("manifest = %+v", written)
			}

			got, err := repo.Get(ctx, "movies", written.Version)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Kind() != b.Kind() {
				t.Fatalf("kind = %s, want %s", got.Kind(), b.Kind())
			}
			gm := got.Manifest()
			if gm.RunID != "run-1" || !reflect.DeepEqual(gm.ContentSchema, &itemSchema) || !gm.CreatedAt.Equal(written.CreatedAt) {
				t.Errorf("manifest after load = %+v", gm)
			}
			if (got.Catalog() == nil) != (b.Catalog() == nil) {
				t.Errorf("catalog presence changed")
			}

			switch want := b.(type) {
			case *ContentBundle:
				gb := got.(*ContentBundle)
				for _, title := range []string{"A", "B", "C", "D"} {
					if a, b := want.Content.Recommend(title, 3), gb.Content.Recommend(title, 3); !reflect.DeepEqual(a, b) {
						t.Errorf("content %s: %v != %v", title, a, b)
					}
				}
			case *CollaborativeBundle:
				gb := got.(*CollaborativeBundle)
				for _, u := range []string{"u1", "u2", "u3"} {
					if a, b := want.Collaborative.Recommend(u, 3), gb.Collaborative.Recommend(u, 3); !reflect.DeepEqual(a, b) {
						t.Errorf("collaborative %s: %v != %v", u, a, b)
					}
				}
			case *HybridBundle:
				gb := got.(*HybridBundle)
				if gb.Hybrid.Weight() != 0.7 {
					t.Errorf("weight = %v", gb.Hybrid.Weight())
				}
				a, _ := want.Hybrid.Recommend("A", "u1", 3)
				b, _ := gb.Hybrid.Recommend("A", "u1", 3)
				if !reflect.DeepEqual(a, b) {
					t.Errorf("hybrid: %v != %v", a, b)
				}
			}
		})
	}
}

func TestRepositoryWriteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(store.NewMemoryStore())

	b := &ContentBundle{Meta: meta(1), Content: f.content}
	if _, err := repo.Put(ctx, b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := repo.Put(ctx, b); !core.IsAlreadyExists(err) {
		t.Fatalf("second Put: want ALREADY_EXISTS, got %v", err)
	}
	if _, err := repo.Put(ctx, &ContentBundle{Meta: Manifest{Project: "movies"}, Content: f.content}); err == nil {
		t.Fatal("version 0 should be rejected")
	}
}

func TestRepositoryCorruption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		tamper func(t *testing.T, s *store.MemoryStore)
		check  func(error) bool
	}{
		{
			name:   "missing bundle",
			tamper: func(t *testing.T, s *store.MemoryStore) { _ = s.Delete(ctx, Key("movies", 1, PartManifest)) },
			check:  core.IsNotFound,
		},
		{
			name:   "missing part",
			tamper: func(t *testing.T, s *store.MemoryStore) { _ = s.Delete(ctx, Key("movies", 1, PartContent)) },
			check:  core.IsCorrupt,
		},
		{
			name: "checksum mismatch",
			tamper: func(t *testing.T, s *store.MemoryStore) {
				st := f.content.State()
				st.Titles[0] = "Z"
				data, _, err := encodePart(PartContent, st)
				if err != nil {
					t.Fatal(err)
				}
				_ = s.Set(ctx, Key("movies", 1, PartContent), data)
			},
			check: core.IsCorrupt,
		},
		{
			name: "garbage part",
			tamper: func(t *testing.T, s *store.MemoryStore) {
				_ = s.Set(ctx, Key("movies", 1, PartCatalog), []byte("not gzip"))
			},
			check: core.IsCorrupt,
		},
		{
			name: "unknown kind",
			tamper: func(t *testing.T, s *store.MemoryStore) {
				m := meta(1)
				m.Kind = "graph"
				data, _, err := encodePart(PartManifest, m)
				if err != nil {
					t.Fatal(err)
				}
				_ = s.Set(ctx, Key("movies", 1, PartManifest), data)
			},
			check: core.IsCorrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			defer s.Close()
			repo := NewRepository(s)
			if _, err := repo.Put(ctx, &ContentBundle{Meta: meta(1), Content: f.content, Items: f.catalog}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			tt.tamper(t, s)
			_, err := repo.Get(ctx, "movies", 1)
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRepositoryReadsOnlyNeededParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	repo := NewRepository(s)

	if _, err := repo.Put(ctx, &CollaborativeBundle{Meta: meta(1), Collaborative: f.collab}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// content 分片不属于 collaborative bundle，存在与否都不影响读取
	_ = s.Set(ctx, Key("movies", 1, PartContent), []byte("junk"))
	if _, err := repo.Get(ctx, "movies", 1); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"content", "collaborative", "hybrid"} {
		k, err := ParseKind(s)
		if err != nil || string(k) != s {
			t.Errorf("ParseKind(%q) = %q, %v", s, k, err)
		}
	}
	for _, s := range []string{"", "Content", "svd"} {
		if _, err := ParseKind(s); err == nil {
			t.Errorf("ParseKind(%q) should fail", s)
		}
	}
}

func TestCatalog(t *testing.T) {
	tb, _ := table.New([]string{"id", "title"}, [][]string{{"1", "A"}, {" 2 ", "B"}, {"1", "A2"}})
	c, err := NewCatalog(tb, table.Schema{ItemID: "id", ItemTitle: "title"})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if title, ok := c.Title("1"); !ok || title != "A" {
		t.Errorf("Title(1) = %q, %v; first occurrence wins", title, ok)
	}
	if title, _ := c.Title("2"); title != "B" {
		t.Errorf("Title(2) = %q", title)
	}
	if !reflect.DeepEqual(c.ItemIDs(), []string{"1", "2"}) {
		t.Errorf("ItemIDs = %v", c.ItemIDs())
	}
	if row, _ := c.Row("2"); row["title"] != "B" {
		t.Errorf("Row(2) = %v", row)
	}
	var nilCat *Catalog
	if _, ok := nilCat.Title("1"); ok {
		t.Error("nil catalog should miss")
	}
	if _, err := NewCatalog(tb, table.Schema{ItemID: "id", ItemTitle: "name"}); !core.IsConfiguration(err) {
		t.Errorf("want CONFIGURATION, got %v", err)
	}
}
