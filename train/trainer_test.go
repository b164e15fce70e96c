package train

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/model"
	"github.com/rushteam/tabrec/registry"
	"github.com/rushteam/tabrec/store"
	"github.com/rushteam/tabrec/table"
)

var (
	itemSchema   = table.Schema{ItemID: "id", ItemTitle: "title", FeatureCols: []string{"genre"}}
	ratingSchema = table.Schema{UserID: "user", ItemID: "item", Rating: "rating"}
)

func mustTable(t *testing.T, columns []string, rows [][]string) *table.Table {
	t.Helper()
	tb, err := table.New(columns, rows)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func items(t *testing.T) *table.Table {
	return mustTable(t, []string{"id", "title", "genre"}, [][]string{
		{"1", "A", "x"}, {"2", "B", "x"}, {"3", "C", "y"},
	})
}

func ratings(t *testing.T) *table.Table {
	return mustTable(t, []string{"user", "item", "rating"}, [][]string{
		{"u1", "1", "5"}, {"u1", "2", "1"},
		{"u2", "1", "4"}, {"u2", "2", "5"}, {"u2", "3", "2"},
	})
}

type env struct {
	trainer  *Trainer
	repo     *artifact.Repository
	registry core.Registry
}

func newEnv(t *testing.T) env {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	repo := artifact.NewRepository(s)
	reg := registry.NewStoreRegistry(s, "")
	tr := NewTrainer(repo, reg, WithHybridWeight(0.7))
	tr.newRunID = func() string { return "run-fixed" }
	return env{trainer: tr, repo: repo, registry: reg}
}

func TestDecideKind(t *testing.T) {
	it, rt := &table.Table{}, &table.Table{}
	tests := []struct {
		name string
		req  Request
		want artifact.Kind
		err  bool
	}{
		{"both tables", Request{Items: it, Interactions: rt}, artifact.KindHybrid, false},
		{"items only", Request{Items: it}, artifact.KindContent, false},
		{"interactions only", Request{Interactions: rt}, artifact.KindCollaborative, false},
		{"nothing", Request{}, "", true},
		{"explicit collaborative with items", Request{Kind: artifact.KindCollaborative, Items: it, Interactions: rt}, artifact.KindCollaborative, false},
		{"explicit hybrid without ratings", Request{Kind: artifact.KindHybrid, Items: it}, "", true},
		{"explicit content without items", Request{Kind: artifact.KindContent, Interactions: rt}, "", true},
		{"unknown kind", Request{Kind: "graph", Items: it}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecideKind(&tt.req)
			if tt.err {
				if !core.IsConfiguration(err) {
					t.Fatalf("want CONFIGURATION, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("DecideKind = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestTrainContent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mv, err := e.trainer.Train(ctx, &Request{Project: "movies", Items: items(t), ContentSchema: itemSchema})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if mv.Version != 1 || mv.Kind != "content" || mv.RunID != "run-fixed" || mv.Status != core.VersionReady {
		t.Errorf("version = %+v", mv)
	}
	cur, err := e.registry.Current(ctx, "movies")
	if err != nil || cur.Version != 1 {
		t.Fatalf("Current = %+v, %v", cur, err)
	}
	b, err := e.repo.Get(ctx, "movies", 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cb := b.(*artifact.ContentBundle)
	if ids := model.IDs(cb.Content.Recommend("A", 2)); !reflect.DeepEqual(ids, []string{"2", "3"}) {
		t.Errorf("Recommend(A) = %v", ids)
	}
	if b.Catalog() == nil || b.Manifest().ContentSchema == nil {
		t.Error("content bundle should carry its catalog and schema")
	}
}

func TestTrainHybrid(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mv, err := e.trainer.Train(ctx, &Request{
		Project:           "movies",
		Items:             items(t),
		ContentSchema:     itemSchema,
		Interactions:      ratings(t),
		InteractionSchema: ratingSchema,
		Rank:              1,
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	b, err := e.repo.Get(ctx, "movies", mv.Version)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	hb, ok := b.(*artifact.HybridBundle)
	if !ok {
		t.Fatalf("bundle is %T", b)
	}
	if hb.Hybrid.Weight() != 0.7 || hb.Hybrid.Collaborative().Rank() != 1 {
		t.Errorf("weight = %v, rank = %d", hb.Hybrid.Weight(), hb.Hybrid.Collaborative().Rank())
	}
}

func TestTrainCollaborativeKeepsCatalog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mv, err := e.trainer.Train(ctx, &Request{
		Project:           "music",
		Kind:              artifact.KindCollaborative,
		Items:             items(t),
		ContentSchema:     table.Schema{ItemID: "id", ItemTitle: "title"},
		Interactions:      ratings(t),
		InteractionSchema: ratingSchema,
		Rank:              1,
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	b, err := e.repo.Get(ctx, "music", mv.Version)
	if err != nil {
		t.Fatal(err)
	}
	if title, ok := b.Catalog().Title("3"); !ok || title != "C" {
		t.Errorf("catalog title = %q, %v", title, ok)
	}
}

func TestTrainFailureIsRecorded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.trainer.Train(ctx, &Request{
		Project:       "movies",
		Items:         items(t),
		ContentSchema: table.Schema{ItemID: "id", ItemTitle: "title", FeatureCols: []string{"missing"}},
	})
	if !core.IsConfiguration(err) {
		t.Fatalf("want CONFIGURATION, got %v", err)
	}
	versions, _ := e.registry.Versions(ctx, "movies", 0)
	if len(versions) != 1 || versions[0].Status != core.VersionFailed || versions[0].Reason == "" {
		t.Fatalf("versions = %+v", versions)
	}
	if _, err := e.registry.Current(ctx, "movies"); !core.IsNotFound(err) {
		t.Errorf("failed training must not publish, got %v", err)
	}

	bad := mustTable(t, []string{"user", "item", "rating"}, [][]string{{"u1", "1", "five"}, {"u2", "2", "3"}})
	_, err = e.trainer.Train(ctx, &Request{Project: "movies", Interactions: bad, InteractionSchema: ratingSchema})
	if !core.IsInputCoercion(err) {
		t.Fatalf("want INPUT_COERCION, got %v", err)
	}
}

func TestTrainValidatesRequest(t *testing.T) {
	e := newEnv(t)
	w := 1.5
	for _, req := range []*Request{
		nil,
		{Items: items(t), ContentSchema: itemSchema},
		{Project: "p", Items: items(t), ContentSchema: itemSchema, Rank: -1},
		{Project: "p", Items: items(t), ContentSchema: itemSchema, HybridWeight: &w},
	} {
		if _, err := e.trainer.Train(context.Background(), req); !core.IsConfiguration(err) {
			t.Errorf("Train(%+v): want CONFIGURATION, got %v", req, err)
		}
	}
}
