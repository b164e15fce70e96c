package recall

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/model"
	"github.com/rushteam/tabrec/pkg/utils"
	"github.com/rushteam/tabrec/table"
)

func fitModels(t *testing.T) (*model.Content, *model.Collaborative) {
	t.Helper()
	ctx := context.Background()
	items, err := table.New([]string{"id", "title", "genre"}, [][]string{
		{"1", "A", "x"}, {"2", "B", "x"}, {"3", "C", "y"},
	})
	if err != nil {
		t.Fatal(err)
	}
	ratings, err := table.New([]string{"user", "item", "rating"}, [][]string{
		{"u1", "1", "5"}, {"u2", "1", "4"}, {"u2", "2", "5"}, {"u2", "3", "2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := model.FitContent(ctx, items, table.Schema{ItemID: "id", ItemTitle: "title", FeatureCols: []string{"genre"}})
	if err != nil {
		t.Fatal(err)
	}
	cf, err := model.FitCollaborative(ctx, ratings, table.Schema{UserID: "user", ItemID: "item", Rating: "rating"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return c, cf
}

func ids(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestSourcesRequireInputs(t *testing.T) {
	c, cf := fitModels(t)
	h := model.NewHybrid(c, cf, 0.5)
	tests := []struct {
		name string
		src  Source
		rctx core.RecommendContext
	}{
		{"content without title", &ContentSource{Model: c}, core.RecommendContext{UserID: "u1", HasUser: true, N: 2}},
		{"collaborative without user", &CollaborativeSource{Model: cf}, core.RecommendContext{ItemTitle: "A", HasTitle: true, N: 2}},
		{"hybrid without title", &HybridSource{Model: h}, core.RecommendContext{UserID: "u1", HasUser: true, N: 2}},
		{"hybrid without user", &HybridSource{Model: h}, core.RecommendContext{ItemTitle: "A", HasTitle: true, N: 2}},
		{"hybrid without either", &HybridSource{Model: h}, core.RecommendContext{N: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.src.Recall(context.Background(), &tt.rctx)
			if !core.IsDispatch(err) {
				t.Fatalf("want DISPATCH, got %v", err)
			}
		})
	}
}

func TestContentSource(t *testing.T) {
	c, _ := fitModels(t)
	src := &ContentSource{Model: c}
	items, err := src.Recall(context.Background(), &core.RecommendContext{ItemTitle: "A", HasTitle: true, N: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids(items), []string{"2"}) {
		t.Fatalf("ids = %v", ids(items))
	}
	if !items[0].HasScore || items[0].Score < 0.999 {
		t.Errorf("score = %v, %v", items[0].Score, items[0].HasScore)
	}
	if lbl := items[0].Labels[utils.LabelRecallSource]; lbl.Value != "content" {
		t.Errorf("recall_source = %+v", lbl)
	}

	unknown, err := src.Recall(context.Background(), &core.RecommendContext{ItemTitle: "Z", HasTitle: true, N: 3})
	if err != nil || len(unknown) != 0 {
		t.Errorf("unknown title = %v, %v", unknown, err)
	}
}

func TestHybridSourceFallbackLabel(t *testing.T) {
	c, cf := fitModels(t)
	src := &HybridSource{Model: model.NewHybrid(c, cf, 0.5)}
	rctx := &core.RecommendContext{ItemTitle: "A", HasTitle: true, UserID: "nobody", HasUser: true, N: 2}
	items, err := src.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	lbl, ok := rctx.GetLabel(utils.LabelFallback)
	if !ok || lbl.Value != string(model.FallbackContent) {
		t.Fatalf("request fallback label = %+v, %v", lbl, ok)
	}
	for _, it := range items {
		if it.Labels[utils.LabelFallback].Value != string(model.FallbackContent) {
			t.Errorf("item %s missing fallback label", it.ID)
		}
	}
}

type rows map[string]map[string]string

func (r rows) Row(id string) (map[string]string, bool) {
	row, ok := r[id]
	return row, ok
}

func TestNodeAttachesMeta(t *testing.T) {
	c, _ := fitModels(t)
	n := &Node{Source: &ContentSource{Model: c}, Meta: rows{"2": {"genre": "x"}}}
	if n.Name() != "recall.content" {
		t.Errorf("Name = %q", n.Name())
	}
	upstream := []*core.Item{core.NewItem("ignored")}
	items, err := n.Process(context.Background(), &core.RecommendContext{ItemTitle: "A", HasTitle: true, N: 2}, upstream)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids(items), []string{"2", "3"}) {
		t.Fatalf("ids = %v", ids(items))
	}
	if items[0].Meta["genre"] != "x" {
		t.Errorf("meta = %v", items[0].Meta)
	}
	if len(items[1].Meta) != 0 {
		t.Errorf("item without a row should have empty meta, got %v", items[1].Meta)
	}
}
