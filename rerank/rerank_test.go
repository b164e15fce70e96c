package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pkg/utils"
)

func items(n int) []*core.Item {
	out := make([]*core.Item, n)
	for i := range out {
		out[i] = core.NewItem(string(rune('a' + i)))
	}
	return out
}

func TestTopNNode(t *testing.T) {
	tests := []struct {
		name string
		node TopNNode
		rctx *core.RecommendContext
		in   int
		want int
	}{
		{"request n", TopNNode{}, &core.RecommendContext{N: 2}, 5, 2},
		{"fewer than n", TopNNode{}, &core.RecommendContext{N: 10}, 3, 3},
		{"fixed n wins", TopNNode{N: 1}, &core.RecommendContext{N: 4}, 5, 1},
		{"zero n", TopNNode{}, &core.RecommendContext{N: 0}, 5, 0},
		{"nil context", TopNNode{}, nil, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.node.Process(context.Background(), tt.rctx, items(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
			if out == nil {
				t.Error("result should never be nil")
			}
		})
	}
}

type titles map[string]string

func (m titles) Title(id string) (string, bool) {
	s, ok := m[id]
	return s, ok
}

func TestEnrichNode(t *testing.T) {
	in := items(3)
	in[2].Title = "kept"
	n := &EnrichNode{Titles: titles{"a": "Alpha", "c": "Gamma"}}

	out, err := n.Process(context.Background(), nil, in)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Alpha", "", "kept"}
	for i, it := range out {
		if it.Title != want[i] {
			t.Errorf("item %s title = %q, want %q", it.ID, it.Title, want[i])
		}
	}
	if _, ok := out[0].Labels[utils.LabelEnriched]; !ok {
		t.Error("enriched item should be labeled")
	}
	if _, ok := out[2].Labels[utils.LabelEnriched]; ok {
		t.Error("item with a title should not be relabeled")
	}

	if out, _ := (&EnrichNode{}).Process(context.Background(), nil, in); len(out) != 3 {
		t.Error("nil lookup should pass items through")
	}
}
