package rerank

import (
	"context"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pipeline"
	"github.com/rushteam/tabrec/pkg/utils"
)

// TitleLookup 按物品 ID 返回展示标题。
type TitleLookup interface {
	Title(itemID string) (string, bool)
}

// EnrichNode 是后处理节点：用物品表补全 Item.Title。查不到的物品保留空标题。
type EnrichNode struct {
	Titles TitleLookup
}

func (n *EnrichNode) Name() string        { return "postprocess.title" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Titles == nil {
		return items, nil
	}
	for _, it := range items {
		if it.Title != "" {
			continue
		}
		if title, ok := n.Titles.Title(it.ID); ok {
			it.Title = title
			it.PutLabel(utils.LabelEnriched, utils.NewLabel("true", "postprocess"))
		}
	}
	return items, nil
}
