package recall

import (
	"context"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/model"
	"github.com/rushteam/tabrec/pkg/utils"
)

// ContentSource 按参考物品标题召回最相似的物品。
type ContentSource struct {
	Model *model.Content
}

func (s *ContentSource) Name() string { return "content" }

func (s *ContentSource) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if !rctx.HasTitle {
		return nil, core.Dispatchf("content model requires item_title")
	}
	return toItems(s.Model.Recommend(rctx.ItemTitle, rctx.N), s.Name()), nil
}

// CollaborativeSource 按用户召回预测评分最高的未评分物品。
type CollaborativeSource struct {
	Model *model.Collaborative
}

func (s *CollaborativeSource) Name() string { return "collaborative" }

func (s *CollaborativeSource) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if !rctx.HasUser {
		return nil, core.Dispatchf("collaborative model requires user_id")
	}
	return toItems(s.Model.Recommend(rctx.UserID, rctx.N), s.Name()), nil
}

// HybridSource 同时使用标题与用户；退化时在请求上记录 hybrid_fallback 标签。
type HybridSource struct {
	Model *model.Hybrid
}

func (s *HybridSource) Name() string { return "hybrid" }

func (s *HybridSource) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	switch {
	case !rctx.HasTitle && !rctx.HasUser:
		return nil, core.Dispatchf("hybrid model requires item_title and user_id")
	case !rctx.HasTitle:
		return nil, core.Dispatchf("hybrid model requires item_title")
	case !rctx.HasUser:
		return nil, core.Dispatchf("hybrid model requires user_id")
	}
	scored, fb := s.Model.Recommend(rctx.ItemTitle, rctx.UserID, rctx.N)
	items := toItems(scored, s.Name())
	if fb != model.FallbackNone {
		rctx.PutLabel(utils.LabelFallback, utils.NewLabel(string(fb), "recall"))
		for _, it := range items {
			it.PutLabel(utils.LabelFallback, utils.NewLabel(string(fb), "recall"))
		}
	}
	return items, nil
}

func toItems(scored []model.Scored, source string) []*core.Item {
	items := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.ItemID)
		it.SetScore(s.Score)
		it.PutLabel(utils.LabelRecallSource, utils.NewLabel(source, "recall"))
		items = append(items, it)
	}
	return items
}
