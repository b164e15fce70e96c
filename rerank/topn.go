// Package rerank 提供召回与过滤之后的重排 Node。
package rerank

import (
	"context"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，保证返回的物品数不超过请求的 n。
// 过滤节点之后放置，召回节点已按分数降序输出，这里只截断不重排。
type TopNNode struct {
	// N 要保留的物品数量；<= 0 时使用请求中的 rctx.N
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = rctx.N
	}
	if limit <= 0 {
		return []*core.Item{}, nil
	}
	if len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
