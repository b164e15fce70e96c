// Package recall 把训练好的模型包装成 Pipeline 的召回入口。
package recall

import (
	"context"

	"github.com/rushteam/tabrec/core"
)

// Source 表示一个可复用的召回源（内容相似 / 协同过滤 / 混合）。
// 请求缺少模型所需字段时返回 DISPATCH 错误；查找未命中返回空列表。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
