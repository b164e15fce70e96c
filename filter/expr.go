package filter

import (
	"context"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤物品。
//
// 默认表达式为 true 的物品被移除；Keep 为 true 时反过来，只保留表达式为 true 的物品。
//
//	item.score < 0.1
//	item.meta.genre == "horror"
//	label.hybrid_fallback == "content"
type ExprFilter struct {
	Expr *dsl.Expr
	Keep bool
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string, keep bool) (*ExprFilter, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Expr: e, Keep: keep}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Expr == nil {
		return false, nil
	}
	ok, err := f.Expr.Evaluate(item, rctx)
	if err != nil {
		return false, err
	}
	if f.Keep {
		return !ok, nil
	}
	return ok, nil
}
