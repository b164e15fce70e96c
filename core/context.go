package core

import "github.com/rushteam/tabrec/pkg/utils"

// RecommendContext 承载一次预测请求的输入，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	// Project 是项目标识（单 bundle 调用时可为空）
	Project string

	// UserID 为协同过滤/混合模型的输入用户，HasUser 为 false 表示请求未携带
	UserID  string
	HasUser bool

	// ItemTitle 为内容/混合模型的参考物品标题，HasTitle 为 false 表示请求未携带
	ItemTitle string
	HasTitle  bool

	// N 为需要返回的推荐数量
	N int

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级参数（例如 CEL 过滤表达式可访问的变量）
	Params map[string]any
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
