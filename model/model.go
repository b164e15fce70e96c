// Package model 实现三种推荐模型：基于物品文本的内容相似度模型、基于评分矩阵分解的协同过滤模型，
// 以及把两者混合的 Hybrid。
//
// 模型训练完成后只读，可被任意数量的 goroutine 并发调用 Recommend / PredictScore。
// 查找未命中（未知标题、未知用户）返回空结果，而不是 error。
package model

import (
	"context"
	"sort"

	"github.com/rushteam/tabrec/core"
)

// Scored 是一条带分数的推荐结果。
type Scored struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// IDs 返回结果中的物品 ID。
func IDs(scored []Scored) []string {
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.ItemID)
	}
	return out
}

// topN 按分数降序稳定排序（同分保持原顺序）并截断到 n。会修改 scored。
func topN(scored []Scored, n int) []Scored {
	if n <= 0 || len(scored) == 0 {
		return []Scored{}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func checkContext(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return core.WrapDomainError(core.ModuleModel, core.ErrorCodeInternalError, "canceled before "+phase, err)
	}
	return nil
}
