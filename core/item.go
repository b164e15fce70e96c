package core

import "github.com/rushteam/tabrec/pkg/utils"

// Item 是推荐链路中的统一承载结构：物品 ID、展示标题、分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID string

	// Title 由 postprocess 阶段从物品表补全，可能为空
	Title string

	// Score 为模型分数；HasScore 为 false 时表示模型没有给出分数
	Score    float64
	HasScore bool

	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// SetScore 写入分数并标记 HasScore。
func (it *Item) SetScore(score float64) {
	it.Score = score
	it.HasScore = true
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
