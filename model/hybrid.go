package model

import (
	"math"

	"github.com/rushteam/tabrec/core"
)

// Fallback 描述 Hybrid 在输入不完整时退化成了哪种模式。
type Fallback string

const (
	FallbackNone          Fallback = ""              // 正常混合
	FallbackCollaborative Fallback = "collaborative" // 标题未知，仅协同过滤
	FallbackContent       Fallback = "content"       // 用户未知，仅内容相似度
	FallbackEmpty         Fallback = "empty"         // 标题与用户都未知
)

// Hybrid 把内容相似度和协同过滤预测评分按权重线性混合。
//
//	combined = w * similarity(title, item) + (1 - w) * minmax(predict(user, item))
type Hybrid struct {
	content       *Content
	collaborative *Collaborative
	weight        float64
}

// NewHybrid 创建混合模型；weight 为内容相似度权重，超出 [0,1] 时使用默认值 0.5。
func NewHybrid(content *Content, collaborative *Collaborative, weight float64) *Hybrid {
	if weight < 0 || weight > 1 || math.IsNaN(weight) {
		weight = core.DefaultHybridWeight
	}
	return &Hybrid{content: content, collaborative: collaborative, weight: weight}
}

// Content 返回内容子模型。
func (h *Hybrid) Content() *Content { return h.content }

// Collaborative 返回协同过滤子模型。
func (h *Hybrid) Collaborative() *Collaborative { return h.collaborative }

// Weight 返回内容相似度权重。
func (h *Hybrid) Weight() float64 { return h.weight }

// Recommend 返回混合后的 top n。
//
// 候选集为内容 top n 与协同 top n 的并集（先内容后协同，按首次出现排序）。
// 标题未知时结果与 Collaborative.Recommend 完全一致，用户未知时与 Content.Recommend 完全一致。
func (h *Hybrid) Recommend(title, user string, n int) ([]Scored, Fallback) {
	knowsTitle := h.content.KnowsTitle(title)
	knowsUser := h.collaborative.KnowsUser(user)
	switch {
	case !knowsTitle && !knowsUser:
		return []Scored{}, FallbackEmpty
	case !knowsTitle:
		return h.collaborative.Recommend(user, n), FallbackCollaborative
	case !knowsUser:
		return h.content.Recommend(title, n), FallbackContent
	}
	if n <= 0 {
		return []Scored{}, FallbackNone
	}

	var candidates []string
	seen := make(map[string]struct{})
	for _, list := range [][]Scored{h.content.Recommend(title, n), h.collaborative.Recommend(user, n)} {
		for _, s := range list {
			if _, ok := seen[s.ItemID]; ok {
				continue
			}
			seen[s.ItemID] = struct{}{}
			candidates = append(candidates, s.ItemID)
		}
	}

	preds := make([]float64, len(candidates))
	scorable := make([]bool, len(candidates))
	lo, hi := 0.0, 0.0
	first := true
	for i, id := range candidates {
		p, ok := h.collaborative.PredictScore(user, id)
		if !ok {
			continue
		}
		preds[i], scorable[i] = p, true
		if first || p < lo {
			lo = p
		}
		if first || p > hi {
			hi = p
		}
		first = false
	}

	scored := make([]Scored, len(candidates))
	for i, id := range candidates {
		sim, _ := h.content.Similarity(title, id)
		var norm float64
		switch {
		case !scorable[i]:
			norm = 0
		case hi == lo:
			norm = 1
		default:
			norm = (preds[i] - lo) / (hi - lo)
		}
		scored[i] = Scored{ItemID: id, Score: h.weight*sim + (1-h.weight)*norm}
	}
	return topN(scored, n), FallbackNone
}
