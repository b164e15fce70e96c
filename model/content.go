package model

import (
	"context"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/table"
)

// ContentState 是内容模型的持久化形态。
// Similarity 按行存放对称矩阵的上三角（含对角线），长度为 n*(n+1)/2。
type ContentState struct {
	ItemIDs        []string  `json:"item_ids"`
	Titles         []string  `json:"titles"`
	Similarity     []float64 `json:"similarity"`
	VocabularySize int       `json:"vocabulary_size"`
}

// Content 是基于物品文本特征的相似度模型：TF-IDF 向量 + 余弦相似度。
type Content struct {
	ids     []string
	titles  []string
	sim     *mat.SymDense
	vocab   int
	byTitle map[string]int
	byID    map[string]int
}

// FitContent 在物品表上训练内容模型。
//
// 每行的特征列按声明顺序以单个空格拼接成文本（缺失值为空串），
// TF-IDF 向量化后计算全量两两余弦相似度。
func FitContent(ctx context.Context, t *table.Table, s table.Schema) (*Content, error) {
	cols, err := table.ResolveContent(t, s)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, core.Configurationf(core.ModuleModel, "content table has no rows")
	}

	ids := make([]string, t.Len())
	titles := make([]string, t.Len())
	soups := make([]string, t.Len())
	parts := make([]string, len(cols.Features))
	for i, row := range t.Rows {
		ids[i] = table.NormalizeID(row[cols.ItemID])
		titles[i] = row[cols.ItemTitle]
		for j, c := range cols.Features {
			parts[j] = row[c]
		}
		soups[i] = strings.Join(parts, " ")
	}

	if err := checkContext(ctx, "vectorize"); err != nil {
		return nil, err
	}
	analyzer, err := NewStandardAnalyzer()
	if err != nil {
		return nil, err
	}
	vec, x, err := FitTransform(soups, analyzer)
	if err != nil {
		return nil, err
	}

	if err := checkContext(ctx, "similarity"); err != nil {
		return nil, err
	}
	// 行已 L2 归一化，X·Xᵀ 即余弦相似度
	var sim mat.SymDense
	sim.SymOuterK(1, x)
	n := len(ids)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim.SetSym(i, j, clamp01(sim.At(i, j)))
		}
		sim.SetSym(i, i, 1)
	}

	return newContent(ids, titles, &sim, len(vec.Vocabulary)), nil
}

// NewContent 从持久化状态恢复内容模型。
func NewContent(state *ContentState) (*Content, error) {
	if state == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "content state is nil")
	}
	n := len(state.ItemIDs)
	if len(state.Titles) != n {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "content state: titles and ids differ in length")
	}
	if len(state.Similarity) != n*(n+1)/2 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "content state: similarity size mismatch")
	}
	if n == 0 {
		return newContent(nil, nil, nil, state.VocabularySize), nil
	}
	sim := mat.NewSymDense(n, nil)
	k := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sim.SetSym(i, j, state.Similarity[k])
			k++
		}
	}
	return newContent(state.ItemIDs, state.Titles, sim, state.VocabularySize), nil
}

func newContent(ids, titles []string, sim *mat.SymDense, vocab int) *Content {
	c := &Content{
		ids:     ids,
		titles:  titles,
		sim:     sim,
		vocab:   vocab,
		byTitle: make(map[string]int, len(titles)),
		byID:    make(map[string]int, len(ids)),
	}
	for i, t := range titles {
		if _, ok := c.byTitle[t]; !ok {
			c.byTitle[t] = i
		}
	}
	for i, id := range ids {
		if _, ok := c.byID[id]; !ok {
			c.byID[id] = i
		}
	}
	return c
}

// State 导出持久化状态。
func (c *Content) State() *ContentState {
	n := len(c.ids)
	packed := make([]float64, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			packed = append(packed, c.sim.At(i, j))
		}
	}
	return &ContentState{
		ItemIDs:        append([]string(nil), c.ids...),
		Titles:         append([]string(nil), c.titles...),
		Similarity:     packed,
		VocabularySize: c.vocab,
	}
}

// Recommend 返回与 title 对应物品最相似的 n 个物品（不含自身）。
// 未知标题或 n <= 0 返回空列表。
func (c *Content) Recommend(title string, n int) []Scored {
	idx, ok := c.byTitle[title]
	if !ok || n <= 0 {
		return []Scored{}
	}
	scored := make([]Scored, 0, len(c.ids)-1)
	for j, id := range c.ids {
		if j == idx {
			continue
		}
		scored = append(scored, Scored{ItemID: id, Score: c.sim.At(idx, j)})
	}
	return topN(scored, n)
}

// Similarity 返回标题对应物品与 itemID 之间的相似度。
func (c *Content) Similarity(title, itemID string) (float64, bool) {
	i, ok := c.byTitle[title]
	if !ok {
		return 0, false
	}
	j, ok := c.byID[itemID]
	if !ok {
		return 0, false
	}
	return c.sim.At(i, j), true
}

// KnowsTitle 判断标题是否在索引中。
func (c *Content) KnowsTitle(title string) bool {
	_, ok := c.byTitle[title]
	return ok
}

// Title 返回物品的标题（重复 ID 取第一次出现）。
func (c *Content) Title(itemID string) (string, bool) {
	i, ok := c.byID[itemID]
	if !ok {
		return "", false
	}
	return c.titles[i], true
}

// Len 返回物品数量。
func (c *Content) Len() int { return len(c.ids) }

// VocabularySize 返回 TF-IDF 词表大小。
func (c *Content) VocabularySize() int { return c.vocab }

// Items 返回物品 ID（表格原顺序，含重复）。
func (c *Content) Items() []string { return append([]string(nil), c.ids...) }

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
