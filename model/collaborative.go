package model

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/table"
)

// SparseRow 是一个用户在原始（未中心化）评分透视表中的已观测单元格。
// Items 为物品列下标，升序。
type SparseRow struct {
	Items   []int     `json:"items"`
	Ratings []float64 `json:"ratings"`
}

// CollaborativeState 是协同过滤模型的持久化形态。
type CollaborativeState struct {
	Users       []string    `json:"users"`
	Items       []string    `json:"items"`
	UserMeans   []float64   `json:"user_means"`
	UserFactors [][]float64 `json:"user_factors"` // |users| x k，U_k·Σ_k
	ItemFactors [][]float64 `json:"item_factors"` // |items| x k，V_k
	Pivot       []SparseRow `json:"pivot"`
	Rank        int         `json:"rank"`
}

// Collaborative 是基于截断 SVD 的隐因子协同过滤模型。
//
// 评分透视表中未观测的单元格在中心化后保持 0，即视为"中性"评分。
// 这是一个近似，并不是真正的缺失值掩码。
type Collaborative struct {
	users       []string
	items       []string
	userIdx     map[string]int
	itemIdx     map[string]int
	means       []float64
	userFactors *mat.Dense
	itemFactors *mat.Dense
	rated       []map[int]float64
	rank        int
}

// FitCollaborative 在交互表上训练协同过滤模型。
//
// k 为 SVD 秩，0 表示默认值 core.DefaultRank，之后被裁剪到 min(用户数, 物品数) - 1。
// 未映射评分列时每条交互视为隐式评分 1.0；重复的 (用户, 物品) 取平均。
func FitCollaborative(ctx context.Context, t *table.Table, s table.Schema, k int) (*Collaborative, error) {
	cols, err := table.ResolveInteraction(t, s)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, core.Configurationf(core.ModuleModel, "rank must be positive, got %d", k)
	}
	if k == 0 {
		k = core.DefaultRank
	}

	type cell struct {
		sum   float64
		count int
	}
	cells := make(map[string]map[string]*cell)
	itemSet := make(map[string]struct{})
	for i, row := range t.Rows {
		u := table.NormalizeID(row[cols.UserID])
		it := table.NormalizeID(row[cols.ItemID])
		if u == "" || it == "" {
			return nil, core.InputCoercionf(core.ModuleModel, "interaction row %d: blank user or item id", i+1)
		}
		r := 1.0
		if cols.HasRating() {
			if r, err = table.ParseRating(row[cols.Rating]); err != nil {
				return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInputCoercion,
					fmt.Sprintf("interaction row %d", i+1), err)
			}
		}
		byItem, ok := cells[u]
		if !ok {
			byItem = make(map[string]*cell)
			cells[u] = byItem
		}
		c, ok := byItem[it]
		if !ok {
			c = &cell{}
			byItem[it] = c
		}
		c.sum += r
		c.count++
		itemSet[it] = struct{}{}
	}

	users := sortedKeys(cells)
	items := sortedKeys(itemSet)
	if len(users) < 2 || len(items) < 2 {
		return nil, core.Configurationf(core.ModuleModel,
			"collaborative model needs at least 2 distinct users and 2 distinct items, got %d users and %d items",
			len(users), len(items))
	}
	if limit := min(len(users), len(items)) - 1; k > limit {
		k = limit
	}

	itemIdx := indexOf(items)
	pivot := make([]SparseRow, len(users))
	means := make([]float64, len(users))
	centered := mat.NewDense(len(users), len(items), nil)
	for ui, u := range users {
		byItem := cells[u]
		row := SparseRow{
			Items:   make([]int, 0, len(byItem)),
			Ratings: make([]float64, 0, len(byItem)),
		}
		for it := range byItem {
			row.Items = append(row.Items, itemIdx[it])
		}
		sort.Ints(row.Items)
		for _, j := range row.Items {
			c := byItem[items[j]]
			row.Ratings = append(row.Ratings, c.sum/float64(c.count))
		}
		means[ui] = floats.Sum(row.Ratings) / float64(len(row.Ratings))
		for n, j := range row.Items {
			centered.Set(ui, j, row.Ratings[n]-means[ui])
		}
		pivot[ui] = row
	}

	if err := checkContext(ctx, "factorize"); err != nil {
		return nil, err
	}
	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInternalError, "svd factorization did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sigma := svd.Values(nil)

	userFactors := mat.NewDense(len(users), k, nil)
	userFactors.Copy(u.Slice(0, len(users), 0, k))
	for j := 0; j < k; j++ {
		col := mat.Col(nil, j, userFactors)
		floats.Scale(sigma[j], col)
		userFactors.SetCol(j, col)
	}
	itemFactors := mat.NewDense(len(items), k, nil)
	itemFactors.Copy(v.Slice(0, len(items), 0, k))

	return newCollaborative(users, items, means, userFactors, itemFactors, pivot, k), nil
}

// NewCollaborative 从持久化状态恢复协同过滤模型。
func NewCollaborative(state *CollaborativeState) (*Collaborative, error) {
	if state == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state is nil")
	}
	nu, ni, k := len(state.Users), len(state.Items), state.Rank
	switch {
	case nu == 0 || ni == 0 || k < 1:
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state is empty")
	case len(state.UserMeans) != nu || len(state.UserFactors) != nu || len(state.Pivot) != nu:
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state: user dimension mismatch")
	case len(state.ItemFactors) != ni:
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state: item dimension mismatch")
	}
	userFactors, err := denseFromRows(state.UserFactors, k)
	if err != nil {
		return nil, err
	}
	itemFactors, err := denseFromRows(state.ItemFactors, k)
	if err != nil {
		return nil, err
	}
	for _, row := range state.Pivot {
		if len(row.Items) != len(row.Ratings) {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state: malformed pivot row")
		}
		for _, j := range row.Items {
			if j < 0 || j >= ni {
				return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state: pivot item out of range")
			}
		}
	}
	return newCollaborative(state.Users, state.Items, state.UserMeans, userFactors, itemFactors, state.Pivot, k), nil
}

func newCollaborative(users, items []string, means []float64, uf, vf *mat.Dense, pivot []SparseRow, k int) *Collaborative {
	rated := make([]map[int]float64, len(pivot))
	for i, row := range pivot {
		rated[i] = make(map[int]float64, len(row.Items))
		for n, j := range row.Items {
			rated[i][j] = row.Ratings[n]
		}
	}
	return &Collaborative{
		users:       users,
		items:       items,
		userIdx:     indexOf(users),
		itemIdx:     indexOf(items),
		means:       means,
		userFactors: uf,
		itemFactors: vf,
		rated:       rated,
		rank:        k,
	}
}

// State 导出持久化状态。
func (m *Collaborative) State() *CollaborativeState {
	pivot := make([]SparseRow, len(m.users))
	for i, r := range m.rated {
		row := SparseRow{Items: make([]int, 0, len(r)), Ratings: make([]float64, 0, len(r))}
		for j := range r {
			row.Items = append(row.Items, j)
		}
		sort.Ints(row.Items)
		for _, j := range row.Items {
			row.Ratings = append(row.Ratings, r[j])
		}
		pivot[i] = row
	}
	return &CollaborativeState{
		Users:       append([]string(nil), m.users...),
		Items:       append([]string(nil), m.items...),
		UserMeans:   append([]float64(nil), m.means...),
		UserFactors: rowsOf(m.userFactors),
		ItemFactors: rowsOf(m.itemFactors),
		Pivot:       pivot,
		Rank:        m.rank,
	}
}

// PredictScore 估计 user 对 item 的评分：dot(用户因子, 物品因子) + 用户均值。
// 未知用户或物品返回 (0, false)。
func (m *Collaborative) PredictScore(user, item string) (float64, bool) {
	ui, ok := m.userIdx[user]
	if !ok {
		return 0, false
	}
	ii, ok := m.itemIdx[item]
	if !ok {
		return 0, false
	}
	return m.predict(ui, ii), true
}

func (m *Collaborative) predict(ui, ii int) float64 {
	return floats.Dot(m.userFactors.RawRowView(ui), m.itemFactors.RawRowView(ii)) + m.means[ui]
}

// Recommend 对用户未评分过的物品打分，返回分数最高的 n 个。
// 未知用户或 n <= 0 返回空列表。
func (m *Collaborative) Recommend(user string, n int) []Scored {
	ui, ok := m.userIdx[user]
	if !ok || n <= 0 {
		return []Scored{}
	}
	rated := m.rated[ui]
	scored := make([]Scored, 0, len(m.items)-len(rated))
	for ii, id := range m.items {
		if _, seen := rated[ii]; seen {
			continue
		}
		scored = append(scored, Scored{ItemID: id, Score: m.predict(ui, ii)})
	}
	return topN(scored, n)
}

// KnowsUser 判断用户是否在训练数据中。
func (m *Collaborative) KnowsUser(user string) bool {
	_, ok := m.userIdx[user]
	return ok
}

// Rated 返回用户在原始透视表中的已评分物品及评分。
func (m *Collaborative) Rated(user string) map[string]float64 {
	ui, ok := m.userIdx[user]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(m.rated[ui]))
	for j, r := range m.rated[ui] {
		out[m.items[j]] = r
	}
	return out
}

// UserMean 返回用户已观测评分的均值。
func (m *Collaborative) UserMean(user string) (float64, bool) {
	ui, ok := m.userIdx[user]
	if !ok {
		return 0, false
	}
	return m.means[ui], true
}

// Rank 返回实际使用的 SVD 秩。
func (m *Collaborative) Rank() int { return m.rank }

// Users 返回用户 ID（字典序）。
func (m *Collaborative) Users() []string { return append([]string(nil), m.users...) }

// Items 返回物品 ID（字典序）。
func (m *Collaborative) Items() []string { return append([]string(nil), m.items...) }

func denseFromRows(rows [][]float64, k int) (*mat.Dense, error) {
	d := mat.NewDense(len(rows), k, nil)
	for i, r := range rows {
		if len(r) != k {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeCorrupt, "collaborative state: factor width mismatch")
		}
		d.SetRow(i, r)
	}
	return d, nil
}

func rowsOf(d *mat.Dense) [][]float64 {
	r, _ := d.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), d.RawRowView(i)...)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		out[id] = i
	}
	return out
}
