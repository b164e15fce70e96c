package artifact

import (
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/table"
)

// CatalogState 是物品表分片的持久化形态。
type CatalogState struct {
	IDColumn    string     `json:"id_column"`
	TitleColumn string     `json:"title_column"`
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
}

// Catalog 是训练时上传的物品表，预测时用于标题补全与物品列表。
// 重复 ID 取第一次出现的行。
type Catalog struct {
	state  CatalogState
	idCol  int
	titCol int
	byID   map[string]int
	order  []string
}

// NewCatalog 用物品表和 schema 构建 Catalog；item_id 与 item_title 必须可解析。
func NewCatalog(t *table.Table, s table.Schema) (*Catalog, error) {
	if t == nil {
		return nil, core.Configurationf(core.ModuleArtifact, "catalog: item table is missing")
	}
	return NewCatalogFromState(&CatalogState{
		IDColumn:    s.ItemID,
		TitleColumn: s.ItemTitle,
		Columns:     t.Columns,
		Rows:        t.Rows,
	})
}

// NewCatalogFromState 从持久化状态恢复 Catalog。
func NewCatalogFromState(st *CatalogState) (*Catalog, error) {
	t, err := table.New(st.Columns, st.Rows)
	if err != nil {
		return nil, err
	}
	idCol, ok := t.ColumnIndex(st.IDColumn)
	if !ok {
		return nil, core.Configurationf(core.ModuleArtifact, "catalog: id column %q not found", st.IDColumn)
	}
	titCol, ok := t.ColumnIndex(st.TitleColumn)
	if !ok {
		return nil, core.Configurationf(core.ModuleArtifact, "catalog: title column %q not found", st.TitleColumn)
	}
	c := &Catalog{
		state:  CatalogState{IDColumn: st.IDColumn, TitleColumn: st.TitleColumn, Columns: t.Columns, Rows: t.Rows},
		idCol:  idCol,
		titCol: titCol,
		byID:   make(map[string]int, t.Len()),
	}
	for i, row := range t.Rows {
		id := table.NormalizeID(row[idCol])
		if _, dup := c.byID[id]; dup {
			continue
		}
		c.byID[id] = i
		c.order = append(c.order, id)
	}
	return c, nil
}

// State 导出持久化状态。
func (c *Catalog) State() *CatalogState {
	st := c.state
	return &st
}

// Title 返回物品标题。
func (c *Catalog) Title(itemID string) (string, bool) {
	if c == nil {
		return "", false
	}
	i, ok := c.byID[itemID]
	if !ok {
		return "", false
	}
	return c.state.Rows[i][c.titCol], true
}

// Row 返回物品的整行（列名 -> 值），用于展示与 CEL 过滤。
func (c *Catalog) Row(itemID string) (map[string]string, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.byID[itemID]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(c.state.Columns))
	for j, col := range c.state.Columns {
		out[col] = c.state.Rows[i][j]
	}
	return out, true
}

// ItemIDs 返回去重后的物品 ID，保持表格顺序。
func (c *Catalog) ItemIDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Len 返回去重后的物品数量。
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
