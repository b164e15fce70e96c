package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/tabrec/core"
)

// 映射角色名，与上传文件时逐行声明的 (role, column) 对一致。
const (
	RoleItemID     = "item_id"
	RoleItemTitle  = "item_title"
	RoleUserID     = "user_id"
	RoleRating     = "rating"
	RoleFeatureCol = "feature_col"
)

// Schema 把语义角色映射到表格列名。FeatureCols 按声明顺序拼接成文本。
type Schema struct {
	ItemID      string   `yaml:"item_id" json:"item_id,omitempty"`
	ItemTitle   string   `yaml:"item_title" json:"item_title,omitempty"`
	UserID      string   `yaml:"user_id" json:"user_id,omitempty"`
	Rating      string   `yaml:"rating" json:"rating,omitempty"`
	FeatureCols []string `yaml:"feature_cols" json:"feature_cols,omitempty"`
}

// Pair 是一条 (role, column) 映射声明。
type Pair struct {
	Role   string `yaml:"role" json:"role"`
	Column string `yaml:"column" json:"column"`
}

// SchemaFromPairs 从 (role, column) 声明构建 Schema。
// feature_col 可以重复；其余角色重复声明时后者覆盖前者。未知角色返回 CONFIGURATION 错误。
func SchemaFromPairs(pairs []Pair) (Schema, error) {
	var s Schema
	for _, p := range pairs {
		switch p.Role {
		case RoleItemID:
			s.ItemID = p.Column
		case RoleItemTitle:
			s.ItemTitle = p.Column
		case RoleUserID:
			s.UserID = p.Column
		case RoleRating:
			s.Rating = p.Column
		case RoleFeatureCol:
			s.FeatureCols = append(s.FeatureCols, p.Column)
		default:
			return Schema{}, core.Configurationf(core.ModuleTable, "unknown schema role %q", p.Role)
		}
	}
	return s, nil
}

// Pairs 把 Schema 展开成 (role, column) 声明，空角色被省略。
func (s Schema) Pairs() []Pair {
	var out []Pair
	add := func(role, col string) {
		if col != "" {
			out = append(out, Pair{Role: role, Column: col})
		}
	}
	add(RoleItemID, s.ItemID)
	add(RoleItemTitle, s.ItemTitle)
	add(RoleUserID, s.UserID)
	add(RoleRating, s.Rating)
	for _, c := range s.FeatureCols {
		add(RoleFeatureCol, c)
	}
	return out
}

// Merge 用 other 中非空的角色覆盖 s，FeatureCols 非空时整体替换。
func (s Schema) Merge(other Schema) Schema {
	if other.ItemID != "" {
		s.ItemID = other.ItemID
	}
	if other.ItemTitle != "" {
		s.ItemTitle = other.ItemTitle
	}
	if other.UserID != "" {
		s.UserID = other.UserID
	}
	if other.Rating != "" {
		s.Rating = other.Rating
	}
	if len(other.FeatureCols) > 0 {
		s.FeatureCols = append([]string(nil), other.FeatureCols...)
	}
	return s
}

// schemaFile 同时支持结构化写法和逐行 pairs 写法。
type schemaFile struct {
	Schema `yaml:",inline"`
	Pairs  []Pair `yaml:"pairs" json:"pairs"`
}

// ParseSchema 解析 YAML（JSON 是 YAML 的子集）格式的 schema。
//
//	item_id: movie_id
//	item_title: title
//	feature_cols: [genres, overview]
//
// 或者：
//
//	pairs:
//	  - {role: item_id, column: movie_id}
//	  - {role: feature_col, column: genres}
func ParseSchema(data []byte) (Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Schema{}, core.WrapDomainError(core.ModuleTable, core.ErrorCodeConfiguration, "parse schema", err)
	}
	if len(f.Pairs) == 0 {
		return f.Schema, nil
	}
	fromPairs, err := SchemaFromPairs(f.Pairs)
	if err != nil {
		return Schema{}, err
	}
	return f.Schema.Merge(fromPairs), nil
}

// LoadSchemaFile 从 .yaml/.yml/.json 文件加载 schema。
func LoadSchemaFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read schema %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var f schemaFile
		if err := json.Unmarshal(data, &f); err != nil {
			return Schema{}, core.WrapDomainError(core.ModuleTable, core.ErrorCodeConfiguration, "parse schema "+path, err)
		}
		if len(f.Pairs) == 0 {
			return f.Schema, nil
		}
		fromPairs, err := SchemaFromPairs(f.Pairs)
		if err != nil {
			return Schema{}, err
		}
		return f.Schema.Merge(fromPairs), nil
	}
	return ParseSchema(data)
}

// ContentColumns 是内容表解析后的列下标。
type ContentColumns struct {
	ItemID    int
	ItemTitle int
	Features  []int
	// FeatureNames 与 Features 一一对应
	FeatureNames []string
}

// InteractionColumns 是交互表解析后的列下标。Rating 为 -1 表示未映射（隐式评分 1.0）。
type InteractionColumns struct {
	UserID int
	ItemID int
	Rating int
}

// HasRating 判断是否映射了评分列。
func (c InteractionColumns) HasRating() bool { return c.Rating >= 0 }

// ResolveContent 校验内容模型所需的映射并返回列下标。
// 空白的 feature 列名会被忽略；剩余的 feature 列必须全部存在于表中，且至少有一个。
func ResolveContent(t *Table, s Schema) (ContentColumns, error) {
	if t == nil {
		return ContentColumns{}, core.Configurationf(core.ModuleTable, "content table is missing")
	}
	var cols ContentColumns
	var err error
	if cols.ItemID, err = lookup(t, RoleItemID, s.ItemID); err != nil {
		return ContentColumns{}, err
	}
	if cols.ItemTitle, err = lookup(t, RoleItemTitle, s.ItemTitle); err != nil {
		return ContentColumns{}, err
	}

	var declared []string
	for _, c := range s.FeatureCols {
		if strings.TrimSpace(c) != "" {
			declared = append(declared, c)
		}
	}
	if len(declared) == 0 {
		return ContentColumns{}, core.Configurationf(core.ModuleTable, "no %s mapped for content table", RoleFeatureCol)
	}
	for _, c := range declared {
		i, err := lookup(t, RoleFeatureCol, c)
		if err != nil {
			return ContentColumns{}, err
		}
		cols.Features = append(cols.Features, i)
		cols.FeatureNames = append(cols.FeatureNames, c)
	}
	return cols, nil
}

// ResolveInteraction 校验协同模型所需的映射并返回列下标。
func ResolveInteraction(t *Table, s Schema) (InteractionColumns, error) {
	if t == nil {
		return InteractionColumns{}, core.Configurationf(core.ModuleTable, "interaction table is missing")
	}
	cols := InteractionColumns{Rating: -1}
	var err error
	if cols.UserID, err = lookup(t, RoleUserID, s.UserID); err != nil {
		return InteractionColumns{}, err
	}
	if cols.ItemID, err = lookup(t, RoleItemID, s.ItemID); err != nil {
		return InteractionColumns{}, err
	}
	if s.Rating != "" {
		if cols.Rating, err = lookup(t, RoleRating, s.Rating); err != nil {
			return InteractionColumns{}, err
		}
	}
	return cols, nil
}

func lookup(t *Table, role, column string) (int, error) {
	if strings.TrimSpace(column) == "" {
		return 0, core.Configurationf(core.ModuleTable, "required role %q is not mapped", role)
	}
	i, ok := t.ColumnIndex(column)
	if !ok {
		return 0, core.Configurationf(core.ModuleTable,
			"column %q mapped as %s not found (available: %s)", column, role, available(t))
	}
	return i, nil
}

func available(t *Table) string {
	cols := append([]string(nil), t.Columns...)
	sort.Strings(cols)
	return strings.Join(cols, ", ")
}
