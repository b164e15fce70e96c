// Package table 提供训练输入的表格抽象：列名 + 字符串行、CSV 读取、schema 映射与解析。
//
// 训练核心从不自己读文件：调用方负责把上传的内容表（物品元数据）和交互表（用户-物品评分）
// 装成 Table，再连同 schema 映射一起交给 train / model。
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pkg/conv"
)

// Table 是按列名访问的字符串表格。所有单元格都是字符串，缺失值为空串。
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New 创建表格，行长度不足时补空串，多余的单元格被截断。
func New(columns []string, rows [][]string) (*Table, error) {
	t := &Table{Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c]; dup {
			return nil, core.InputCoercionf(core.ModuleTable, "duplicate column %q", c)
		}
		t.index[c] = i
	}
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(columns))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// FromRecords 用任意标量值构建表格，所有值按 conv.ToString 统一转成字符串（ID 的字符串化就发生在这里）。
func FromRecords(columns []string, records []map[string]any) (*Table, error) {
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		for j, c := range columns {
			v, ok := rec[c]
			if !ok || v == nil {
				continue
			}
			s, ok := conv.ToString(v)
			if !ok {
				return nil, core.InputCoercionf(core.ModuleTable, "row %d column %q: cannot convert %T to string", i, c, v)
			}
			row[j] = s
		}
		rows = append(rows, row)
	}
	return New(columns, rows)
}

// ReadCSV 从 reader 读取带表头的 CSV。
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.InputCoercionf(core.ModuleTable, "csv: empty input, header required")
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleTable, core.ErrorCodeInputCoercion, "csv: read header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleTable, core.ErrorCodeInputCoercion, "csv: read row", err)
		}
		rows = append(rows, rec)
	}
	return New(header, rows)
}

// LoadCSV 从文件读取带表头的 CSV。
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Len 返回行数。
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has 判断列是否存在。
func (t *Table) Has(column string) bool {
	if t == nil {
		return false
	}
	t.ensureIndex()
	_, ok := t.index[column]
	return ok
}

// ColumnIndex 返回列下标。
func (t *Table) ColumnIndex(column string) (int, bool) {
	if t == nil {
		return 0, false
	}
	t.ensureIndex()
	i, ok := t.index[column]
	return i, ok
}

// Value 返回第 row 行 column 列的值，列不存在时返回空串。
func (t *Table) Value(row int, column string) string {
	i, ok := t.ColumnIndex(column)
	if !ok {
		return ""
	}
	return t.Rows[row][i]
}

func (t *Table) ensureIndex() {
	if t.index != nil && len(t.index) == len(t.Columns) {
		return
	}
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// ParseRating 把单元格转为评分。空值与非数值都是 INPUT_COERCION 错误，NaN/Inf 同样拒绝。
func ParseRating(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, core.InputCoercionf(core.ModuleTable, "rating value is empty")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, core.InputCoercionf(core.ModuleTable, "rating value %q is not numeric", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, core.InputCoercionf(core.ModuleTable, "rating value %q is not finite", raw)
	}
	return f, nil
}

// NormalizeID 把 ID 单元格规范化为查找用字符串（去掉首尾空白）。
func NormalizeID(raw string) string {
	return strings.TrimSpace(raw)
}
