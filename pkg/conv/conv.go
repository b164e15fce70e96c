// Package conv 提供表格值与 Node 配置（YAML/JSON/环境变量解析结果）的类型转换。
package conv

import (
	"fmt"
	"strconv"
	"strings"
)

// ToString 将标量转为 string，用于把调用方表格中的 ID 统一成字符串。
// 整数值的浮点数格式化为不带小数点的形式（3.0 与 3 视为同一个 ID "3"）。
func ToString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return formatFloat(float64(val)), true
	case float64:
		return formatFloat(val), true
	case bool:
		return strconv.FormatBool(val), true
	case fmt.Stringer:
		return val.String(), true
	}
	return "", false
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// SliceAnyToString 将 []any 或 []string 转为 []string；单个字符串按逗号拆分（来自环境变量时常见）。
// 无法转换的元素被跳过。
func SliceAnyToString(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case string:
		var out []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := ToString(e); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ConfigGet 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt64 按 key 取整数。YAML 得到 int，JSON 得到 float64，环境变量得到 string，统一为 int64。
func ConfigGetInt64(m map[string]any, key string, defaultVal int64) int64 {
	switch val := m[key].(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case float64:
		return int64(val)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

// ConfigGetBool 按 key 取布尔值，兼容 "true"/"false" 字符串。
func ConfigGetBool(m map[string]any, key string, defaultVal bool) bool {
	switch val := m[key].(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}
