package conv

import (
	"reflect"
	"testing"
)

func TestToString(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"42", "42", true},
		{42, "42", true},
		{int64(7), "7", true},
		{3.0, "3", true},
		{2.5, "2.5", true},
		{float32(4), "4", true},
		{true, "true", true},
		{nil, "", false},
		{[]int{1}, "", false},
	}
	for _, tt := range tests {
		got, ok := ToString(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ToString(%v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSliceAnyToString(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{[]any{"a", 1, 2.0, []int{}}, []string{"a", "1", "2"}},
		{[]string{"x"}, []string{"x"}},
		{"a, b,,c", []string{"a", "b", "c"}},
		{nil, nil},
		{42, nil},
	}
	for _, tt := range tests {
		if got := SliceAnyToString(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SliceAnyToString(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigGet(t *testing.T) {
	cfg := map[string]any{"expr": "item.score > 1", "n": 5, "f": 3.0, "s": " 12 ", "keep": "true", "bad": "x"}

	if got := ConfigGet(cfg, "expr", ""); got != "item.score > 1" {
		t.Errorf("expr = %q", got)
	}
	if got := ConfigGet(cfg, "n", ""); got != "" {
		t.Errorf("type mismatch should give default, got %q", got)
	}
	if got := ConfigGet[string](nil, "expr", "d"); got != "d" {
		t.Errorf("nil map = %q", got)
	}
	for key, want := range map[string]int64{"n": 5, "f": 3, "s": 12, "bad": -1, "missing": -1} {
		if got := ConfigGetInt64(cfg, key, -1); got != want {
			t.Errorf("ConfigGetInt64(%s) = %d, want %d", key, got, want)
		}
	}
	if !ConfigGetBool(cfg, "keep", false) || ConfigGetBool(cfg, "bad", false) {
		t.Error("ConfigGetBool")
	}
}
