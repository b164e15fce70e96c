package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/tabrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的 Label DSL 表达式，使用 CEL (Common Expression Language) 实现。
// 编译一次，可被多个 goroutine 并发 Evaluate。
//
// 表达式语法（CEL 标准语法）：
//   - 分数：item.score > 3.5 / item.has_score
//   - 标题：item.title.startsWith("The")
//   - 标签：label.recall_source == "collaborative"
//   - 请求：rctx.user_id == "u1" / rctx.n > 5
//
// 注意：访问不存在的 label 会返回错误，存在性用 "recall_source" in label 判断。
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式；表达式为空时返回 nil（表示恒为 true）。
func Compile(expr string) (*Expr, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Expr{src: expr, prg: prg}, nil
}

// String 返回表达式源码。
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.src
}

// Evaluate 对单个物品求值，返回布尔结果。nil 表达式恒为 true。
func (e *Expr) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if e == nil {
		return true, nil
	}

	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	meta := item.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	in := map[string]any{
		"item": map[string]any{
			"id":        item.ID,
			"title":     item.Title,
			"score":     item.Score,
			"has_score": item.HasScore,
			"meta":      meta,
		},
		"label": labels,
	}

	r := map[string]any{}
	if rctx != nil {
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		r = map[string]any{
			"project":    rctx.Project,
			"user_id":    rctx.UserID,
			"item_title": rctx.ItemTitle,
			"n":          rctx.N,
			"params":     params,
		}
	}
	in["rctx"] = r
	return in
}
