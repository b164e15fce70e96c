package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/tabrec/core"
)

// NodeEvent 是单个 Node 执行完成后的观测数据。
type NodeEvent struct {
	Node     Node
	In       int
	Out      int
	Duration time.Duration
	Err      error
}

// Observer 在每个 Node 执行后被调用（日志、指标）。Observer 不能修改 items。
type Observer func(ctx context.Context, rctx *core.RecommendContext, ev NodeEvent)

// Pipeline 把一次预测拆成可组合的 Node 链：recall → filter → rerank → postprocess。
type Pipeline struct {
	Nodes     []Node
	Observers []Observer
}

// Append 返回追加了 nodes 的新 Pipeline，原 Pipeline 不变（可被多个请求共享）。
func (p *Pipeline) Append(nodes ...Node) *Pipeline {
	out := &Pipeline{
		Nodes:     make([]Node, 0, len(p.Nodes)+len(nodes)),
		Observers: p.Observers,
	}
	out.Nodes = append(out.Nodes, p.Nodes...)
	out.Nodes = append(out.Nodes, nodes...)
	return out
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		ev := NodeEvent{Node: node, In: len(cur), Out: len(next), Duration: time.Since(start), Err: err}
		for _, obs := range p.Observers {
			obs(ctx, rctx, ev)
		}
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
