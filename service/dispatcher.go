// Package service 把已加载的 artifact bundle 暴露为预测接口。
//
// Dispatcher 绑定一个 bundle，按 bundle 的模型类型选择召回源并执行服务 Pipeline：
//
//	recall（模型）→ 配置的 filter / rerank 节点 → top n → 标题补全
//
// Predict 从不返回 error：所有失败都体现在 core.PredictResponse 信封中。
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/metrics"
	"github.com/rushteam/tabrec/pipeline"
	"github.com/rushteam/tabrec/recall"
	"github.com/rushteam/tabrec/rerank"
)

// DispatcherOption 配置 Dispatcher。
type DispatcherOption func(*Dispatcher)

// WithNodes 在召回与 top n 之间插入节点（过滤、CEL 表达式等）。
func WithNodes(nodes ...pipeline.Node) DispatcherOption {
	return func(d *Dispatcher) {
		d.nodes = append(d.nodes, nodes...)
	}
}

// WithDefaultTopN 设置请求未指定 n 时的默认值。
func WithDefaultTopN(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.defaultN = n
		}
	}
}

// WithObserver 为每个节点的执行结果注册观测回调。
func WithObserver(obs pipeline.Observer) DispatcherOption {
	return func(d *Dispatcher) {
		d.observers = append(d.observers, obs)
	}
}

// Dispatcher 是单个 bundle 的预测器，实现 core.Predictor，可并发使用。
type Dispatcher struct {
	bundle    artifact.Bundle
	pipeline  *pipeline.Pipeline
	defaultN  int
	nodes     []pipeline.Node
	observers []pipeline.Observer
	routeErr  error
}

// NewDispatcher 为 bundle 创建 Dispatcher。
func NewDispatcher(b artifact.Bundle, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{bundle: b, defaultN: core.DefaultTopN}
	for _, opt := range opts {
		opt(d)
	}

	source, titles, err := route(b)
	if err != nil {
		d.routeErr = err
		return d
	}
	nodes := make([]pipeline.Node, 0, len(d.nodes)+3)
	rn := &recall.Node{Source: source}
	if c := b.Catalog(); c != nil {
		rn.Meta = c
	}
	nodes = append(nodes, rn)
	nodes = append(nodes, d.nodes...)
	nodes = append(nodes, &rerank.TopNNode{}, &rerank.EnrichNode{Titles: titles})
	d.pipeline = &pipeline.Pipeline{
		Nodes:     nodes,
		Observers: append([]pipeline.Observer{observeNode}, d.observers...),
	}
	return d
}

// route 按 bundle 的具体类型选择召回源与标题来源。标题优先取物品表，其次取内容模型。
func route(b artifact.Bundle) (recall.Source, rerank.TitleLookup, error) {
	switch bb := b.(type) {
	case *artifact.ContentBundle:
		if bb.Items != nil {
			return &recall.ContentSource{Model: bb.Content}, bb.Items, nil
		}
		return &recall.ContentSource{Model: bb.Content}, bb.Content, nil
	case *artifact.CollaborativeBundle:
		if bb.Items != nil {
			return &recall.CollaborativeSource{Model: bb.Collaborative}, bb.Items, nil
		}
		return &recall.CollaborativeSource{Model: bb.Collaborative}, nil, nil
	case *artifact.HybridBundle:
		if bb.Items != nil {
			return &recall.HybridSource{Model: bb.Hybrid}, bb.Items, nil
		}
		return &recall.HybridSource{Model: bb.Hybrid}, bb.Hybrid.Content(), nil
	case nil:
		return nil, nil, core.Dispatchf("no model bundle loaded")
	default:
		return nil, nil, core.Dispatchf("unsupported model bundle %T", b)
	}
}

// Bundle 返回绑定的 bundle。
func (d *Dispatcher) Bundle() artifact.Bundle { return d.bundle }

// Kind 返回模型类型；bundle 缺失时为空。
func (d *Dispatcher) Kind() artifact.Kind {
	if d.bundle == nil {
		return ""
	}
	return d.bundle.Kind()
}

func (d *Dispatcher) Predict(ctx context.Context, req *core.PredictRequest) (resp *core.PredictResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = core.Fail(core.Dispatchf("prediction panicked: %v", r))
		}
		metrics.RecordPrediction(string(d.Kind()), time.Since(start), resp.Failed())
	}()

	if d.routeErr != nil {
		return core.Fail(d.routeErr)
	}
	if req == nil {
		return core.Fail(core.Dispatchf("prediction request is required"))
	}

	rctx := d.context(req)
	items, err := d.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		if !core.IsDomainError(err) {
			err = core.WrapDomainError(core.ModuleService, core.ErrorCodeDispatch, "prediction failed", err)
		}
		return core.Fail(err)
	}

	recs := make([]core.Recommendation, 0, len(items))
	for _, it := range items {
		rec := core.Recommendation{ItemID: it.ID}
		if it.Title != "" {
			title := it.Title
			rec.Title = &title
		}
		if it.HasScore {
			score := it.Score
			rec.Score = &score
		}
		recs = append(recs, rec)
	}
	return core.OK(recs)
}

func (d *Dispatcher) context(req *core.PredictRequest) *core.RecommendContext {
	rctx := &core.RecommendContext{N: d.defaultN}
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		rctx.UserID, rctx.HasUser = *req.UserID, true
	}
	if req.ItemTitle != nil && strings.TrimSpace(*req.ItemTitle) != "" {
		rctx.ItemTitle, rctx.HasTitle = *req.ItemTitle, true
	}
	if req.N != nil {
		rctx.N = *req.N
	}
	if d.bundle != nil {
		rctx.Project = d.bundle.Manifest().Project
	}
	return rctx
}

func observeNode(_ context.Context, _ *core.RecommendContext, ev pipeline.NodeEvent) {
	metrics.NodeDuration.WithLabelValues(ev.Node.Name(), string(ev.Node.Kind())).Observe(ev.Duration.Seconds())
}

// String 用于日志。
func (d *Dispatcher) String() string {
	if d.bundle == nil {
		return "dispatcher(<nil>)"
	}
	return fmt.Sprintf("dispatcher(%s %s)", d.bundle.Manifest().ID(), d.Kind())
}
