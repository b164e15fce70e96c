// Package builders 注册内置的可配置 Node。
package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/tabrec/config"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/filter"
	"github.com/rushteam/tabrec/pipeline"
	"github.com/rushteam/tabrec/pkg/conv"
	"github.com/rushteam/tabrec/rerank"
)

func init() {
	config.Register("filter.blacklist", BuildBlacklistNode(nil))
	config.Register("filter.expr", BuildExprNode)
	config.Register("rerank.topn", BuildTopNNode)
}

// RegisterStoreNodes 注册依赖存储的 Node：filter.blacklist（支持 key）与 filter.exposed。
func RegisterStoreNodes(store core.KeyValueStore) {
	config.Register("filter.blacklist", BuildBlacklistNode(store))
	config.Register("filter.exposed", BuildExposedNode(store))
}

// BuildBlacklistNode 配置：item_ids（列表）、key（Store 中 JSON 数组的 key，可选）。
func BuildBlacklistNode(store core.Store) pipeline.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		ids := conv.SliceAnyToString(cfg["item_ids"])
		key := conv.ConfigGet(cfg, "key", "")
		var bs filter.BlacklistStore
		if key != "" {
			if store == nil {
				return nil, fmt.Errorf("filter.blacklist: key %q needs a store", key)
			}
			bs = filter.NewStoreAdapter(store)
		}
		return &filter.FilterNode{Filters: []filter.Filter{filter.NewBlacklistFilter(ids, bs, key)}}, nil
	}
}

// BuildExposedNode 配置：key_prefix（可选）、window（秒，0 表示不限）。
func BuildExposedNode(store core.KeyValueStore) pipeline.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		if store == nil {
			return nil, fmt.Errorf("filter.exposed needs a key-value store")
		}
		window := time.Duration(conv.ConfigGetInt64(cfg, "window", 0)) * time.Second
		f := filter.NewExposedFilter(store, conv.ConfigGet(cfg, "key_prefix", ""), window)
		return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
	}
}

// BuildExprNode 配置：expr（CEL 表达式，必填）、keep（true 时只保留命中的物品）。
func BuildExprNode(cfg map[string]any) (pipeline.Node, error) {
	expr := conv.ConfigGet(cfg, "expr", "")
	if expr == "" {
		return nil, fmt.Errorf("filter.expr: expr is required")
	}
	f, err := filter.NewExprFilter(expr, conv.ConfigGetBool(cfg, "keep", false))
	if err != nil {
		return nil, fmt.Errorf("filter.expr: %w", err)
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

// BuildTopNNode 配置：n（可选，默认使用请求中的 n）。
func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}
