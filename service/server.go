package service

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/logging"
	"github.com/rushteam/tabrec/metrics"
)

// DefaultCacheSize 是 Server 默认缓存的 Dispatcher 数量。
const DefaultCacheSize = 64

// Server 是多项目的预测入口：
// registry 当前版本 → repository 读取 bundle → Dispatcher。
//
// bundle 不可变，缓存按 project@version 寻址，新版本上线后旧条目自然被淘汰，无需失效。
// 同一版本的并发加载通过 singleflight 合并。
type Server struct {
	registry core.Registry
	repo     *artifact.Repository
	cache    *lru.Cache[string, *Dispatcher]
	group    singleflight.Group
	opts     []DispatcherOption
}

// NewServer 创建 Server。cacheSize <= 0 时使用 DefaultCacheSize。
func NewServer(registry core.Registry, repo *artifact.Repository, cacheSize int, opts ...DispatcherOption) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Dispatcher](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher cache: %w", err)
	}
	return &Server{registry: registry, repo: repo, cache: cache, opts: opts}, nil
}

// Predict 对项目当前版本执行预测。模型缺失或 bundle 损坏以信封错误返回。
func (s *Server) Predict(ctx context.Context, project string, req *core.PredictRequest) *core.PredictResponse {
	d, err := s.Dispatcher(ctx, project)
	if err != nil {
		return core.Fail(err)
	}
	return d.Predict(ctx, req)
}

// Predictor 返回绑定项目的 core.Predictor。
func (s *Server) Predictor(project string) core.Predictor {
	return projectPredictor{server: s, project: project}
}

type projectPredictor struct {
	server  *Server
	project string
}

func (p projectPredictor) Predict(ctx context.Context, req *core.PredictRequest) *core.PredictResponse {
	return p.server.Predict(ctx, p.project, req)
}

// Dispatcher 返回项目当前版本的 Dispatcher。
func (s *Server) Dispatcher(ctx context.Context, project string) (*Dispatcher, error) {
	mv, err := s.registry.Current(ctx, project)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, project, mv.Version)
}

// DispatcherAt 返回项目指定版本的 Dispatcher（回放/对比旧版本）。
func (s *Server) DispatcherAt(ctx context.Context, project string, version int) (*Dispatcher, error) {
	return s.load(ctx, project, version)
}

func (s *Server) load(ctx context.Context, project string, version int) (*Dispatcher, error) {
	key := fmt.Sprintf("%s@v%d", project, version)
	if d, ok := s.cache.Get(key); ok {
		metrics.BundleCacheHits.Inc()
		return d, nil
	}
	metrics.BundleCacheMisses.Inc()

	v, err, _ := s.group.Do(key, func() (any, error) {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
		b, err := s.repo.Get(context.WithoutCancel(ctx), project, version)
		metrics.BundleLoads.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			logging.Warn().Err(err).Str("bundle", key).Msg("bundle load failed")
			return nil, err
		}
		d := NewDispatcher(b, s.opts...)
		s.cache.Add(key, d)
		logging.Info().Str("bundle", key).Str("kind", string(b.Kind())).Msg("bundle loaded")
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dispatcher), nil
}

// ItemInfo 是项目物品列表中的一项。
type ItemInfo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Items 返回项目当前版本训练时的物品（物品表顺序），最多 limit 个；limit <= 0 时使用 core.DefaultListLimit。
func (s *Server) Items(ctx context.Context, project string, limit int) ([]ItemInfo, error) {
	d, err := s.Dispatcher(ctx, project)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = core.DefaultListLimit
	}

	b := d.Bundle()
	var ids []string
	var title func(string) (string, bool)
	switch bb := b.(type) {
	case *artifact.ContentBundle:
		ids, title = bb.Content.Items(), bb.Content.Title
	case *artifact.CollaborativeBundle:
		ids = bb.Collaborative.Items()
	case *artifact.HybridBundle:
		ids, title = bb.Hybrid.Content().Items(), bb.Hybrid.Content().Title
	}
	if c := b.Catalog(); c != nil {
		ids, title = c.ItemIDs(), c.Title
	}

	out := make([]ItemInfo, 0, min(limit, len(ids)))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		info := ItemInfo{ID: id}
		if title != nil {
			info.Title, _ = title(id)
		}
		out = append(out, info)
	}
	return out, nil
}

// Users 返回项目当前版本训练时的用户（字典序），最多 limit 个；没有协同过滤模型时为空。
func (s *Server) Users(ctx context.Context, project string, limit int) ([]string, error) {
	d, err := s.Dispatcher(ctx, project)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = core.DefaultListLimit
	}
	var users []string
	switch bb := d.Bundle().(type) {
	case *artifact.CollaborativeBundle:
		users = bb.Collaborative.Users()
	case *artifact.HybridBundle:
		users = bb.Hybrid.Collaborative().Users()
	}
	if len(users) > limit {
		users = users[:limit]
	}
	if users == nil {
		users = []string{}
	}
	return users, nil
}
