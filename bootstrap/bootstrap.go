// Package bootstrap 按应用配置装配存储、注册表、训练器与预测服务。
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/config"
	"github.com/rushteam/tabrec/config/builders"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/logging"
	"github.com/rushteam/tabrec/pipeline"
	"github.com/rushteam/tabrec/registry"
	"github.com/rushteam/tabrec/service"
	"github.com/rushteam/tabrec/store"
	"github.com/rushteam/tabrec/train"
)

// Runtime 是装配完成的运行时组件。
type Runtime struct {
	Config   *config.App
	Store    core.Store
	Repo     *artifact.Repository
	Registry core.Registry
	Trainer  *train.Trainer
	Server   *service.Server

	closers []func() error
}

// New 打开配置中的后端并组装 Runtime。失败时已打开的资源会被关闭。
func New(ctx context.Context, cfg *config.App) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.Store, err = OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.Store.Close)
	rt.Repo = artifact.NewRepository(rt.Store)

	switch cfg.Registry.Backend {
	case "sql":
		gr, err := registry.Open(cfg.Registry.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, gr.Close)
		rt.Registry = gr
	default:
		kv, ok := rt.Store.(core.KeyValueStore)
		if !ok {
			return nil, core.Configurationf(core.ModuleConfig, "registry.backend=store needs a key-value store, %s is blob-only", rt.Store.Name())
		}
		rt.Registry = registry.NewStoreRegistry(kv, cfg.Registry.KeyPrefix)
	}

	rt.Trainer = train.NewTrainer(rt.Repo, rt.Registry,
		train.WithTrainingConfig(cfg),
		train.WithHybridWeight(cfg.ContentWeight()),
	)

	nodes, err := BuildNodes(rt.Store, cfg.Serving.Nodes)
	if err != nil {
		return nil, err
	}
	rt.Server, err = service.NewServer(rt.Registry, rt.Repo, cfg.Serving.CacheSize,
		service.WithNodes(nodes...),
		service.WithDefaultTopN(cfg.DefaultTopN()),
	)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Str("store", rt.Store.Name()).
		Str("registry", cfg.Registry.Backend).
		Int("nodes", len(nodes)).
		Msg("runtime ready")
	return rt, nil
}

// OpenStore 按 store.backend 打开存储。
func OpenStore(ctx context.Context, cfg config.StoreConfig) (core.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		s, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := store.OpenBadgerStore(store.BadgerConfig{Path: cfg.Badger.Path, InMemory: cfg.Badger.InMemory})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "gcs":
		s, err := store.NewGCSStore(ctx, store.GCSConfig{
			Bucket:       cfg.GCS.Bucket,
			Prefix:       cfg.GCS.Prefix,
			EmulatorHost: cfg.GCS.EmulatorHost,
			Concurrency:  cfg.GCS.Concurrency,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, core.Configurationf(core.ModuleConfig, "unknown store backend %q", cfg.Backend)
}

// BuildNodes 构建 serving.nodes。KV 后端会额外启用依赖存储的节点（filter.exposed 等）。
func BuildNodes(s core.Store, configs []pipeline.NodeConfig) ([]pipeline.Node, error) {
	if kv, ok := s.(core.KeyValueStore); ok {
		builders.RegisterStoreNodes(kv)
	}
	if err := config.ValidateNodes(configs); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "serving.nodes", err)
	}
	nodes, err := pipeline.BuildNodes(configs, config.DefaultFactory())
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "serving.nodes", err)
	}
	return nodes, nil
}

// Close 按打开的逆序释放资源。
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close runtime: %w", errors.Join(errs...))
	}
	return nil
}
