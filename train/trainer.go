// Package train 把调用方提供的表格训练成 artifact bundle 并发布为项目的新版本。
//
// 流程：确定模型类型 → 分配版本号 → 拟合模型（hybrid 两个模型并行）→ 写入 bundle → Promote。
// 任何失败都是终态：记录到 Registry.Fail 后原样返回，不重试。
package train

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/config"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/logging"
	"github.com/rushteam/tabrec/metrics"
	"github.com/rushteam/tabrec/model"
	"github.com/rushteam/tabrec/table"
)

// Request 是一次训练的输入。
type Request struct {
	Project string `validate:"required,max=128"`

	// Kind 为空时按提供的表推断：两张表 → hybrid，只有物品表 → content，只有交互表 → collaborative
	Kind artifact.Kind `validate:"omitempty,oneof=content collaborative hybrid"`

	Items             *table.Table
	ContentSchema     table.Schema
	Interactions      *table.Table
	InteractionSchema table.Schema

	// Rank 为协同过滤的秩；0 使用 Trainer 配置的默认值
	Rank int `validate:"gte=0"`

	// HybridWeight 为混合模型内容相似度权重；nil 使用 Trainer 配置的默认值
	HybridWeight *float64 `validate:"omitempty,gte=0,lte=1"`
}

// Option 配置 Trainer。
type Option func(*Trainer)

// WithTrainingConfig 设置默认秩。
func WithTrainingConfig(cfg core.TrainingConfig) Option {
	return func(t *Trainer) { t.training = cfg }
}

// WithHybridWeight 设置默认混合权重。
func WithHybridWeight(w float64) Option {
	return func(t *Trainer) { t.weight = w }
}

// Trainer 训练并发布模型版本。
type Trainer struct {
	repo     *artifact.Repository
	registry core.Registry
	training core.TrainingConfig
	weight   float64
	newRunID func() string
}

// NewTrainer 创建 Trainer。
func NewTrainer(repo *artifact.Repository, registry core.Registry, opts ...Option) *Trainer {
	t := &Trainer{
		repo:     repo,
		registry: registry,
		training: &core.DefaultConfig{},
		weight:   core.DefaultHybridWeight,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DecideKind 返回本次训练的模型类型。
func DecideKind(req *Request) (artifact.Kind, error) {
	hasItems, hasInteractions := req.Items != nil, req.Interactions != nil
	if req.Kind != "" {
		k, err := artifact.ParseKind(string(req.Kind))
		if err != nil {
			return "", core.WrapDomainError(core.ModuleTrain, core.ErrorCodeConfiguration, "model kind", err)
		}
		switch {
		case (k == artifact.KindContent || k == artifact.KindHybrid) && !hasItems:
			return "", core.Configurationf(core.ModuleTrain, "%s model requires an item table", k)
		case (k == artifact.KindCollaborative || k == artifact.KindHybrid) && !hasInteractions:
			return "", core.Configurationf(core.ModuleTrain, "%s model requires an interaction table", k)
		}
		return k, nil
	}
	switch {
	case hasItems && hasInteractions:
		return artifact.KindHybrid, nil
	case hasItems:
		return artifact.KindContent, nil
	case hasInteractions:
		return artifact.KindCollaborative, nil
	}
	return "", core.Configurationf(core.ModuleTrain, "no item or interaction table supplied")
}

// Train 执行一次训练并返回发布后的版本。
func (t *Trainer) Train(ctx context.Context, req *Request) (*core.ModelVersion, error) {
	if req == nil {
		return nil, core.Configurationf(core.ModuleTrain, "training request is required")
	}
	if err := config.Validator().Struct(req); err != nil {
		return nil, core.WrapDomainError(core.ModuleTrain, core.ErrorCodeConfiguration, "invalid training request", err)
	}
	kind, err := DecideKind(req)
	if err != nil {
		return nil, err
	}

	version, err := t.registry.NextVersion(ctx, req.Project)
	if err != nil {
		return nil, err
	}
	runID := t.newRunID()
	log := logging.With().
		Str("project", req.Project).
		Int("version", version).
		Str("kind", string(kind)).
		Str("run_id", runID).
		Logger()
	log.Info().Msg("training started")

	start := time.Now()
	mv, err := t.run(ctx, req, kind, version, runID)
	metrics.RecordTraining(string(kind), time.Since(start), err)
	if err != nil {
		log.Error().Err(err).Msg("training failed")
		// 记录失败不能被已取消的 ctx 阻断
		if ferr := t.registry.Fail(context.WithoutCancel(ctx), req.Project, version, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("record training failure")
		}
		return nil, err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("training finished")
	return mv, nil
}

func (t *Trainer) run(ctx context.Context, req *Request, kind artifact.Kind, version int, runID string) (*core.ModelVersion, error) {
	rank := req.Rank
	if rank == 0 {
		rank = t.training.DefaultRank()
	}

	var (
		content *model.Content
		collab  *model.Collaborative
	)
	g, gctx := errgroup.WithContext(ctx)
	if kind == artifact.KindContent || kind == artifact.KindHybrid {
		g.Go(func() error {
			var err error
			content, err = model.FitContent(gctx, req.Items, req.ContentSchema)
			if err != nil {
				return fmt.Errorf("fit content model: %w", err)
			}
			return nil
		})
	}
	if kind == artifact.KindCollaborative || kind == artifact.KindHybrid {
		g.Go(func() error {
			var err error
			collab, err = model.FitCollaborative(gctx, req.Interactions, req.InteractionSchema, rank)
			if err != nil {
				return fmt.Errorf("fit collaborative model: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog, err := t.catalog(req, kind)
	if err != nil {
		return nil, err
	}

	meta := artifact.Manifest{Project: req.Project, Version: version, RunID: runID}
	var b artifact.Bundle
	switch kind {
	case artifact.KindContent:
		meta.ContentSchema = schemaRef(req.ContentSchema)
		b = &artifact.ContentBundle{Meta: meta, Content: content, Items: catalog}
	case artifact.KindCollaborative:
		meta.InteractionSchema = schemaRef(req.InteractionSchema)
		if catalog != nil {
			meta.ContentSchema = schemaRef(req.ContentSchema)
		}
		b = &artifact.CollaborativeBundle{Meta: meta, Collaborative: collab, Items: catalog}
	case artifact.KindHybrid:
		meta.ContentSchema = schemaRef(req.ContentSchema)
		meta.InteractionSchema = schemaRef(req.InteractionSchema)
		weight := t.weight
		if req.HybridWeight != nil {
			weight = *req.HybridWeight
		}
		b = &artifact.HybridBundle{Meta: meta, Hybrid: model.NewHybrid(content, collab, weight), Items: catalog}
	}

	written, err := t.repo.Put(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("write bundle: %w", err)
	}
	mv := core.ModelVersion{
		Project:   req.Project,
		Version:   version,
		Kind:      string(kind),
		Status:    core.VersionReady,
		RunID:     runID,
		CreatedAt: written.CreatedAt,
	}
	if err := t.registry.Promote(ctx, mv); err != nil {
		return nil, fmt.Errorf("promote version: %w", err)
	}
	return &mv, nil
}

// catalog 在项目提供了物品表时构建 Catalog。content/hybrid 的 schema 已在拟合时校验；
// collaborative 的物品表只用于标题补全，映射不完整时跳过。
func (t *Trainer) catalog(req *Request, kind artifact.Kind) (*artifact.Catalog, error) {
	if req.Items == nil {
		return nil, nil
	}
	c, err := artifact.NewCatalog(req.Items, req.ContentSchema)
	if err == nil {
		return c, nil
	}
	if kind == artifact.KindCollaborative && core.IsConfiguration(err) {
		logging.Warn().Err(err).Str("project", req.Project).Msg("item table ignored for title lookup")
		return nil, nil
	}
	return nil, err
}

func schemaRef(s table.Schema) *table.Schema {
	return &s
}
