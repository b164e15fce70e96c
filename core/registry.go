package core

import (
	"context"
	"time"
)

// VersionStatus 是模型版本的生命周期状态。
type VersionStatus string

const (
	VersionPending VersionStatus = "pending" // 已分配版本号，训练中
	VersionReady   VersionStatus = "ready"   // bundle 已写入且可用
	VersionFailed  VersionStatus = "failed"  // 训练失败（终态，不会自动重试）
)

// ModelVersion 描述某个项目的一个 artifact bundle 版本。
type ModelVersion struct {
	Project   string        `json:"project"`
	Version   int           `json:"version"`
	Kind      string        `json:"kind"`
	Status    VersionStatus `json:"status"`
	RunID     string        `json:"run_id"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Registry 是模型版本注册的领域接口：记录每个项目"当前"可用的 bundle 版本。
//
// 训练流程：NextVersion → 写入 bundle → Promote（或 Fail）。
// 预测流程只需要 Current。
//
// 实现：
//   - registry.StoreRegistry（基于 KeyValueStore）
//   - registry.GormRegistry（基于 SQL）
type Registry interface {
	// NextVersion 为项目分配一个新的、单调递增的版本号
	NextVersion(ctx context.Context, project string) (int, error)

	// Promote 记录版本为 ready 并将其设为项目当前版本
	Promote(ctx context.Context, mv ModelVersion) error

	// Fail 记录版本训练失败，不影响当前版本
	Fail(ctx context.Context, project string, version int, reason string) error

	// Current 返回项目当前版本，不存在时返回 NOT_FOUND
	Current(ctx context.Context, project string) (*ModelVersion, error)

	// Versions 按版本号降序返回最近 limit 个版本记录（limit<=0 表示全部）
	Versions(ctx context.Context, project string, limit int) ([]ModelVersion, error)
}

// ErrNoCurrentVersion 表示项目还没有可用模型
var ErrNoCurrentVersion = NewDomainError(ModuleRegistry, ErrorCodeNotFound, "registry: project has no current model version")
