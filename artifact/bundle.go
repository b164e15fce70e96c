// Package artifact 定义训练产物 bundle：模型类型标签 + 该类型需要的模型状态，
// 以及把 bundle 按分片写入 core.Store、再按标签只读取所需分片的 Repository。
//
// Bundle 是封闭的变体，只有 ContentBundle、CollaborativeBundle、HybridBundle 三种实现，
// 调用方用 type switch 穷举匹配。
package artifact

import (
	"fmt"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/model"
)

// Kind 是持久化的模型类型标签。
type Kind string

const (
	KindContent       Kind = "content"
	KindCollaborative Kind = "collaborative"
	KindHybrid        Kind = "hybrid"
)

// ParseKind 解析模型类型标签，只接受三种已知值。
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindContent, KindCollaborative, KindHybrid:
		return k, nil
	}
	return "", core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, fmt.Sprintf("unknown model kind %q", s))
}

func (k Kind) String() string { return string(k) }

// parts 返回该类型必需的模型分片（不含可选的 catalog）。
func (k Kind) parts() []Part {
	switch k {
	case KindContent:
		return []Part{PartContent}
	case KindCollaborative:
		return []Part{PartCollaborative}
	case KindHybrid:
		return []Part{PartContent, PartCollaborative}
	}
	return nil
}

// Bundle 是一次训练的不可变产物。
type Bundle interface {
	Kind() Kind
	// Manifest 返回 bundle 的元信息
	Manifest() Manifest
	// Catalog 返回物品表（用于标题补全），可能为 nil
	Catalog() *Catalog

	isBundle()
}

// ContentBundle 只包含内容相似度模型。
type ContentBundle struct {
	Meta    Manifest
	Content *model.Content
	Items   *Catalog
}

// CollaborativeBundle 只包含协同过滤模型；若项目也上传了物品表，Items 用于标题补全。
type CollaborativeBundle struct {
	Meta          Manifest
	Collaborative *model.Collaborative
	Items         *Catalog
}

// HybridBundle 同时包含两个模型和混合权重。
type HybridBundle struct {
	Meta   Manifest
	Hybrid *model.Hybrid
	Items  *Catalog
}

func (*ContentBundle) Kind() Kind       { return KindContent }
func (*CollaborativeBundle) Kind() Kind { return KindCollaborative }
func (*HybridBundle) Kind() Kind        { return KindHybrid }

func (b *ContentBundle) Manifest() Manifest       { return b.Meta.withKind(KindContent) }
func (b *CollaborativeBundle) Manifest() Manifest { return b.Meta.withKind(KindCollaborative) }
func (b *HybridBundle) Manifest() Manifest        { return b.Meta.withKind(KindHybrid) }

func (b *ContentBundle) Catalog() *Catalog       { return b.Items }
func (b *CollaborativeBundle) Catalog() *Catalog { return b.Items }
func (b *HybridBundle) Catalog() *Catalog        { return b.Items }

func (*ContentBundle) isBundle()       {}
func (*CollaborativeBundle) isBundle() {}
func (*HybridBundle) isBundle()        {}
