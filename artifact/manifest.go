package artifact

import (
	"fmt"
	"time"

	"github.com/rushteam/tabrec/table"
)

// Part 是 bundle 在存储中的一个分片。
type Part string

const (
	PartManifest      Part = "manifest"
	PartContent       Part = "content"
	PartCollaborative Part = "collaborative"
	PartCatalog       Part = "catalog"
)

// PartInfo 记录分片的校验和与大小。
type PartInfo struct {
	Name Part `json:"name"`
	// Checksum 是未压缩 JSON 的 SHA-256（hex）
	Checksum string `json:"checksum"`
	// Size 是压缩后字节数
	Size    int64 `json:"size"`
	RawSize int64 `json:"raw_size"`
}

// Manifest 是 bundle 的元信息，最后写入、最先读取。
type Manifest struct {
	Project   string    `json:"project"`
	Version   int       `json:"version"`
	Kind      Kind      `json:"kind"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	// ContentSchema / InteractionSchema 是训练时使用的映射
	ContentSchema     *table.Schema `json:"content_schema,omitempty"`
	InteractionSchema *table.Schema `json:"interaction_schema,omitempty"`

	// HybridWeight 是混合模型的内容相似度权重（仅 hybrid）
	HybridWeight float64 `json:"hybrid_weight,omitempty"`

	Stats Stats      `json:"stats"`
	Parts []PartInfo `json:"parts"`
}

// Stats 是训练数据规模统计，仅用于展示。
type Stats struct {
	Items          int `json:"items,omitempty"`
	Users          int `json:"users,omitempty"`
	Rank           int `json:"rank,omitempty"`
	VocabularySize int `json:"vocabulary_size,omitempty"`
}

// Part 查找分片信息。
func (m Manifest) Part(p Part) (PartInfo, bool) {
	for _, info := range m.Parts {
		if info.Name == p {
			return info, true
		}
	}
	return PartInfo{}, false
}

// ID 返回 "project@vN" 形式的标识。
func (m Manifest) ID() string {
	return fmt.Sprintf("%s@v%d", m.Project, m.Version)
}

func (m Manifest) withKind(k Kind) Manifest {
	m.Kind = k
	m.Parts = append([]PartInfo(nil), m.Parts...)
	return m
}
