package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/model"
)

// KeyPrefix 是 bundle 分片 key 的前缀。
const KeyPrefix = "tabrec:bundle:"

// Key 返回 (project, version) 下某个分片的存储 key。
func Key(project string, version int, part Part) string {
	return fmt.Sprintf("%s%s:v%d:%s", KeyPrefix, project, version, part)
}

// Repository 把 bundle 按分片写入 core.Store。
//
// 写入顺序：模型分片 → manifest。manifest 存在即表示 bundle 完整可读；
// 同一 (project, version) 只能写一次。
type Repository struct {
	store core.Store
	now   func() time.Time
}

// NewRepository 创建 Repository。
func NewRepository(store core.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Put 写入 bundle 并返回最终的 manifest（含分片校验和）。
func (r *Repository) Put(ctx context.Context, b Bundle) (Manifest, error) {
	m := b.Manifest()
	if m.Project == "" || m.Version < 1 {
		return Manifest{}, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput,
			fmt.Sprintf("bundle needs a project and a positive version, got %q v%d", m.Project, m.Version))
	}

	manifestKey := Key(m.Project, m.Version, PartManifest)
	_, err := r.store.Get(ctx, manifestKey)
	switch {
	case err == nil:
		return Manifest{}, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeAlreadyExists,
			fmt.Sprintf("bundle %s already exists", m.ID()))
	case !core.IsStoreNotFound(err):
		return Manifest{}, fmt.Errorf("check bundle %s: %w", m.ID(), err)
	}

	type part struct {
		name Part
		v    any
	}
	var parts []part
	switch bb := b.(type) {
	case *ContentBundle:
		parts = append(parts, part{PartContent, bb.Content.State()})
		m.Stats.Items = bb.Content.Len()
		m.Stats.VocabularySize = bb.Content.VocabularySize()
	case *CollaborativeBundle:
		parts = append(parts, part{PartCollaborative, bb.Collaborative.State()})
		m.Stats.Users = len(bb.Collaborative.Users())
		m.Stats.Items = len(bb.Collaborative.Items())
		m.Stats.Rank = bb.Collaborative.Rank()
	case *HybridBundle:
		c, cf := bb.Hybrid.Content(), bb.Hybrid.Collaborative()
		parts = append(parts, part{PartContent, c.State()}, part{PartCollaborative, cf.State()})
		m.HybridWeight = bb.Hybrid.Weight()
		m.Stats.Items = c.Len()
		m.Stats.Users = len(cf.Users())
		m.Stats.Rank = cf.Rank()
		m.Stats.VocabularySize = c.VocabularySize()
	default:
		return Manifest{}, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotSupported,
			fmt.Sprintf("unsupported bundle type %T", b))
	}
	if cat := b.Catalog(); cat != nil {
		parts = append(parts, part{PartCatalog, cat.State()})
	}

	blobs := make(map[string][]byte, len(parts))
	m.Parts = m.Parts[:0]
	for _, p := range parts {
		data, info, err := encodePart(p.name, p.v)
		if err != nil {
			return Manifest{}, err
		}
		blobs[Key(m.Project, m.Version, p.name)] = data
		m.Parts = append(m.Parts, info)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC()
	}

	if err := r.store.BatchSet(ctx, blobs); err != nil {
		return Manifest{}, fmt.Errorf("write bundle %s parts: %w", m.ID(), err)
	}
	data, _, err := encodePart(PartManifest, m)
	if err != nil {
		return Manifest{}, err
	}
	if err := r.store.Set(ctx, manifestKey, data); err != nil {
		return Manifest{}, fmt.Errorf("write bundle %s manifest: %w", m.ID(), err)
	}
	return m, nil
}

// Manifest 只读取 manifest。bundle 不存在时返回 NOT_FOUND。
func (r *Repository) Manifest(ctx context.Context, project string, version int) (Manifest, error) {
	data, err := r.store.Get(ctx, Key(project, version, PartManifest))
	if core.IsStoreNotFound(err) {
		return Manifest{}, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotFound,
			fmt.Sprintf("bundle %s@v%d not found", project, version))
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read bundle %s@v%d manifest: %w", project, version, err)
	}
	var m Manifest
	if err := decodePart(data, PartInfo{Name: PartManifest}, &m); err != nil {
		return Manifest{}, err
	}
	if _, err := ParseKind(string(m.Kind)); err != nil {
		return Manifest{}, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt, "bundle "+m.ID(), err)
	}
	return m, nil
}

// Get 先读取 manifest 确定模型类型，再只读取该类型需要的分片。
func (r *Repository) Get(ctx context.Context, project string, version int) (Bundle, error) {
	m, err := r.Manifest(ctx, project, version)
	if err != nil {
		return nil, err
	}

	want := m.Kind.parts()
	if _, ok := m.Part(PartCatalog); ok {
		want = append(want, PartCatalog)
	}
	keys := make([]string, len(want))
	for i, p := range want {
		if _, ok := m.Part(p); !ok {
			return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt,
				fmt.Sprintf("bundle %s: manifest has no %s part", m.ID(), p))
		}
		keys[i] = Key(project, version, p)
	}
	blobs, err := r.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s parts: %w", m.ID(), err)
	}

	load := func(p Part, v any) error {
		data, ok := blobs[Key(project, version, p)]
		if !ok {
			return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt,
				fmt.Sprintf("bundle %s: %s part is missing", m.ID(), p))
		}
		info, _ := m.Part(p)
		return decodePart(data, info, v)
	}

	var catalog *Catalog
	if _, ok := m.Part(PartCatalog); ok {
		var st CatalogState
		if err := load(PartCatalog, &st); err != nil {
			return nil, err
		}
		if catalog, err = NewCatalogFromState(&st); err != nil {
			return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt, "bundle "+m.ID(), err)
		}
	}

	loadContent := func() (*model.Content, error) {
		var st model.ContentState
		if err := load(PartContent, &st); err != nil {
			return nil, err
		}
		return model.NewContent(&st)
	}
	loadCollaborative := func() (*model.Collaborative, error) {
		var st model.CollaborativeState
		if err := load(PartCollaborative, &st); err != nil {
			return nil, err
		}
		return model.NewCollaborative(&st)
	}

	switch m.Kind {
	case KindContent:
		c, err := loadContent()
		if err != nil {
			return nil, err
		}
		return &ContentBundle{Meta: m, Content: c, Items: catalog}, nil
	case KindCollaborative:
		cf, err := loadCollaborative()
		if err != nil {
			return nil, err
		}
		return &CollaborativeBundle{Meta: m, Collaborative: cf, Items: catalog}, nil
	case KindHybrid:
		c, err := loadContent()
		if err != nil {
			return nil, err
		}
		cf, err := loadCollaborative()
		if err != nil {
			return nil, err
		}
		return &HybridBundle{Meta: m, Hybrid: model.NewHybrid(c, cf, m.HybridWeight), Items: catalog}, nil
	}
	return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt, fmt.Sprintf("bundle %s: unknown kind %q", m.ID(), m.Kind))
}
