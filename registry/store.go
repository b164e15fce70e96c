// Package registry 实现 core.Registry：记录每个项目的模型版本以及当前可用版本。
//
// 两种实现语义一致：
//   - StoreRegistry：基于 core.KeyValueStore（memory / redis / badger）
//   - GormRegistry：基于 SQL 表 model_versions（sqlite / postgres）
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tabrec/core"
)

// DefaultKeyPrefix 是 StoreRegistry 的默认 key 前缀。
const DefaultKeyPrefix = "tabrec:registry"

// StoreRegistry 是基于 core.KeyValueStore 的版本注册表。
//
// 存储布局（{p} = KeyPrefix:{project}）：
//   - {p}:seq       计数器，INCR 分配版本号
//   - {p}:versions  Hash，field 为版本号，value 为 ModelVersion JSON
//   - {p}:history   有序集合，member/score 均为版本号
//   - {p}:current   当前版本号
type StoreRegistry struct {
	store     core.KeyValueStore
	KeyPrefix string
	now       func() time.Time
}

// NewStoreRegistry 创建 StoreRegistry。keyPrefix 为空时使用 DefaultKeyPrefix。
func NewStoreRegistry(s core.KeyValueStore, keyPrefix string) *StoreRegistry {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &StoreRegistry{store: s, KeyPrefix: keyPrefix, now: time.Now}
}

func (r *StoreRegistry) key(project, suffix string) string {
	return r.KeyPrefix + ":" + project + ":" + suffix
}

func (r *StoreRegistry) NextVersion(ctx context.Context, project string) (int, error) {
	if err := checkProject(project); err != nil {
		return 0, err
	}
	n, err := r.store.Incr(ctx, r.key(project, "seq"))
	if err != nil {
		return 0, fmt.Errorf("allocate version for %s: %w", project, err)
	}
	mv := core.ModelVersion{
		Project:   project,
		Version:   int(n),
		Status:    core.VersionPending,
		CreatedAt: r.now().UTC(),
	}
	if err := r.put(ctx, mv); err != nil {
		return 0, err
	}
	if err := r.store.ZAdd(ctx, r.key(project, "history"), float64(n), strconv.FormatInt(n, 10)); err != nil {
		return 0, fmt.Errorf("record version %s@v%d: %w", project, n, err)
	}
	return int(n), nil
}

func (r *StoreRegistry) Promote(ctx context.Context, mv core.ModelVersion) error {
	if err := checkVersion(mv.Project, mv.Version); err != nil {
		return err
	}
	prev, err := r.get(ctx, mv.Project, mv.Version)
	switch {
	case err == nil:
		if mv.CreatedAt.IsZero() {
			mv.CreatedAt = prev.CreatedAt
		}
	case !core.IsNotFound(err):
		return err
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = r.now().UTC()
	}
	mv.Status = core.VersionReady
	mv.Reason = ""
	if err := r.put(ctx, mv); err != nil {
		return err
	}
	if err := r.store.ZAdd(ctx, r.key(mv.Project, "history"), float64(mv.Version), strconv.Itoa(mv.Version)); err != nil {
		return fmt.Errorf("record version %s@v%d: %w", mv.Project, mv.Version, err)
	}
	if err := r.store.Set(ctx, r.key(mv.Project, "current"), []byte(strconv.Itoa(mv.Version))); err != nil {
		return fmt.Errorf("promote %s@v%d: %w", mv.Project, mv.Version, err)
	}
	return nil
}

func (r *StoreRegistry) Fail(ctx context.Context, project string, version int, reason string) error {
	if err := checkVersion(project, version); err != nil {
		return err
	}
	mv, err := r.get(ctx, project, version)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		mv = &core.ModelVersion{Project: project, Version: version, CreatedAt: r.now().UTC()}
	}
	if mv.Status == core.VersionReady {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
			fmt.Sprintf("registry: %s@v%d is already ready", project, version))
	}
	mv.Status = core.VersionFailed
	mv.Reason = reason
	if err := r.put(ctx, *mv); err != nil {
		return err
	}
	if err := r.store.ZAdd(ctx, r.key(project, "history"), float64(version), strconv.Itoa(version)); err != nil {
		return fmt.Errorf("record version %s@v%d: %w", project, version, err)
	}
	return nil
}

func (r *StoreRegistry) Current(ctx context.Context, project string) (*core.ModelVersion, error) {
	data, err := r.store.Get(ctx, r.key(project, "current"))
	if core.IsStoreNotFound(err) {
		return nil, noCurrent(project)
	}
	if err != nil {
		return nil, fmt.Errorf("read current version of %s: %w", project, err)
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleRegistry, core.ErrorCodeCorrupt,
			fmt.Sprintf("registry: current pointer of %s", project), err)
	}
	return r.get(ctx, project, version)
}

func (r *StoreRegistry) Versions(ctx context.Context, project string, limit int) ([]core.ModelVersion, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := r.store.ZRange(ctx, r.key(project, "history"), 0, stop)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", project, err)
	}
	all, err := r.store.HGetAll(ctx, r.key(project, "versions"))
	if err != nil && !core.IsStoreNotFound(err) {
		return nil, fmt.Errorf("list versions of %s: %w", project, err)
	}

	out := make([]core.ModelVersion, 0, len(members))
	for _, m := range members {
		data, ok := all[m]
		if !ok {
			continue
		}
		mv, err := decodeVersion(project, m, data)
		if err != nil {
			return nil, err
		}
		out = append(out, *mv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *StoreRegistry) get(ctx context.Context, project string, version int) (*core.ModelVersion, error) {
	field := strconv.Itoa(version)
	data, err := r.store.HGet(ctx, r.key(project, "versions"), field)
	if core.IsStoreNotFound(err) {
		return nil, core.NewDomainError(core.ModuleRegistry, core.ErrorCodeNotFound,
			fmt.Sprintf("registry: %s@v%d not found", project, version))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s@v%d: %w", project, version, err)
	}
	return decodeVersion(project, field, data)
}

func (r *StoreRegistry) put(ctx context.Context, mv core.ModelVersion) error {
	data, err := json.Marshal(mv)
	if err != nil {
		return fmt.Errorf("encode %s@v%d: %w", mv.Project, mv.Version, err)
	}
	if err := r.store.HSet(ctx, r.key(mv.Project, "versions"), strconv.Itoa(mv.Version), data); err != nil {
		return fmt.Errorf("write %s@v%d: %w", mv.Project, mv.Version, err)
	}
	return nil
}

func decodeVersion(project, field string, data []byte) (*core.ModelVersion, error) {
	var mv core.ModelVersion
	if err := json.Unmarshal(data, &mv); err != nil {
		return nil, core.WrapDomainError(core.ModuleRegistry, core.ErrorCodeCorrupt,
			fmt.Sprintf("registry: %s@v%s", project, field), err)
	}
	return &mv, nil
}

func checkProject(project string) error {
	if strings.TrimSpace(project) == "" {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput, "registry: project is required")
	}
	return nil
}

func checkVersion(project string, version int) error {
	if err := checkProject(project); err != nil {
		return err
	}
	if version < 1 {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
			fmt.Sprintf("registry: invalid version %d for %s", version, project))
	}
	return nil
}

func noCurrent(project string) error {
	return core.WrapDomainError(core.ModuleRegistry, core.ErrorCodeNotFound,
		fmt.Sprintf("registry: project %q", project), core.ErrNoCurrentVersion)
}
