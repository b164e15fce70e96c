package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rushteam/tabrec/core"
)

// versionRecord 是 model_versions 表的一行。
type versionRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Project   string `gorm:"size:255;not null;uniqueIndex:idx_model_versions_project_version"`
	Version   int    `gorm:"not null;uniqueIndex:idx_model_versions_project_version"`
	Kind      string `gorm:"size:32"`
	Status    string `gorm:"size:16;not null"`
	RunID     string `gorm:"size:64"`
	Reason    string `gorm:"type:text"`
	IsCurrent bool   `gorm:"not null;default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (versionRecord) TableName() string { return "model_versions" }

func (r *versionRecord) toModel() *core.ModelVersion {
	return &core.ModelVersion{
		Project:   r.Project,
		Version:   r.Version,
		Kind:      r.Kind,
		Status:    core.VersionStatus(r.Status),
		RunID:     r.RunID,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// GormRegistry 是基于 SQL 的版本注册表；同一项目最多一行 is_current = true。
type GormRegistry struct {
	db *gorm.DB
}

// Open 按 DSN 打开数据库：postgres:// 或 postgresql:// 使用 postgres，其余视为 sqlite 文件路径。
func Open(dsn string) (*GormRegistry, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, core.Configurationf(core.ModuleRegistry, "registry: sql dsn is required")
	}
	sqliteDB := true
	dialector := sqlite.Open(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
		sqliteDB = false
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if sqliteDB {
		// sqlite 单写者；":memory:" 每个连接是独立的库
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormRegistry(db)
}

// NewGormRegistry 使用已有连接创建注册表，并自动迁移 model_versions 表。
func NewGormRegistry(db *gorm.DB) (*GormRegistry, error) {
	if err := db.AutoMigrate(&versionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate model_versions: %w", err)
	}
	return &GormRegistry{db: db}, nil
}

// Close 关闭底层连接。
func (r *GormRegistry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

const maxAllocateAttempts = 3

func (r *GormRegistry) NextVersion(ctx context.Context, project string) (int, error) {
	if err := checkProject(project); err != nil {
		return 0, err
	}
	var version int
	var err error
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var max int
			if err := tx.Model(&versionRecord{}).
				Where("project = ?", project).
				Select("COALESCE(MAX(version), 0)").
				Scan(&max).Error; err != nil {
				return err
			}
			version = max + 1
			return tx.Create(&versionRecord{
				Project: project,
				Version: version,
				Status:  string(core.VersionPending),
			}).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("allocate version for %s: %w", project, err)
	}
	return version, nil
}

func (r *GormRegistry) Promote(ctx context.Context, mv core.ModelVersion) error {
	if err := checkVersion(mv.Project, mv.Version); err != nil {
		return err
	}
	rec := versionRecord{
		Project:   mv.Project,
		Version:   mv.Version,
		Kind:      mv.Kind,
		Status:    string(core.VersionReady),
		RunID:     mv.RunID,
		IsCurrent: true,
		CreatedAt: mv.CreatedAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&versionRecord{}).
			Where("project = ? AND is_current = ?", mv.Project, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project"}, {Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "status", "run_id", "reason", "is_current", "updated_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("promote %s@v%d: %w", mv.Project, mv.Version, err)
	}
	return nil
}

func (r *GormRegistry) Fail(ctx context.Context, project string, version int, reason string) error {
	if err := checkVersion(project, version); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec versionRecord
		err := tx.Where("project = ? AND version = ?", project, version).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&versionRecord{
				Project: project,
				Version: version,
				Status:  string(core.VersionFailed),
				Reason:  reason,
			}).Error
		case err != nil:
			return fmt.Errorf("read %s@v%d: %w", project, version, err)
		}
		if rec.Status == string(core.VersionReady) {
			return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
				fmt.Sprintf("registry: %s@v%d is already ready", project, version))
		}
		return tx.Model(&rec).Updates(map[string]any{
			"status": string(core.VersionFailed),
			"reason": reason,
		}).Error
	})
}

func (r *GormRegistry) Current(ctx context.Context, project string) (*core.ModelVersion, error) {
	var rec versionRecord
	err := r.db.WithContext(ctx).
		Where("project = ? AND is_current = ?", project, true).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noCurrent(project)
	}
	if err != nil {
		return nil, fmt.Errorf("read current version of %s: %w", project, err)
	}
	return rec.toModel(), nil
}

func (r *GormRegistry) Versions(ctx context.Context, project string, limit int) ([]core.ModelVersion, error) {
	q := r.db.WithContext(ctx).Where("project = ?", project).Order("version DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []versionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", project, err)
	}
	out := make([]core.ModelVersion, 0, len(recs))
	for i := range recs {
		out = append(out, *recs[i].toModel())
	}
	return out, nil
}
