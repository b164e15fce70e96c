package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pipeline"
)

// DefaultConfigPaths 按优先级查找配置文件，使用第一个存在的文件。
var DefaultConfigPaths = []string{
	"tabrec.yaml",
	"tabrec.yml",
	"/etc/tabrec/config.yaml",
}

const (
	// ConfigPathEnvVar 覆盖配置文件路径
	ConfigPathEnvVar = "TABREC_CONFIG"

	// EnvPrefix 是环境变量前缀；层级用双下划线分隔，例如 TABREC_STORE__BACKEND=redis
	EnvPrefix = "TABREC_"
)

// App 是 tabrec 的应用配置。
type App struct {
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Registry RegistryConfig `koanf:"registry"`
	Training TrainingConfig `koanf:"training"`
	Serving  ServingConfig  `koanf:"serving"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

type StoreConfig struct {
	Backend string       `koanf:"backend" validate:"oneof=memory redis badger gcs"`
	Redis   RedisConfig  `koanf:"redis"`
	Badger  BadgerConfig `koanf:"badger"`
	GCS     GCSConfig    `koanf:"gcs"`
}

type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db" validate:"gte=0"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

type BadgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

type GCSConfig struct {
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	EmulatorHost string `koanf:"emulator_host"`
	Concurrency  int    `koanf:"concurrency" validate:"gte=0"`
}

type RegistryConfig struct {
	// Backend 为 store 时使用 Store 作为注册表（要求 KV 后端），sql 时使用 DSN
	Backend   string `koanf:"backend" validate:"oneof=store sql"`
	DSN       string `koanf:"dsn" validate:"required_if=Backend sql"`
	KeyPrefix string `koanf:"key_prefix"`
}

type TrainingConfig struct {
	Rank int `koanf:"rank" validate:"gte=0"`
}

type ServingConfig struct {
	CacheSize    int                   `koanf:"cache_size" validate:"gte=1"`
	DefaultTopN  int                   `koanf:"default_top_n" validate:"gte=1,lte=1000"`
	HybridWeight float64               `koanf:"hybrid_weight" validate:"gte=0,lte=1"`
	Nodes        []pipeline.NodeConfig `koanf:"nodes"`
}

// DefaultRank 实现 core.TrainingConfig。
func (c *App) DefaultRank() int {
	if c.Training.Rank > 0 {
		return c.Training.Rank
	}
	return core.DefaultRank
}

// DefaultTopN 实现 core.ServingConfig。
func (c *App) DefaultTopN() int { return c.Serving.DefaultTopN }

// ContentWeight 实现 core.ServingConfig。
func (c *App) ContentWeight() float64 { return c.Serving.HybridWeight }

func defaultApp() *App {
	return &App{
		Log: LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Backend: "memory",
			Redis:   RedisConfig{Addr: "127.0.0.1:6379", DialTimeout: 5 * time.Second},
			Badger:  BadgerConfig{Path: "data/tabrec"},
			GCS:     GCSConfig{Prefix: "tabrec", Concurrency: 8},
		},
		Registry: RegistryConfig{Backend: "store", KeyPrefix: "tabrec:registry"},
		Training: TrainingConfig{Rank: core.DefaultRank},
		Serving: ServingConfig{
			CacheSize:    64,
			DefaultTopN:  core.DefaultTopN,
			HybridWeight: core.DefaultHybridWeight,
		},
	}
}

// Load 按 默认值 → YAML 文件 → TABREC_ 环境变量 的顺序加载并校验配置。
// path 为空时依次查找 TABREC_CONFIG 与 DefaultConfigPaths，都不存在则只用默认值和环境变量。
func Load(path string) (*App, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultApp(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &App{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey 把 TABREC_SERVING__CACHE_SIZE 映射为 serving.cache_size。
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator 返回共享的 validator 实例（缓存结构体信息，并发安全）。
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate 校验字段约束与跨字段约束。错误为 CONFIGURATION。
func (c *App) Validate() error {
	if err := Validator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return core.Configurationf(core.ModuleConfig, "invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "invalid configuration", err)
	}
	switch {
	case c.Store.Backend == "redis" && c.Store.Redis.Addr == "":
		return core.Configurationf(core.ModuleConfig, "store.redis.addr is required for the redis backend")
	case c.Store.Backend == "gcs" && c.Store.GCS.Bucket == "":
		return core.Configurationf(core.ModuleConfig, "store.gcs.bucket is required for the gcs backend")
	case c.Store.Backend == "badger" && !c.Store.Badger.InMemory && c.Store.Badger.Path == "":
		return core.Configurationf(core.ModuleConfig, "store.badger.path is required unless in_memory is set")
	case c.Registry.Backend == "store" && c.Store.Backend == "gcs":
		return core.Configurationf(core.ModuleConfig, "registry.backend=store needs a key-value store; gcs only stores blobs, use registry.backend=sql")
	}
	return nil
}
