package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/rushteam/tabrec/core"
)

// GCSConfig 是 Google Cloud Storage 连接配置。
type GCSConfig struct {
	Bucket string
	// Prefix 作为所有对象名的前缀，例如 "tabrec/"
	Prefix string
	// EmulatorHost 非空时连接 fake-gcs-server 等模拟器，不做鉴权
	EmulatorHost string
	// Concurrency 为批量读写的并发数，<=0 时为 8
	Concurrency int
}

// GCSStore 把 key 映射为 GCS 对象，只实现 core.Store：适合存放 bundle 分片，不支持计数器与有序集合。
// 对象存储没有 TTL，ttl 参数被忽略。
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	limit  int
	owned  bool
}

// NewGCSStore 创建 GCS 客户端。
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, core.Configurationf(core.ModuleStore, "gcs: bucket is required")
	}
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	s := NewGCSStoreWithClient(client, cfg)
	s.owned = true
	return s, nil
}

// NewGCSStoreWithClient 包装已有客户端，Close 不会关闭它。
func NewGCSStoreWithClient(client *storage.Client, cfg GCSConfig) *GCSStore {
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 8
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: cfg.Prefix,
		limit:  limit,
	}
}

func (g *GCSStore) Name() string { return "gcs" }

func (g *GCSStore) object(key string) *storage.ObjectHandle {
	return g.bucket.Object(g.prefix + key)
}

func (g *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	return data, nil
}

func (g *GCSStore) Set(ctx context.Context, key string, value []byte, _ ...int) error {
	w := g.object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	err := g.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	var mu sync.Mutex
	result := make(map[string][]byte, len(keys))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.limit)
	for _, k := range keys {
		eg.Go(func() error {
			v, err := g.Get(ctx, k)
			if core.IsStoreNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			result[k] = v
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (g *GCSStore) BatchSet(ctx context.Context, kvs map[string][]byte, _ ...int) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.limit)
	for k, v := range kvs {
		eg.Go(func() error { return g.Set(ctx, k, v) })
	}
	return eg.Wait()
}

func (g *GCSStore) Close() error {
	if !g.owned {
		return nil
	}
	return g.client.Close()
}

var _ core.Store = (*GCSStore)(nil)
