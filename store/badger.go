package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/tabrec/core"
)

// 键空间前缀：普通 KV、Hash 字段、ZSet 成员互不冲突。
const (
	badgerKVPrefix   = "k\x00"
	badgerHashPrefix = "h\x00"
	badgerZSetPrefix = "z\x00"

	badgerIncrRetries = 8
)

// BadgerStore 是基于 BadgerDB 的嵌入式 KeyValueStore，适合单机部署持久化 bundle 与版本注册。
type BadgerStore struct {
	db    *badger.DB
	owned bool

	// incrMu 串行化进程内的 Incr，跨进程冲突靠事务重试
	incrMu sync.Mutex
}

// BadgerConfig 是 BadgerDB 打开参数。Path 为空时使用内存模式。
type BadgerConfig struct {
	Path     string
	InMemory bool
}

// OpenBadgerStore 打开（或创建）BadgerDB。
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory || cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// NewBadgerStore 包装已打开的 DB，Close 不会关闭它。
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, badgerKVPrefix+key)
		out = v
		return err
	})
	return out, err
}

func (b *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(badgerKVPrefix+key, value, ttl))
	})
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKVPrefix + key))
	})
}

func (b *BadgerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			v, err := getValue(txn, badgerKVPrefix+k)
			if core.IsStoreNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			result[k] = v
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range kvs {
		if err := wb.SetEntry(newEntry(badgerKVPrefix+k, v, ttl)); err != nil {
			return fmt.Errorf("badger batch set %s: %w", k, err)
		}
	}
	return wb.Flush()
}

// Incr 在事务内读-改-写；事务冲突时有限次重试。
func (b *BadgerStore) Incr(ctx context.Context, key string) (int64, error) {
	b.incrMu.Lock()
	defer b.incrMu.Unlock()

	var n int64
	var err error
	for attempt := 0; attempt < badgerIncrRetries; attempt++ {
		err = b.db.Update(func(txn *badger.Txn) error {
			k := badgerKVPrefix + key
			cur, err := getValue(txn, k)
			switch {
			case core.IsStoreNotFound(err):
				n = 0
			case err != nil:
				return err
			default:
				if n, err = strconv.ParseInt(string(cur), 10, 64); err != nil {
					return core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: value is not an integer", err)
				}
			}
			n++
			return txn.Set([]byte(k), []byte(strconv.FormatInt(n, 10)))
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *BadgerStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(zsetKey(key, member)), buf[:])
	})
}

func (b *BadgerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	type pair struct {
		member string
		score  float64
	}
	var pairs []pair
	prefix := []byte(zsetKey(key, ""))
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			member := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return core.NewDomainError(core.ModuleStore, core.ErrorCodeCorrupt, "store: malformed zset score")
				}
				pairs = append(pairs, pair{member: member, score: math.Float64frombits(binary.BigEndian.Uint64(val))})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(pairs) == 0 {
		return nil, err
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].member > pairs[j].member
	})
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, pairs[i].member)
	}
	return out, nil
}

func (b *BadgerStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	var score float64
	err := b.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, zsetKey(key, member))
		if err != nil {
			return err
		}
		if len(v) != 8 {
			return core.NewDomainError(core.ModuleStore, core.ErrorCodeCorrupt, "store: malformed zset score")
		}
		score = math.Float64frombits(binary.BigEndian.Uint64(v))
		return nil
	})
	return score, err
}

func (b *BadgerStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, hashKey(key, field))
		out = v
		return err
	})
	return out, err
}

func (b *BadgerStore) HSet(ctx context.Context, key, field string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(hashKey(key, field)), value)
	})
}

func (b *BadgerStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	prefix := []byte(hashKey(key, ""))
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.Key()[len(prefix):])] = v
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

func getValue(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return item.ValueCopy(nil)
}

func newEntry(key string, value []byte, ttl []int) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

func hashKey(key, field string) string { return badgerHashPrefix + key + "\x00" + field }

func zsetKey(key, member string) string { return badgerZSetPrefix + key + "\x00" + member }

var _ core.KeyValueStore = (*BadgerStore)(nil)
