package store

import (
	"context"
	"os"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/rushteam/tabrec/core"
)

// testBlobStore 覆盖 core.Store 的公共语义。
func testBlobStore(t *testing.T, s core.Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get missing: want not found, got %v", err)
	}
	if err := s.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil || string(got) != "1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.BatchSet(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	batch, err := s.BatchGet(ctx, []string{"a", "b", "c", "zz"})
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	want := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}
	if !reflect.DeepEqual(batch, want) {
		t.Errorf("BatchGet = %v", batch)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !core.IsStoreNotFound(err) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete twice: %v", err)
	}
}

// testKeyValueStore 覆盖 core.KeyValueStore 的扩展语义。
func testKeyValueStore(t *testing.T, s core.KeyValueStore) {
	t.Helper()
	testBlobStore(t, s)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "counter")
		if err != nil || n != want {
			t.Fatalf("Incr = %d, %v; want %d", n, err, want)
		}
	}

	var wg sync.WaitGroup
	seen := make(chan int64, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Incr(ctx, "concurrent")
			if err != nil {
				t.Errorf("Incr: %v", err)
				return
			}
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)
	uniq := map[int64]bool{}
	for n := range seen {
		if uniq[n] {
			t.Errorf("Incr returned %d twice", n)
		}
		uniq[n] = true
	}

	for i, m := range []string{"v1", "v2", "v3"} {
		if err := s.ZAdd(ctx, "z", float64(i+1), m); err != nil {
			t.Fatalf("ZAdd: %v", err)
		}
	}
	all, err := s.ZRange(ctx, "z", 0, -1)
	if err != nil || !reflect.DeepEqual(all, []string{"v3", "v2", "v1"}) {
		t.Errorf("ZRange = %v, %v", all, err)
	}
	top, _ := s.ZRange(ctx, "z", 0, 0)
	if !reflect.DeepEqual(top, []string{"v3"}) {
		t.Errorf("ZRange top = %v", top)
	}
	if score, err := s.ZScore(ctx, "z", "v2"); err != nil || score != 2 {
		t.Errorf("ZScore = %v, %v", score, err)
	}
	if _, err := s.ZScore(ctx, "z", "nope"); !core.IsStoreNotFound(err) {
		t.Errorf("ZScore missing: %v", err)
	}

	if err := s.HSet(ctx, "h", "f1", []byte("x")); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	_ = s.HSet(ctx, "h", "f2", []byte("y"))
	if v, err := s.HGet(ctx, "h", "f1"); err != nil || string(v) != "x" {
		t.Errorf("HGet = %q, %v", v, err)
	}
	if _, err := s.HGet(ctx, "h", "f3"); !core.IsStoreNotFound(err) {
		t.Errorf("HGet missing: %v", err)
	}
	h, err := s.HGetAll(ctx, "h")
	if err != nil || !reflect.DeepEqual(h, map[string][]byte{"f1": []byte("x"), "f2": []byte("y")}) {
		t.Errorf("HGetAll = %v, %v", h, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testKeyValueStore(t, s)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'z'
	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored value changed to %q", got)
	}
	got[1] = 'z'
	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned slice aliases store: %q", again)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.data["old"] = &entry{value: []byte("v"), expire: expireAt([]int{1}).AddDate(0, 0, -1)}
	if _, err := s.Get(ctx, "old"); !core.IsStoreNotFound(err) {
		t.Errorf("expired key still readable: %v", err)
	}
	if n, err := s.Incr(ctx, "old"); err != nil || n != 1 {
		t.Errorf("Incr on expired key = %d, %v", n, err)
	}
	_ = s.Set(ctx, "txt", []byte("abc"))
	if _, err := s.Incr(ctx, "txt"); err == nil {
		t.Error("Incr on non-integer should fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	defer s.Close()
	testKeyValueStore(t, s)
}

func TestBadgerStorePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadgerStore(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	if _, err := s.Incr(ctx, "n"); err != nil {
		t.Fatal(err)
	}
	_ = s.Set(ctx, "blob", []byte("data"))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenBadgerStore(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if n, _ := s.Incr(ctx, "n"); n != 2 {
		t.Errorf("counter after reopen = %d, want 2", n)
	}
	if v, _ := s.Get(ctx, "blob"); string(v) != "data" {
		t.Errorf("blob after reopen = %q", v)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TABREC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TABREC_TEST_REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("TABREC_TEST_REDIS_DB"))
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, DB: db})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	if err := s.client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("FlushDB: %v", err)
	}
	testKeyValueStore(t, s)
}

func TestGCSStore(t *testing.T) {
	host := os.Getenv("TABREC_TEST_GCS_EMULATOR")
	if host == "" {
		t.Skip("TABREC_TEST_GCS_EMULATOR not set")
	}
	s, err := NewGCSStore(context.Background(), GCSConfig{
		Bucket:       "tabrec-test",
		Prefix:       t.Name() + "/",
		EmulatorHost: host,
	})
	if err != nil {
		t.Fatalf("NewGCSStore: %v", err)
	}
	defer s.Close()
	testBlobStore(t, s)
}

func TestNewGCSStoreRequiresBucket(t *testing.T) {
	if _, err := NewGCSStore(context.Background(), GCSConfig{}); !core.IsConfiguration(err) {
		t.Fatalf("want CONFIGURATION, got %v", err)
	}
}
