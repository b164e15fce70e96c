package registry

import (
	"context"
	"testing"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/store"
)

func TestStoreRegistry(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	testRegistry(t, NewStoreRegistry(s, ""))
}

func TestStoreRegistryBadger(t *testing.T) {
	s, err := store.OpenBadgerStore(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	defer s.Close()
	testRegistry(t, NewStoreRegistry(s, "test"))
}

func TestGormRegistry(t *testing.T) {
	r, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	testRegistry(t, r)
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(" "); !core.IsConfiguration(err) {
		t.Fatalf("want CONFIGURATION, got %v", err)
	}
}

func testRegistry(t *testing.T, r core.Registry) {
	t.Helper()
	ctx := context.Background()

	if _, err := r.Current(ctx, "movies"); !core.IsNotFound(err) {
		t.Fatalf("Current on empty project: want NOT_FOUND, got %v", err)
	}
	if _, err := r.NextVersion(ctx, ""); err == nil {
		t.Fatal("blank project should be rejected")
	}

	var versions []int
	for i := 0; i < 3; i++ {
		v, err := r.NextVersion(ctx, "movies")
		if err != nil {
			t.Fatalf("NextVersion: %v", err)
		}
		versions = append(versions, v)
	}
	for i, v := range versions {
		if v != i+1 {
			t.Fatalf("versions = %v, want 1,2,3", versions)
		}
	}
	if v, _ := r.NextVersion(ctx, "books"); v != 1 {
		t.Errorf("versions are per project, got %d", v)
	}

	if err := r.Promote(ctx, core.ModelVersion{Project: "movies", Version: 1, Kind: "content", RunID: "r1"}); err != nil {
		t.Fatalf("Promote v1: %v", err)
	}
	cur, err := r.Current(ctx, "movies")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Version != 1 || cur.Kind != "content" || cur.Status != core.VersionReady || cur.RunID != "r1" {
		t.Errorf("Current = %+v", cur)
	}

	// 失败的版本不影响当前版本
	if err := r.Fail(ctx, "movies", 2, "no feature columns"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if cur, _ := r.Current(ctx, "movies"); cur.Version != 1 {
		t.Errorf("Current after Fail = v%d, want v1", cur.Version)
	}

	if err := r.Promote(ctx, core.ModelVersion{Project: "movies", Version: 3, Kind: "hybrid", RunID: "r3"}); err != nil {
		t.Fatalf("Promote v3: %v", err)
	}
	if cur, _ := r.Current(ctx, "movies"); cur.Version != 3 || cur.Kind != "hybrid" {
		t.Errorf("Current = %+v, want v3 hybrid", cur)
	}
	if err := r.Fail(ctx, "movies", 3, "late"); err == nil {
		t.Error("failing a ready version should be rejected")
	}

	all, err := r.Versions(ctx, "movies", 0)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Versions = %+v", all)
	}
	want := []struct {
		version int
		status  core.VersionStatus
	}{{3, core.VersionReady}, {2, core.VersionFailed}, {1, core.VersionReady}}
	for i, w := range want {
		if all[i].Version != w.version || all[i].Status != w.status {
			t.Errorf("Versions[%d] = v%d %s, want v%d %s", i, all[i].Version, all[i].Status, w.version, w.status)
		}
	}
	if all[1].Reason != "no feature columns" {
		t.Errorf("reason = %q", all[1].Reason)
	}

	latest, err := r.Versions(ctx, "movies", 1)
	if err != nil || len(latest) != 1 || latest[0].Version != 3 {
		t.Errorf("Versions(limit=1) = %+v, %v", latest, err)
	}
}
