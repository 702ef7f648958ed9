package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"sizefit-service/ddd/domain/vo"
	"sizefit-service/ddd/infrastructure/registry"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestSweepOnceRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "old.mp4"), 20*time.Minute)
	touch(t, filepath.Join(dir, "old.webp"), 16*time.Minute)
	touch(t, filepath.Join(dir, "fresh_1.mp4"), time.Minute)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	_ = os.Chtimes(filepath.Join(dir, "nested"), old, old)

	s := NewRetentionSweeper(dir, 15*time.Minute, time.Hour, nil)
	res := s.SweepOnce()

	sort.Strings(res.Purged)
	if len(res.Purged) != 2 || res.Purged[0] != "old.mp4" || res.Purged[1] != "old.webp" {
		t.Fatalf("unexpected purge list %v", res.Purged)
	}
	if _, err := os.Stat(filepath.Join(dir, "fresh_1.mp4")); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested")); err != nil {
		t.Fatalf("directories are left alone: %v", err)
	}
}

func TestSweepOnceExpiresFinishedJobs(t *testing.T) {
	jobs := registry.NewMemoryJobRegistry()
	_, _ = jobs.Create("done", &vo.BitratePlan{})
	_, _ = jobs.Create("running", &vo.BitratePlan{})
	_ = jobs.MarkDone("done")

	s := NewRetentionSweeper(t.TempDir(), time.Minute, time.Hour, jobs)
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	res := s.SweepOnce()
	if res.JobsExpired != 1 {
		t.Fatalf("expected one expired job, got %d", res.JobsExpired)
	}
	if _, err := jobs.Get("running"); err != nil {
		t.Fatalf("running job must stay: %v", err)
	}
}

func TestSweepMissingDirectory(t *testing.T) {
	s := NewRetentionSweeper(filepath.Join(t.TempDir(), "gone"), time.Minute, time.Hour, nil)
	if res := s.SweepOnce(); len(res.Purged) != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStartSweepsImmediately(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.mov")
	touch(t, stale, time.Hour)

	s := NewRetentionSweeper(dir, 15*time.Minute, time.Hour, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(stale); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("startup sweep did not remove %s", stale)
}
