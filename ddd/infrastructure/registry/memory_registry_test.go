package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
)

func testPlan() *vo.BitratePlan {
	return &vo.BitratePlan{VideoCodec: "libx264", VideoBitrateKbps: 539, AudioBitrateKbps: 128, TargetSizeMB: 10}
}

func TestCreateAndGet(t *testing.T) {
	r := NewMemoryJobRegistry()
	snap, err := r.Create("a", testPlan())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.Status != vo.JobStatusTranscoding || snap.Progress != 0 || snap.VideoBitrateKbps != 539 {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if _, err := r.Create("a", testPlan()); !errors.Is(err, errno.ErrJobExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, errno.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one job, got %d", r.Len())
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	r := NewMemoryJobRegistry()
	if _, err := r.Create("a", testPlan()); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range []int{10, 40, 25, 60, 59} {
		if err := r.UpdateProgress("a", vo.ProgressUpdate{Progress: p, HasLeft: true, LeftSec: 100 - p}); err != nil {
			t.Fatalf("update %d: %v", p, err)
		}
	}
	snap, _ := r.Get("a")
	if snap.Progress != 60 {
		t.Fatalf("expected 60, got %d", snap.Progress)
	}
	if snap.LeftSec != 41 {
		t.Fatalf("left follows the latest estimate, got %d", snap.LeftSec)
	}
}

func TestTerminalJobsAreFrozen(t *testing.T) {
	r := NewMemoryJobRegistry()
	if _, err := r.Create("a", testPlan()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.MarkDone("a"); err != nil {
		t.Fatalf("done: %v", err)
	}
	if err := r.MarkError("a", "late failure"); !errors.Is(err, errno.ErrJobTerminal) {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
	if err := r.UpdateProgress("a", vo.ProgressUpdate{Progress: 10}); !errors.Is(err, errno.ErrJobTerminal) {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
	snap, _ := r.Get("a")
	if snap.Status != vo.JobStatusDone || snap.Progress != 100 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestDelete(t *testing.T) {
	r := NewMemoryJobRegistry()
	_, _ = r.Create("a", testPlan())
	if !r.Delete("a") {
		t.Fatalf("expected delete to report presence")
	}
	if r.Delete("a") {
		t.Fatalf("second delete should report absence")
	}
	if err := r.SetStage("a", vo.StagePass1Running); !errors.Is(err, errno.ErrNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestExpireDropsOnlyOldFinalJobs(t *testing.T) {
	r := NewMemoryJobRegistry()
	for _, id := range []string{"running", "done", "failed"} {
		if _, err := r.Create(id, testPlan()); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	_ = r.MarkDone("done")
	_ = r.MarkError("failed", "boom")

	if n := r.Expire(time.Minute, time.Now()); n != 0 {
		t.Fatalf("fresh jobs must not expire, removed %d", n)
	}
	if n := r.Expire(time.Minute, time.Now().Add(2*time.Minute)); n != 2 {
		t.Fatalf("expected two expired jobs, got %d", n)
	}
	if _, err := r.Get("running"); err != nil {
		t.Fatalf("running job must survive: %v", err)
	}
}

func TestConcurrentJobs(t *testing.T) {
	r := NewMemoryJobRegistry()
	const jobs = 20
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("job-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create(id, testPlan()); err != nil {
				t.Errorf("create %s: %v", id, err)
				return
			}
			for p := 0; p <= 100; p += 5 {
				_ = r.UpdateProgress(id, vo.ProgressUpdate{Progress: p})
				_, _ = r.Get(id)
			}
			_ = r.MarkDone(id)
		}()
	}
	wg.Wait()

	if r.Len() != jobs {
		t.Fatalf("expected %d jobs, got %d", jobs, r.Len())
	}
	for i := 0; i < jobs; i++ {
		snap, err := r.Get(fmt.Sprintf("job-%d", i))
		if err != nil || snap.Status != vo.JobStatusDone || snap.Progress != 100 {
			t.Fatalf("job %d ended in %+v (%v)", i, snap, err)
		}
	}
}
