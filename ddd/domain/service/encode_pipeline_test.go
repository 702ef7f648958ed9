package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sizefit-service/ddd/domain/port"
	"sizefit-service/ddd/domain/repo"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/ddd/infrastructure/registry"
	"sizefit-service/pkg/errno"
)

type fakeRunner struct {
	mu     sync.Mutex
	specs  []port.PassSpec
	events map[int][]vo.ProgressEvent
	errs   map[int]error
	block  bool
}

func (f *fakeRunner) RunPass(ctx context.Context, spec port.PassSpec, events chan<- vo.ProgressEvent) error {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	evs := f.events[spec.Pass]
	err := f.errs[spec.Pass]
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, ev := range evs {
		events <- ev
	}
	if err != nil {
		return err
	}
	out := spec.Args[len(spec.Args)-1]
	return os.WriteFile(out, []byte("pass output"), 0o644)
}

func (f *fakeRunner) calls() []port.PassSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]port.PassSpec(nil), f.specs...)
}

type fakeThumbnailer struct {
	called chan string
}

func (f *fakeThumbnailer) Generate(_ context.Context, jobID, _ string) error {
	f.called <- jobID
	return nil
}

// gatedThumbnailer holds Generate until release is closed and records whether
// the upload was still on disk at that point.
type gatedThumbnailer struct {
	started   chan struct{}
	release   chan struct{}
	sawUpload bool
}

func (g *gatedThumbnailer) Generate(_ context.Context, _, uploadPath string) error {
	close(g.started)
	<-g.release
	g.sawUpload = exists(uploadPath)
	return nil
}

// progressLog records the registry progress after every update.
type progressLog struct {
	repo.JobRegistry
	mu   sync.Mutex
	seen []int
}

func (l *progressLog) UpdateProgress(id string, update vo.ProgressUpdate) error {
	err := l.JobRegistry.UpdateProgress(id, update)
	if snap, getErr := l.JobRegistry.Get(id); getErr == nil {
		l.mu.Lock()
		l.seen = append(l.seen, snap.Progress)
		l.mu.Unlock()
	}
	return err
}

func newPipelineJob(t *testing.T, dir, id string) PipelineJob {
	t.Helper()
	artifacts := vo.NewArtifactSet(dir, id, ".mov")
	if err := os.WriteFile(artifacts.Upload(), []byte("source"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return PipelineJob{
		JobID:     id,
		Artifacts: artifacts,
		Plan: &vo.BitratePlan{
			VideoCodec:       "libx264",
			VideoBitrateKbps: 539,
			AudioBitrateKbps: 128,
			Width:            1280,
			Height:           720,
			DurationSec:      120,
			TargetSizeMB:     10,
		},
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPipelineCompletesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	jobs := registry.NewMemoryJobRegistry()
	job := newPipelineJob(t, dir, "job-1")
	if _, err := jobs.Create(job.JobID, job.Plan); err != nil {
		t.Fatalf("create: %v", err)
	}
	// ffmpeg leaves these next to the pass log prefix
	for _, suffix := range []string{"-0.log", "-0.log.mbtree"} {
		if err := os.WriteFile(job.Artifacts.PassLog()+suffix, nil, 0o644); err != nil {
			t.Fatalf("write passlog: %v", err)
		}
	}

	runner := &fakeRunner{events: map[int][]vo.ProgressEvent{
		1: {{OutTimeSec: 60, HasOutTime: true}, {Speed: 2, HasSpeed: true}},
		2: {{OutTimeSec: 120, HasOutTime: true}},
	}}
	thumbs := &fakeThumbnailer{called: make(chan string, 1)}
	p := NewEncodePipeline(jobs, runner, thumbs, nil, nil, PipelineConfig{})

	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap, err := jobs.Get(job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Status != vo.JobStatusDone || snap.Progress != 100 || snap.Stage != vo.StageDone {
		t.Fatalf("unexpected final state %+v", snap)
	}

	calls := runner.calls()
	if len(calls) != 2 {
		t.Fatalf("expected two passes, got %d", len(calls))
	}
	if calls[0].Args[len(calls[0].Args)-1] != job.Artifacts.Pass1Output() {
		t.Fatalf("pass 1 should write the intermediate output: %v", calls[0].Args)
	}
	if !containsPair(calls[1].Args, "-i", job.Artifacts.Pass1Output()) {
		t.Fatalf("pass 2 should read the pass 1 output: %v", calls[1].Args)
	}

	if exists(job.Artifacts.Upload()) || exists(job.Artifacts.Pass1Output()) {
		t.Fatalf("upload and intermediate output should be removed")
	}
	if matches, _ := filepath.Glob(job.Artifacts.PassLogGlob()); len(matches) != 0 {
		t.Fatalf("pass logs should be removed: %v", matches)
	}
	if !exists(job.Artifacts.FinalOutput()) {
		t.Fatalf("final output should be kept")
	}

	select {
	case id := <-thumbs.called:
		if id != job.JobID {
			t.Fatalf("thumbnail for wrong job %q", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("thumbnail was not generated")
	}
}

func TestPipelineFailureMarksError(t *testing.T) {
	dir := t.TempDir()
	jobs := registry.NewMemoryJobRegistry()
	job := newPipelineJob(t, dir, "job-2")
	if _, err := jobs.Create(job.JobID, job.Plan); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("exit status 1")
	runner := &fakeRunner{errs: map[int]error{1: boom}}
	p := NewEncodePipeline(jobs, runner, nil, nil, nil, PipelineConfig{})

	err := p.Run(context.Background(), job)
	if !errors.Is(err, errno.ErrEncodeProcessFailed) {
		t.Fatalf("expected process failure, got %v", err)
	}
	if len(runner.calls()) != 1 {
		t.Fatalf("pass 2 must not run after pass 1 failed")
	}
	snap, _ := jobs.Get(job.JobID)
	if snap.Status != vo.JobStatusError || snap.Stage != vo.StageError {
		t.Fatalf("expected Error, got %+v", snap)
	}
	if snap.ErrorMessage == "" {
		t.Fatalf("expected error message to be recorded")
	}
	if !exists(job.Artifacts.Upload()) {
		t.Fatalf("failed jobs leave their upload for the sweeper")
	}
	if err := jobs.MarkDone(job.JobID); err == nil {
		t.Fatalf("a failed job must not become Done")
	}
}

func TestPipelinePassTimeout(t *testing.T) {
	dir := t.TempDir()
	jobs := registry.NewMemoryJobRegistry()
	job := newPipelineJob(t, dir, "job-3")
	if _, err := jobs.Create(job.JobID, job.Plan); err != nil {
		t.Fatalf("create: %v", err)
	}

	runner := &fakeRunner{block: true}
	p := NewEncodePipeline(jobs, runner, nil, nil, nil, PipelineConfig{PassTimeout: 50 * time.Millisecond})

	start := time.Now()
	err := p.Run(context.Background(), job)
	if !errors.Is(err, errno.ErrEncodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout took too long")
	}
	snap, _ := jobs.Get(job.JobID)
	if snap.Status != vo.JobStatusError {
		t.Fatalf("expected Error, got %s", snap.Status)
	}
}

func TestBuildPassArgs(t *testing.T) {
	p := NewEncodePipeline(registry.NewMemoryJobRegistry(), &fakeRunner{}, nil, nil, nil, PipelineConfig{})
	job := PipelineJob{
		JobID:     "abc",
		Artifacts: vo.NewArtifactSet("/work", "abc", ".mp4"),
		Plan: &vo.BitratePlan{
			VideoCodec:       "libx265",
			VideoBitrateKbps: 800,
			AudioBitrateKbps: 96,
			Width:            640,
			Height:           360,
		},
	}

	first := strings.Join(p.BuildPassArgs(1, job, "/work/abc.mp4", "/work/abc_1.mp4"), " ")
	want := "-v error -progress - -y -i /work/abc.mp4 -vf scale=640:360 -c:v libx265 -c:a libopus " +
		"-preset medium -f mp4 -pass 1 -passlogfile /work/abc.log -b:v 800k -b:a 96k /work/abc_1.mp4"
	if first != want {
		t.Fatalf("pass 1 args\n got: %s\nwant: %s", first, want)
	}

	second := p.BuildPassArgs(2, job, "/work/abc_1.mp4", "/work/abc_2.mp4")
	if containsPair(second, "-f", "mp4") {
		t.Fatalf("pass 2 must not force the container: %v", second)
	}

	job.Plan.StripAudio = true
	job.Plan.AudioBitrateKbps = 0
	silent := p.BuildPassArgs(2, job, "/work/abc_1.mp4", "/work/abc_2.mp4")
	joined := strings.Join(silent, " ")
	if strings.Contains(joined, "-c:a") || strings.Contains(joined, "-b:a") || !strings.Contains(joined, "-an") {
		t.Fatalf("stripped audio should use -an only: %s", joined)
	}
}

func TestPassProgressBands(t *testing.T) {
	first := NewPassProgress(1, 120)
	u, ok := first.Apply(vo.ProgressEvent{OutTimeSec: 60, HasOutTime: true})
	if !ok || u.Progress != 25 {
		t.Fatalf("pass 1 halfway should be 25, got %d (%v)", u.Progress, ok)
	}
	u, _ = first.Apply(vo.ProgressEvent{OutTimeSec: 500, HasOutTime: true})
	if u.Progress != 50 {
		t.Fatalf("pass 1 is clamped to 50, got %d", u.Progress)
	}
	u, ok = first.Apply(vo.ProgressEvent{Speed: 2, HasSpeed: true})
	if !ok || !u.HasLeft || u.LeftSec != 60 {
		t.Fatalf("left after pass 1 end at 2x should be 60, got %+v", u)
	}

	second := NewPassProgress(2, 120)
	u, _ = second.Apply(vo.ProgressEvent{OutTimeSec: 0, HasOutTime: true})
	if u.Progress != 50 {
		t.Fatalf("pass 2 starts at 50, got %d", u.Progress)
	}
	u, _ = second.Apply(vo.ProgressEvent{OutTimeSec: 30, HasOutTime: true})
	if u.Progress != 63 {
		t.Fatalf("pass 2 quarter should be 63, got %d", u.Progress)
	}
	u, _ = second.Apply(vo.ProgressEvent{Speed: 1.5, HasSpeed: true})
	if u.LeftSec != 60 {
		t.Fatalf("left should be (120-30)/1.5=60, got %d", u.LeftSec)
	}

	if _, ok := NewPassProgress(1, 0).Apply(vo.ProgressEvent{OutTimeSec: 1, HasOutTime: true}); ok {
		t.Fatalf("unknown duration yields no update")
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestPipelineWaitsForThumbnail(t *testing.T) {
	dir := t.TempDir()
	jobs := registry.NewMemoryJobRegistry()
	job := newPipelineJob(t, dir, "job-4")
	if _, err := jobs.Create(job.JobID, job.Plan); err != nil {
		t.Fatalf("create: %v", err)
	}

	thumbs := &gatedThumbnailer{started: make(chan struct{}), release: make(chan struct{})}
	p := NewEncodePipeline(jobs, &fakeRunner{}, thumbs, nil, nil, PipelineConfig{})

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), job) }()

	<-thumbs.started
	select {
	case err := <-done:
		t.Fatalf("run returned before the thumbnail finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if !exists(job.Artifacts.Upload()) {
		t.Fatalf("upload removed while the thumbnail was still reading it")
	}

	close(thumbs.release)
	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after the thumbnail finished")
	}
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !thumbs.sawUpload {
		t.Fatalf("thumbnail could not read the upload")
	}
	if exists(job.Artifacts.Upload()) {
		t.Fatalf("upload should be removed once the job is done")
	}
}

func TestPipelineProgressOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	jobs := &progressLog{JobRegistry: registry.NewMemoryJobRegistry()}
	job := newPipelineJob(t, dir, "job-5")
	if _, err := jobs.Create(job.JobID, job.Plan); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 90s of a 120s source is 38% after the pass 1 band, 30s would be 13%
	runner := &fakeRunner{events: map[int][]vo.ProgressEvent{
		1: {{OutTimeSec: 90, HasOutTime: true}, {OutTimeSec: 30, HasOutTime: true}},
	}}
	p := NewEncodePipeline(jobs, runner, nil, nil, nil, PipelineConfig{})
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	jobs.mu.Lock()
	seen := append([]int(nil), jobs.seen...)
	jobs.mu.Unlock()
	if len(seen) == 0 || seen[0] != 38 {
		t.Fatalf("expected first progress 38, got %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress moved backwards: %v", seen)
		}
	}
	snap, _ := jobs.Get(job.JobID)
	if snap.Progress != 100 {
		t.Fatalf("expected 100 at done, got %d", snap.Progress)
	}
}
