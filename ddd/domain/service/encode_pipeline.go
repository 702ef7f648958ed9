package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/ddd/domain/port"
	"sizefit-service/ddd/domain/repo"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
	"sizefit-service/pkg/fsutil"
	"sizefit-service/pkg/logger"
)

// PipelineConfig 两遍编码参数
type PipelineConfig struct {
	PassTimeout time.Duration
	Preset      string
	AudioCodec  string
}

// PipelineJob is everything one pipeline run needs.
type PipelineJob struct {
	JobID     string
	Artifacts vo.ArtifactSet
	Plan      *vo.BitratePlan
}

// EncodePipeline 两遍编码流水线
type EncodePipeline struct {
	registry    repo.JobRegistry
	runner      port.PassRunner
	thumbnailer gateway.Thumbnailer
	publisher   gateway.JobEventPublisher
	archive     gateway.OutputArchive
	cfg         PipelineConfig
}

// NewEncodePipeline 创建编码流水线. thumbnailer, publisher and archive may be nil.
func NewEncodePipeline(
	registry repo.JobRegistry,
	runner port.PassRunner,
	thumbnailer gateway.Thumbnailer,
	publisher gateway.JobEventPublisher,
	archive gateway.OutputArchive,
	cfg PipelineConfig,
) *EncodePipeline {
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 300 * time.Second
	}
	if cfg.Preset == "" {
		cfg.Preset = "medium"
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = "libopus"
	}
	if publisher == nil {
		publisher = gateway.NoopPublisher{}
	}
	return &EncodePipeline{
		registry:    registry,
		runner:      runner,
		thumbnailer: thumbnailer,
		publisher:   publisher,
		archive:     archive,
		cfg:         cfg,
	}
}

// Run executes thumbnail extraction (fire and forget) and both passes for a
// job already registered as Transcoding. The job ends Done or Error. Run
// returns only after the thumbnail attempt has finished.
func (p *EncodePipeline) Run(ctx context.Context, job PipelineJob) error {
	log := logger.WithJob(job.JobID)
	if job.Plan == nil {
		err := errno.ErrEncodeProcessFailed.WithMessage("no bitrate plan for job %s", job.JobID)
		p.fail(ctx, job.JobID, err)
		return err
	}

	// the thumbnail reads the upload, so cleanup and return wait for it
	thumbDone := make(chan struct{})
	if p.thumbnailer != nil {
		go func() {
			defer close(thumbDone)
			_ = p.thumbnailer.Generate(ctx, job.JobID, job.Artifacts.Upload())
		}()
	} else {
		close(thumbDone)
	}
	defer func() { <-thumbDone }()

	a := job.Artifacts
	passes := []struct {
		stage  vo.PipelineStage
		input  string
		output string
	}{
		{vo.StagePass1Running, a.Upload(), a.Pass1Output()},
		{vo.StagePass2Running, a.Pass1Output(), a.FinalOutput()},
	}
	for i, pass := range passes {
		if err := p.registry.SetStage(job.JobID, pass.stage); err != nil {
			p.fail(ctx, job.JobID, err)
			return err
		}
		spec := port.PassSpec{
			JobID: job.JobID,
			Pass:  i + 1,
			Args:  p.BuildPassArgs(i+1, job, pass.input, pass.output),
		}
		if err := p.runPass(ctx, spec, job.Plan.DurationSec); err != nil {
			log.Errorf("Transcode failed pass=%d error=%v", spec.Pass, err)
			p.fail(ctx, job.JobID, err)
			return err
		}
	}

	if err := p.registry.MarkDone(job.JobID); err != nil {
		log.Errorf("mark job done failed error=%v", err)
		return err
	}
	<-thumbDone
	fsutil.RemoveQuietly(a.Upload(), a.Pass1Output())
	if matches, err := filepath.Glob(a.PassLogGlob()); err == nil {
		fsutil.RemoveQuietly(matches...)
	}
	log.Infof("Transcoded successfully")

	p.publish(ctx, job.JobID, gateway.JobEventDone, "")
	p.archiveOutput(ctx, job)
	return nil
}

// BuildPassArgs assembles the encoder command line for one pass.
func (p *EncodePipeline) BuildPassArgs(pass int, job PipelineJob, input, output string) []string {
	plan := job.Plan
	args := []string{
		"-v", "error",
		"-progress", "-",
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("scale=%d:%d", plan.Width, plan.Height),
		"-c:v", plan.VideoCodec,
	}
	if plan.HasAudio() {
		args = append(args, "-c:a", p.cfg.AudioCodec)
	}
	args = append(args, "-preset", p.cfg.Preset)
	if pass == 1 {
		args = append(args, "-f", "mp4")
	}
	args = append(args,
		"-pass", strconv.Itoa(pass),
		"-passlogfile", job.Artifacts.PassLog(),
		"-b:v", fmt.Sprintf("%dk", plan.VideoBitrateKbps),
	)
	if plan.HasAudio() {
		args = append(args, "-b:a", fmt.Sprintf("%dk", plan.AudioBitrateKbps))
	} else {
		args = append(args, "-an")
	}
	return append(args, output)
}

// runPass runs one pass under the pass timeout and folds its progress events
// into the registry.
func (p *EncodePipeline) runPass(ctx context.Context, spec port.PassSpec, durationSec float64) error {
	passCtx, cancel := context.WithTimeout(ctx, p.cfg.PassTimeout)
	defer cancel()

	events := make(chan vo.ProgressEvent, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(events)
		errCh <- p.runner.RunPass(passCtx, spec, events)
	}()

	tracker := NewPassProgress(spec.Pass, durationSec)
	for ev := range events {
		update, ok := tracker.Apply(ev)
		if !ok {
			continue
		}
		if err := p.registry.UpdateProgress(spec.JobID, update); err != nil {
			logger.WithJob(spec.JobID).Warnf("progress update dropped error=%v", err)
		}
	}

	err := <-errCh
	if err == nil {
		return nil
	}
	if errors.Is(err, errno.ErrEncodeTimeout) || errors.Is(passCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("pass %d: %w", spec.Pass, errno.ErrEncodeTimeout.WithMessage("Process timed out after %s", p.cfg.PassTimeout))
	}
	if errors.Is(err, errno.ErrEncodeProcessFailed) {
		return fmt.Errorf("pass %d: %w", spec.Pass, err)
	}
	return fmt.Errorf("pass %d: %w: %v", spec.Pass, errno.ErrEncodeProcessFailed, err)
}

func (p *EncodePipeline) fail(ctx context.Context, jobID string, cause error) {
	if err := p.registry.MarkError(jobID, cause.Error()); err != nil {
		logger.WithJob(jobID).Warnf("mark job failed error=%v", err)
		return
	}
	p.publish(ctx, jobID, gateway.JobEventFailed, cause.Error())
}

func (p *EncodePipeline) publish(ctx context.Context, jobID, eventType, reason string) {
	snap, err := p.registry.Get(jobID)
	if err != nil {
		return
	}
	ev := gateway.JobEvent{
		Type:             eventType,
		JobID:            jobID,
		Status:           snap.Status.String(),
		Progress:         snap.Progress,
		TargetSizeMB:     snap.TargetSizeMB,
		VideoBitrateKbps: snap.VideoBitrateKbps,
		AudioBitrateKbps: snap.AudioBitrateKbps,
		Error:            reason,
		OccurredAt:       time.Now(),
	}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logger.WithJob(jobID).Warnf("publish %s event failed error=%v", eventType, err)
	}
}

func (p *EncodePipeline) archiveOutput(ctx context.Context, job PipelineJob) {
	if p.archive == nil {
		return
	}
	if _, err := p.archive.ArchiveOutput(ctx, job.JobID, job.Artifacts.FinalOutput()); err != nil {
		logger.WithJob(job.JobID).Warnf("archive final output failed error=%v", err)
	}
}

// PassProgress maps one pass's progress events onto the job-wide 0-100 scale:
// pass 1 covers [0,50], pass 2 covers [50,100].
type PassProgress struct {
	pass       int
	duration   float64
	outTimeSec float64
}

// NewPassProgress 创建单遍进度换算器
func NewPassProgress(pass int, durationSec float64) *PassProgress {
	return &PassProgress{pass: pass, duration: durationSec}
}

// Apply converts an event into a registry update.
func (t *PassProgress) Apply(ev vo.ProgressEvent) (vo.ProgressUpdate, bool) {
	var u vo.ProgressUpdate
	if t.duration <= 0 {
		return u, false
	}
	base := 0
	if t.pass == 2 {
		base = 50
	}
	changed := false

	if ev.HasOutTime {
		out := math.Min(math.Max(ev.OutTimeSec, 0), t.duration)
		t.outTimeSec = out
		pct := int(math.Ceil(out/t.duration*100.0/2.0)) + base
		if pct < base {
			pct = base
		}
		if pct > base+50 {
			pct = base + 50
		}
		u.Progress = pct
		u.OutTimeSec = out
		u.HasOutTime = true
		changed = true
	}

	if ev.HasSpeed && ev.Speed > 0 {
		left := (t.duration - t.outTimeSec) / ev.Speed
		if t.pass == 1 {
			// the second pass still has the whole input ahead of it
			left += t.duration / ev.Speed
		}
		if left < 0 {
			left = 0
		}
		u.LeftSec = int(math.Round(left))
		u.HasLeft = true
		changed = true
	}
	return u, changed
}
