package entity

import (
	"fmt"
	"sync"
	"time"

	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
)

// Job 转码任务实体. All mutators are safe for concurrent use; a job that has
// reached a final status ignores further updates.
type Job struct {
	mu               sync.Mutex
	id               string
	status           vo.JobStatus
	stage            vo.PipelineStage
	progress         int
	leftSec          int
	outTimeSec       float64
	targetSizeMB     int
	videoBitrateKbps int
	audioBitrateKbps int
	errorMessage     string
	createdAt        time.Time
	updatedAt        time.Time
}

// JobSnapshot is a consistent copy of a job's fields.
type JobSnapshot struct {
	ID               string
	Status           vo.JobStatus
	Stage            vo.PipelineStage
	Progress         int
	LeftSec          int
	OutTimeSec       float64
	TargetSizeMB     int
	VideoBitrateKbps int
	AudioBitrateKbps int
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewJob 创建处于 Transcoding 状态的任务
func NewJob(id string, plan *vo.BitratePlan) *Job {
	now := time.Now()
	j := &Job{
		id:        id,
		status:    vo.JobStatusTranscoding,
		stage:     vo.StageNotStarted,
		createdAt: now,
		updatedAt: now,
	}
	if plan != nil {
		j.targetSizeMB = plan.TargetSizeMB
		j.videoBitrateKbps = plan.VideoBitrateKbps
		j.audioBitrateKbps = plan.AudioBitrateKbps
	}
	return j
}

func (j *Job) ID() string { return j.id }

// ApplyProgress merges an update. Progress only moves forward; the remaining
// time estimate is taken as is. Returns false when the job is already final.
func (j *Job) ApplyProgress(u vo.ProgressUpdate) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.IsFinalStatus() {
		return false
	}
	p := u.Progress
	if p > 100 {
		p = 100
	}
	if p > j.progress {
		j.progress = p
	}
	if u.HasOutTime {
		j.outTimeSec = u.OutTimeSec
	}
	if u.HasLeft {
		j.leftSec = u.LeftSec
	}
	j.updatedAt = time.Now()
	return true
}

// SetStage advances the pipeline stage.
func (j *Job) SetStage(stage vo.PipelineStage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.stage.CanTransitionTo(stage) {
		return errno.ErrJobTerminal.WithMessage("cannot move job %s from stage %s to %s", j.id, j.stage, stage)
	}
	j.stage = stage
	j.updatedAt = time.Now()
	return nil
}

// MarkDone 完成任务
func (j *Job) MarkDone() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.status.CanTransitionTo(vo.JobStatusDone) {
		return errno.ErrJobTerminal.WithMessage("cannot mark job %s done in status %s", j.id, j.status)
	}
	j.status = vo.JobStatusDone
	j.stage = vo.StageDone
	j.progress = 100
	j.leftSec = 0
	j.updatedAt = time.Now()
	return nil
}

// MarkError 标记失败
func (j *Job) MarkError(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.status.CanTransitionTo(vo.JobStatusError) {
		return errno.ErrJobTerminal.WithMessage("cannot mark job %s failed in status %s", j.id, j.status)
	}
	j.status = vo.JobStatusError
	j.stage = vo.StageError
	j.errorMessage = reason
	j.updatedAt = time.Now()
	return nil
}

// Snapshot copies the job's state under its lock.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:               j.id,
		Status:           j.status,
		Stage:            j.stage,
		Progress:         j.progress,
		LeftSec:          j.leftSec,
		OutTimeSec:       j.outTimeSec,
		TargetSizeMB:     j.targetSizeMB,
		VideoBitrateKbps: j.videoBitrateKbps,
		AudioBitrateKbps: j.audioBitrateKbps,
		ErrorMessage:     j.errorMessage,
		CreatedAt:        j.createdAt,
		UpdatedAt:        j.updatedAt,
	}
}

// IsFinal reports whether the job reached Done or Error.
func (j *Job) IsFinal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.IsFinalStatus()
}

// LastUpdate returns the time of the most recent mutation.
func (j *Job) LastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updatedAt
}

func (j *Job) String() string {
	s := j.Snapshot()
	return fmt.Sprintf("job %s status=%s stage=%s progress=%d", s.ID, s.Status, s.Stage, s.Progress)
}
