package repo

import (
	"time"

	"sizefit-service/ddd/domain/entity"
	"sizefit-service/ddd/domain/vo"
)

// JobRegistry is the process-wide store of job status records. Lookups of an
// unknown or deleted id fail with errno.ErrNotFound.
type JobRegistry interface {
	// Create registers a new Transcoding job; a duplicate id fails with errno.ErrJobExists.
	Create(id string, plan *vo.BitratePlan) (entity.JobSnapshot, error)

	Get(id string) (entity.JobSnapshot, error)

	// UpdateProgress merges a progress update; progress never moves backwards.
	UpdateProgress(id string, update vo.ProgressUpdate) error

	SetStage(id string, stage vo.PipelineStage) error

	MarkDone(id string) error

	MarkError(id string, reason string) error

	// Delete removes the job and reports whether it was present.
	Delete(id string) bool

	// Expire drops final jobs whose last update is older than maxAge and
	// returns how many were removed.
	Expire(maxAge time.Duration, now time.Time) int

	Len() int
}
