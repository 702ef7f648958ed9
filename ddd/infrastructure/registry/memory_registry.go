package registry

import (
	"sync"
	"time"

	"sizefit-service/ddd/domain/entity"
	"sizefit-service/ddd/domain/repo"
	"sizefit-service/ddd/domain/vo"
	"sizefit-service/pkg/errno"
)

// MemoryJobRegistry keeps jobs in a map guarded by an RWMutex. The map lock
// only covers insert, lookup and delete; field updates take the job's own
// lock, so jobs never contend with each other.
type MemoryJobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*entity.Job
}

var _ repo.JobRegistry = (*MemoryJobRegistry)(nil)

// NewMemoryJobRegistry 创建内存任务注册表
func NewMemoryJobRegistry() *MemoryJobRegistry {
	return &MemoryJobRegistry{jobs: make(map[string]*entity.Job)}
}

func (r *MemoryJobRegistry) Create(id string, plan *vo.BitratePlan) (entity.JobSnapshot, error) {
	if id == "" {
		return entity.JobSnapshot{}, errno.ErrInvalidUUID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[id]; exists {
		return entity.JobSnapshot{}, errno.ErrJobExists
	}
	job := entity.NewJob(id, plan)
	r.jobs[id] = job
	return job.Snapshot(), nil
}

func (r *MemoryJobRegistry) Get(id string) (entity.JobSnapshot, error) {
	job, err := r.lookup(id)
	if err != nil {
		return entity.JobSnapshot{}, err
	}
	return job.Snapshot(), nil
}

func (r *MemoryJobRegistry) UpdateProgress(id string, update vo.ProgressUpdate) error {
	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	if !job.ApplyProgress(update) {
		return errno.ErrJobTerminal
	}
	return nil
}

func (r *MemoryJobRegistry) SetStage(id string, stage vo.PipelineStage) error {
	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	return job.SetStage(stage)
}

func (r *MemoryJobRegistry) MarkDone(id string) error {
	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	return job.MarkDone()
}

func (r *MemoryJobRegistry) MarkError(id string, reason string) error {
	job, err := r.lookup(id)
	if err != nil {
		return err
	}
	return job.MarkError(reason)
}

func (r *MemoryJobRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

func (r *MemoryJobRegistry) Expire(maxAge time.Duration, now time.Time) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-maxAge)

	r.mu.RLock()
	stale := make([]string, 0)
	for id, job := range r.jobs {
		if job.IsFinal() && job.LastUpdate().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}
	removed := 0
	r.mu.Lock()
	for _, id := range stale {
		if job, ok := r.jobs[id]; ok && job.IsFinal() && job.LastUpdate().Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	r.mu.Unlock()
	return removed
}

func (r *MemoryJobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *MemoryJobRegistry) lookup(id string) (*entity.Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errno.ErrNotFound
	}
	return job, nil
}
