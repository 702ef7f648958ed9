package sweeper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sizefit-service/ddd/domain/repo"
	"sizefit-service/pkg/logger"
	"sizefit-service/pkg/task"
)

// RetentionSweeper 周期清理工作目录中的过期文件
type RetentionSweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	registry repo.JobRegistry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

var _ task.BackgroundTask = (*RetentionSweeper)(nil)

// SweepResult 单次清理结果
type SweepResult struct {
	Purged      []string
	Failed      int
	JobsExpired int
}

// NewRetentionSweeper 创建清理任务; registry may be nil.
func NewRetentionSweeper(dir string, maxAge, interval time.Duration, registry repo.JobRegistry) *RetentionSweeper {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RetentionSweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		registry: registry,
		now:      time.Now,
	}
}

func (s *RetentionSweeper) Name() string { return "retention-sweeper" }

// Start 立即清理一次，然后按间隔周期清理
func (s *RetentionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper %s is already running", s.Name())
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	logger.Infof("Starting retention sweeper dir=%s max_age=%s interval=%s", s.dir, s.maxAge, s.interval)
	s.wg.Add(1)
	go s.loop(sweepCtx)
	return nil
}

// Stop 停止清理任务并等待当前一轮结束
func (s *RetentionSweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.running = false
	logger.Infof("Retention sweeper stopped")
	return nil
}

func (s *RetentionSweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	s.SweepOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce removes every regular file in the directory last modified more
// than maxAge ago. Individual failures are logged and skipped.
func (s *RetentionSweeper) SweepOnce() SweepResult {
	var res SweepResult
	now := s.now()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.Errorf("Unable to scan directory dir=%s error=%v", s.dir, err)
		return res
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		if now.Sub(info.ModTime()) <= s.maxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				logger.Warnf("Unable to purge file=%s error=%v", entry.Name(), err)
				res.Failed++
			}
			continue
		}
		logger.Infof("Purged %s", entry.Name())
		res.Purged = append(res.Purged, entry.Name())
	}

	if s.registry != nil {
		res.JobsExpired = s.registry.Expire(s.maxAge, now)
		if res.JobsExpired > 0 {
			logger.Infof("Expired %d finished jobs", res.JobsExpired)
		}
	}
	return res
}
