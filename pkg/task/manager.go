package task

import (
	"context"
	"fmt"
	"sync"

	"sizefit-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (sweeper, cron).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager starts registered tasks together and stops them in reverse order.
type Manager struct {
	tasks  []BackgroundTask
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{tasks: make([]BackgroundTask, 0)}
}

// Register adds a background task; should be called during assembly before StartAll.
func (m *Manager) Register(task BackgroundTask) {
	if task == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

// StartAll starts all registered tasks once. Tasks already started are
// stopped again if a later one fails.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	taskCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for i, t := range m.tasks {
		if err := t.Start(taskCtx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.tasks[j].Stop()
			}
			cancel()
			m.cancel = nil
			return fmt.Errorf("start task %s: %w", t.Name(), err)
		}
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops all running tasks.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	for i := len(m.tasks) - 1; i >= 0; i-- {
		if err := m.tasks[i].Stop(); err != nil {
			logger.Warnf("Background task stop failed name=%s error=%v", m.tasks[i].Name(), err)
		}
	}
	m.cancel = nil
}
