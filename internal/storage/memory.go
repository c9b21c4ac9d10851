package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tasklens/internal/taskerr"
	"tasklens/pkg/types"
)

// MemoryStore is an in-memory Store used in tests and dry-run setups.
type MemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]types.Task
	metrics map[string]types.UsageMetrics
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:   make(map[string]types.Task),
		metrics: make(map[string]types.UsageMetrics),
	}
}

// CreateTask inserts a new task.
func (s *MemoryStore) CreateTask(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// GetTask fetches one task by id.
func (s *MemoryStore) GetTask(_ context.Context, id string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, taskerr.NewNotFoundError("task", id)
	}
	copied := task
	return &copied, nil
}

// GetAllTasks returns every stored task, newest first.
func (s *MemoryStore) GetAllTasks(_ context.Context) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]types.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// GetTasksForWebsite returns tasks whose raw pattern text mentions domain.
func (s *MemoryStore) GetTasksForWebsite(ctx context.Context, domain string) ([]types.Task, error) {
	all, err := s.GetAllTasks(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []types.Task
	for _, task := range all {
		for _, p := range task.WebsitePatterns {
			if strings.Contains(strings.ReplaceAll(p, `\`, ""), domain) {
				filtered = append(filtered, task)
				break
			}
		}
	}
	return filtered, nil
}

// UpdateTask rewrites a stored task.
func (s *MemoryStore) UpdateTask(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return taskerr.NewNotFoundError("task", task.ID)
	}
	s.tasks[task.ID] = *task
	return nil
}

// DeleteTask removes a task and its usage metrics.
func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return taskerr.NewNotFoundError("task", id)
	}
	delete(s.tasks, id)
	delete(s.metrics, id)
	return nil
}

// IncrementTaskUsage bumps a task's usage counter.
func (s *MemoryStore) IncrementTaskUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return taskerr.NewNotFoundError("task", id)
	}
	task.UsageCount++
	s.tasks[id] = task
	return nil
}

// GetUsageMetrics returns the metrics record for a task, nil if absent.
func (s *MemoryStore) GetUsageMetrics(_ context.Context, taskID string) (*types.UsageMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[taskID]
	if !ok {
		return nil, nil
	}
	copied := m
	return &copied, nil
}

// SaveUsageMetrics upserts a metrics record.
func (s *MemoryStore) SaveUsageMetrics(_ context.Context, m *types.UsageMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.TaskID] = *m
	return nil
}

// DeleteUsageMetrics removes the metrics record for a task.
func (s *MemoryStore) DeleteUsageMetrics(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metrics, taskID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
