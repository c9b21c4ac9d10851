// Package storage provides task and usage-metrics persistence.
package storage

import (
	"context"

	"tasklens/pkg/types"
)

// Store is the persistence boundary of the pipeline. The task index owns
// validation and relevance; the store owns durability.
type Store interface {
	CreateTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	GetAllTasks(ctx context.Context) ([]types.Task, error)
	UpdateTask(ctx context.Context, task *types.Task) error
	DeleteTask(ctx context.Context, id string) error

	// GetTasksForWebsite is a raw pattern-only prefilter: it returns tasks
	// whose stored pattern text mentions the domain, without scoring.
	GetTasksForWebsite(ctx context.Context, domain string) ([]types.Task, error)

	IncrementTaskUsage(ctx context.Context, id string) error

	GetUsageMetrics(ctx context.Context, taskID string) (*types.UsageMetrics, error)
	SaveUsageMetrics(ctx context.Context, m *types.UsageMetrics) error
	DeleteUsageMetrics(ctx context.Context, taskID string) error

	Close() error
}
