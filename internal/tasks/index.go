package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasklens/internal/logging"
	"tasklens/internal/relevance"
	"tasklens/internal/storage"
	"tasklens/pkg/types"
)

// Index is the read-through registry of tasks. It validates writes,
// delegates persistence to the store and exposes relevance-ranked lookup
// for a website context.
type Index struct {
	store     storage.Store
	scorer    *relevance.Scorer
	validator *Validator
	logger    logging.Logger
}

// NewIndex creates a task index.
func NewIndex(store storage.Store, scorer *relevance.Scorer, validator *Validator, logger logging.Logger) *Index {
	return &Index{
		store:     store,
		scorer:    scorer,
		validator: validator,
		logger:    logger.WithComponent("tasks"),
	}
}

// Create validates and stores a new task. The id and creation timestamp
// are assigned here and immutable afterwards.
func (x *Index) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := x.validator.ValidateTask(task); err != nil {
		return nil, err
	}

	now := time.Now()
	created := *task
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.UsageCount = 0

	if err := x.store.CreateTask(ctx, &created); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	x.logger.InfoContext(ctx, "task created", "task_id", created.ID, "name", created.Name)
	return &created, nil
}

// Get fetches one task by id.
func (x *Index) Get(ctx context.Context, id string) (*types.Task, error) {
	return x.store.GetTask(ctx, id)
}

// List returns all stored tasks.
func (x *Index) List(ctx context.Context) ([]types.Task, error) {
	return x.store.GetAllTasks(ctx)
}

// Update validates and persists changes to an existing task. The id,
// creation timestamp and usage count cannot be changed by callers.
func (x *Index) Update(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := x.validator.ValidateTask(task); err != nil {
		return nil, err
	}

	existing, err := x.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	updated := *task
	updated.CreatedAt = existing.CreatedAt
	updated.UsageCount = existing.UsageCount
	updated.UpdatedAt = time.Now()

	if err := x.store.UpdateTask(ctx, &updated); err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	x.logger.InfoContext(ctx, "task updated", "task_id", updated.ID)
	return &updated, nil
}

// Delete removes a task. Its usage metrics go with it.
func (x *Index) Delete(ctx context.Context, id string) error {
	if err := x.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	x.logger.InfoContext(ctx, "task deleted", "task_id", id)
	return nil
}

// Duplicate copies a task as a template: everything except id,
// timestamps and usage count, under a new name.
func (x *Index) Duplicate(ctx context.Context, id, newName string) (*types.Task, error) {
	source, err := x.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	copied := *source
	if strings.TrimSpace(newName) != "" {
		copied.Name = newName
	} else {
		copied.Name = source.Name + " (copy)"
	}
	copied.WebsitePatterns = append([]string(nil), source.WebsitePatterns...)
	copied.AutomationSteps = append([]types.AutomationStep(nil), source.AutomationSteps...)
	copied.Tags = append([]string(nil), source.Tags...)

	return x.Create(ctx, &copied)
}

// TasksForWebsite ranks every stored task against the website context:
// zero scores are dropped and the rest are ordered by score, usage count
// and creation time, all descending.
func (x *Index) TasksForWebsite(ctx context.Context, site *types.WebsiteContext) ([]types.Task, error) {
	all, err := x.store.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks for ranking: %w", err)
	}
	return x.scorer.Rank(all, site), nil
}
