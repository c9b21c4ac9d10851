// Package metrics maintains per-task running usage statistics.
package metrics

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"tasklens/pkg/types"
)

// Store persists usage metrics records. Implemented by internal/storage.
type Store interface {
	GetUsageMetrics(ctx context.Context, taskID string) (*types.UsageMetrics, error)
	SaveUsageMetrics(ctx context.Context, m *types.UsageMetrics) error
	IncrementTaskUsage(ctx context.Context, taskID string) error
}

// Recorder applies the online statistics update rule. Updates for the
// same task are serialized through a per-task lock so concurrent
// executions never drop an update; updates for different tasks proceed
// independently.
type Recorder struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRecorder creates a metrics recorder backed by store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// taskLock returns the mutex serializing updates for one task.
func (r *Recorder) taskLock(taskID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[taskID] = lock
	}
	return lock
}

// Record updates the running statistics for taskID after one execution.
// The success rate is re-derived from the stored, rounded percentage on
// every call; this matches the historical behavior observed by callers
// and is preserved deliberately, drift included.
func (r *Recorder) Record(ctx context.Context, taskID string, success bool, execTimeMS float64) (*types.UsageMetrics, error) {
	lock := r.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	m, err := r.store.GetUsageMetrics(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading usage metrics: %w", err)
	}
	if m == nil {
		m = &types.UsageMetrics{TaskID: taskID}
	}

	updated := Apply(*m, success, execTimeMS)
	updated.LastUsed = time.Now()

	if err := r.store.SaveUsageMetrics(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving usage metrics: %w", err)
	}
	if err := r.store.IncrementTaskUsage(ctx, taskID); err != nil {
		return nil, fmt.Errorf("incrementing task usage: %w", err)
	}
	return &updated, nil
}

// Get returns the current metrics record for taskID, or nil when the
// task has never executed.
func (r *Recorder) Get(ctx context.Context, taskID string) (*types.UsageMetrics, error) {
	return r.store.GetUsageMetrics(ctx, taskID)
}

// Forget drops the per-task lock for a deleted task.
func (r *Recorder) Forget(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, taskID)
}

// Apply computes one statistics update. With n the usage count after
// increment and prevRate the stored 0-100 success rate:
//
//	success: totalSuccesses = round(prevRate*(n-1)/100) + 1
//	failure: totalSuccesses = round(prevRate*(n-1)/100)
//	newRate = totalSuccesses / n * 100
//
// The average execution time moves to (oldAvg*(n-1) + execTime) / n on
// success and is left unchanged on failure.
func Apply(m types.UsageMetrics, success bool, execTimeMS float64) types.UsageMetrics {
	n := m.UsageCount + 1
	prevSuccesses := math.Round(m.SuccessRate * float64(n-1) / 100)

	if success {
		totalSuccesses := prevSuccesses + 1
		m.SuccessRate = totalSuccesses / float64(n) * 100
		m.AvgExecutionMS = (m.AvgExecutionMS*float64(n-1) + execTimeMS) / float64(n)
	} else {
		m.SuccessRate = prevSuccesses / float64(n) * 100
		m.ErrorCount++
	}

	m.UsageCount = n
	return m
}
