package execute

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasklens/internal/ai"
	"tasklens/internal/cache"
	"tasklens/internal/logging"
	"tasklens/internal/metrics"
	"tasklens/internal/prompt"
	"tasklens/internal/security"
	"tasklens/internal/storage"
	"tasklens/pkg/types"
)

// state tracks where an execution request is in its lifecycle.
type state string

const (
	stateIdle       state = "idle"
	stateValidating state = "validating"
	stateCacheCheck state = "cache_check"
	stateBuilding   state = "building"
	stateExecuting  state = "executing"
	stateRecording  state = "recording"
	stateDone       state = "done"
)

// Options control a single execution request.
type Options struct {
	// DryRun synthesizes a deterministic result without contacting the
	// AI provider. Dry runs bypass the result cache in both directions.
	DryRun bool
	// ValidateFirst statically validates the task's template before
	// anything else runs.
	ValidateFirst bool
}

// Orchestrator ties the pipeline together: prompt injection, result
// caching, the AI provider and usage statistics.
type Orchestrator struct {
	store      storage.Store
	client     ai.Client
	injector   *prompt.Injector
	classifier security.Classifier
	results    *cache.BoundedCache
	recorder   *metrics.Recorder
	logger     logging.Logger
}

// NewOrchestrator wires an orchestrator from explicitly constructed
// dependencies. Nothing here is process-global; callers own lifecycles.
func NewOrchestrator(
	store storage.Store,
	client ai.Client,
	injector *prompt.Injector,
	classifier security.Classifier,
	results *cache.BoundedCache,
	recorder *metrics.Recorder,
	logger logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		client:     client,
		injector:   injector,
		classifier: classifier,
		results:    results,
		recorder:   recorder,
		logger:     logger.WithComponent("execute"),
	}
}

// Execute runs one task against one page. Failures from the AI provider
// are folded into the result, never returned as errors; the returned
// error is reserved for request problems (unknown task, invalid
// template) that abort before anything is recorded.
func (o *Orchestrator) Execute(ctx context.Context, taskID string, execCtx *types.ExecutionContext, opts Options) (*types.ExecutionResult, error) {
	o.step(ctx, taskID, stateIdle)
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if opts.ValidateFirst {
		o.step(ctx, taskID, stateValidating)
		if result := o.injector.Validate(task.PromptTemplate); !result.IsValid {
			return nil, fmt.Errorf("task %s template invalid: %s", taskID, strings.Join(result.Errors, "; "))
		}
	}

	level := execCtx.Website.Security
	if level == "" {
		level = o.classifier.Classify(execCtx.Website.Domain)
	}
	sanitizedInput := o.classifier.Sanitize(flattenInput(execCtx.UserInput), level)
	// The task id prefix keeps a task's entries addressable for pattern
	// invalidation when the task is updated or deleted.
	key := taskID + ":" + CacheKey(taskID, execCtx.Website.Domain, execCtx.PageContent.URL, execCtx.PageContent.Title, sanitizedInput)

	if !opts.DryRun {
		o.step(ctx, taskID, stateCacheCheck)
		var cached types.ExecutionResult
		if o.results.Get(key, &cached) {
			o.logger.DebugContext(ctx, "cache hit", "task_id", taskID, "key", key)
			cached.Cached = true
			return &cached, nil
		}
	}

	o.step(ctx, taskID, stateBuilding)
	constraints := ConstraintsFor(level)
	scrubbed := o.scrub(execCtx, level)
	injected, warnings := o.injector.Inject(task.PromptTemplate, scrubbed)
	for _, w := range warnings {
		o.logger.WarnContext(ctx, "template warning", "task_id", taskID, "warning", w)
	}
	// The content cap counts characters, not bytes, so multi-byte prompts
	// are never cut mid-rune.
	if len(injected) > constraints.MaxContentLength {
		if runes := []rune(injected); len(runes) > constraints.MaxContentLength {
			injected = string(runes[:constraints.MaxContentLength])
		}
	}

	req := &ai.Request{
		ID:                  uuid.NewString(),
		TaskID:              taskID,
		Prompt:              injected,
		OutputFormat:        task.OutputFormat,
		MaxContentLength:    constraints.MaxContentLength,
		RestrictedSelectors: constraints.RestrictedSelectors,
		SecurityLevel:       level,
	}

	o.step(ctx, taskID, stateExecuting)
	started := time.Now()
	result := o.run(ctx, task, req, opts)
	result.ExecutionTimeMS = time.Since(started).Milliseconds()
	result.RequestID = req.ID

	// Recording always happens, cancellations and provider failures
	// included, so error rates stay observable.
	o.step(ctx, taskID, stateRecording)
	if _, recErr := o.recorder.Record(ctx, taskID, result.Success, float64(result.ExecutionTimeMS)); recErr != nil {
		o.logger.ErrorContext(ctx, "recording usage failed", "task_id", taskID, "error", recErr)
	}

	if result.Success && !opts.DryRun {
		if !o.results.Set(key, result, 0) {
			o.logger.WarnContext(ctx, "result not cached", "task_id", taskID, "key", key)
		}
	}

	o.step(ctx, taskID, stateDone)
	return result, nil
}

func (o *Orchestrator) step(ctx context.Context, taskID string, s state) {
	o.logger.DebugContext(ctx, "state transition", "task_id", taskID, "state", string(s))
}

// run performs the Executing step: the real provider call, or a
// deterministic placeholder in dry-run mode.
func (o *Orchestrator) run(ctx context.Context, task *types.Task, req *ai.Request, opts Options) *types.ExecutionResult {
	if opts.DryRun {
		return &types.ExecutionResult{
			Success: true,
			Content: fmt.Sprintf("[dry run] task %q would send %d prompt characters at security level %s",
				task.Name, len(req.Prompt), req.SecurityLevel),
			Format: task.OutputFormat,
			DryRun: true,
		}
	}

	resp, err := o.client.Process(ctx, req)
	if err != nil {
		o.logger.WarnContext(ctx, "ai request failed", "task_id", task.ID, "error", err)
		return &types.ExecutionResult{
			Success: false,
			Error:   err.Error(),
			Format:  task.OutputFormat,
		}
	}

	return &types.ExecutionResult{
		Success: true,
		Content: resp.Content,
		Format:  resp.Format,
	}
}

// TestAll dry-runs every enabled task against a synthetic page and
// reports per-task results keyed by task id.
func (o *Orchestrator) TestAll(ctx context.Context) (map[string]types.TestResult, error) {
	all, err := o.store.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks for self test: %w", err)
	}

	results := make(map[string]types.TestResult, len(all))
	for i := range all {
		task := &all[i]
		if !task.Enabled {
			continue
		}

		execCtx := syntheticContext(task.ID)
		started := time.Now()
		res, execErr := o.Execute(ctx, task.ID, execCtx, Options{DryRun: true, ValidateFirst: true})

		tr := types.TestResult{
			TaskID:     task.ID,
			DurationMS: time.Since(started).Milliseconds(),
		}
		switch {
		case execErr != nil:
			tr.Error = execErr.Error()
		case !res.Success:
			tr.Error = res.Error
		default:
			tr.Passed = true
		}
		results[task.ID] = tr
	}
	return results, nil
}

// scrub returns a copy of the execution context with page content and
// user input sanitized for the page's security tier. The caller's
// context is never mutated.
func (o *Orchestrator) scrub(execCtx *types.ExecutionContext, level types.SecurityLevel) *types.ExecutionContext {
	if level == types.SecurityPublic {
		return execCtx
	}

	clean := *execCtx
	clean.PageContent.SelectedText = o.classifier.Sanitize(execCtx.PageContent.SelectedText, level)
	clean.PageContent.MainText = o.classifier.Sanitize(execCtx.PageContent.MainText, level)
	clean.PageContent.TextContent = o.classifier.Sanitize(execCtx.PageContent.TextContent, level)

	if len(execCtx.UserInput) > 0 {
		clean.UserInput = make(map[string]string, len(execCtx.UserInput))
		for k, v := range execCtx.UserInput {
			clean.UserInput[k] = o.classifier.Sanitize(v, level)
		}
	}
	return &clean
}

// syntheticContext builds the fixed page context used by self tests.
func syntheticContext(taskID string) *types.ExecutionContext {
	return &types.ExecutionContext{
		TaskID: taskID,
		Website: types.WebsiteContext{
			Domain:        "selftest.example.com",
			Category:      types.CategoryGeneral,
			PageType:      types.PageArticle,
			Security:      types.SecurityPublic,
			ExtractedData: map[string]string{"url": "https://selftest.example.com/page"},
			AnalyzedAt:    time.Now(),
		},
		PageContent: types.PageContent{
			Title:       "Self test page",
			URL:         "https://selftest.example.com/page",
			MainText:    "Synthetic page body used to exercise prompt injection.",
			TextContent: "Synthetic page body used to exercise prompt injection.",
			Headings:    []string{"Self test"},
			LinkCount:   3,
		},
	}
}

// flattenInput renders user input deterministically for cache keying.
func flattenInput(input map[string]string) string {
	if len(input) == 0 {
		return ""
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+input[k])
	}
	return strings.Join(parts, "&")
}
