// Package api provides the HTTP API layer for the task pipeline.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tasklens/internal/api/response"
	"tasklens/internal/cache"
	"tasklens/internal/execute"
	"tasklens/internal/logging"
	"tasklens/internal/metrics"
	"tasklens/internal/ratelimit"
	"tasklens/internal/relevance"
	"tasklens/internal/taskerr"
	"tasklens/internal/tasks"
	"tasklens/pkg/types"
)

const version = "1.0.0"

// Deps bundles everything the router serves. All fields are required
// except Limiter, which defaults to a no-op.
type Deps struct {
	Index        *tasks.Index
	Orchestrator *execute.Orchestrator
	Scorer       *relevance.Scorer
	Recorder     *metrics.Recorder
	Results      *cache.BoundedCache
	Limiter      ratelimit.Limiter
	Logger       logging.Logger

	// DryRunDefault applies when an execute request omits dry_run.
	DryRunDefault bool
}

// Router is the HTTP API for task CRUD, ranking and execution.
type Router struct {
	mux  *chi.Mux
	deps Deps
}

// NewRouter creates the API router with its middleware and routes.
func NewRouter(deps Deps) *Router {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NoOpLimiter{}
	}
	r := &Router{
		mux:  chi.NewRouter(),
		deps: deps,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.RequestID)
	r.mux.Use(chimiddleware.Timeout(30 * time.Second))
	r.mux.Use(chimiddleware.RequestSize(1 << 20)) // 1MB
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
	r.mux.Use(r.traceMiddleware)
	r.mux.Use(r.loggingMiddleware)
}

// traceMiddleware carries the chi request id as the pipeline trace id so
// log lines from deep in the orchestrator correlate with API requests.
func (r *Router) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
			ctx = logging.WithTraceID(ctx, reqID)
			w.Header().Set("X-Trace-ID", reqID)
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, req)
		r.deps.Logger.InfoContext(req.Context(), "request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

func (r *Router) setupRoutes() {
	r.mux.Get("/health", r.handleHealth)

	r.mux.Route("/api/v1", func(rtr chi.Router) {
		rtr.Get("/health", r.handleHealth)

		rtr.Route("/tasks", func(tr chi.Router) {
			tr.Get("/", r.handleListTasks)
			tr.Post("/", r.handleCreateTask)
			tr.Post("/rank", r.handleRankTasks)
			tr.Post("/test", r.handleTestAll)

			tr.Route("/{id}", func(ir chi.Router) {
				ir.Get("/", r.handleGetTask)
				ir.Put("/", r.handleUpdateTask)
				ir.Delete("/", r.handleDeleteTask)
				ir.Post("/duplicate", r.handleDuplicateTask)
				ir.Post("/execute", r.rateLimited(r.handleExecuteTask))
				ir.Get("/metrics", r.handleTaskMetrics)
			})
		})

		rtr.Get("/cache/stats", r.handleCacheStats)
		rtr.Delete("/cache", r.handleCacheInvalidate)
	})
}

// rateLimited gates a handler behind the execution rate limiter, keyed
// by the caller's IP.
func (r *Router) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		res, err := r.deps.Limiter.Allow(req.Context(), clientKey(req))
		if err != nil {
			// A broken limiter must not take executions down with it.
			r.deps.Logger.ErrorContext(req.Context(), "rate limiter unavailable", "error", err)
			next(w, req)
			return
		}
		if !res.Allowed {
			response.WriteFromError(w, ratelimit.ErrRateLimited(res))
			return
		}
		next(w, req)
	}
}

func clientKey(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return req.RemoteAddr
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": version,
		"cache":   r.deps.Results.Stats(),
	})
}

func (r *Router) handleCreateTask(w http.ResponseWriter, req *http.Request) {
	var task types.Task
	if err := json.NewDecoder(req.Body).Decode(&task); err != nil {
		response.WriteError(w, http.StatusBadRequest, taskerr.CodeInvalidFormat, "invalid JSON body", err.Error())
		return
	}

	created, err := r.deps.Index.Create(req.Context(), &task)
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	response.WriteSuccess(w, http.StatusCreated, created)
}

func (r *Router) handleListTasks(w http.ResponseWriter, req *http.Request) {
	all, err := r.deps.Index.List(req.Context())
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	response.WriteSuccess(w, http.StatusOK, all)
}

func (r *Router) handleGetTask(w http.ResponseWriter, req *http.Request) {
	task, err := r.deps.Index.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	response.WriteSuccess(w, http.StatusOK, task)
}

func (r *Router) handleUpdateTask(w http.ResponseWriter, req *http.Request) {
	var task types.Task
	if err := json.NewDecoder(req.Body).Decode(&task); err != nil {
		response.WriteError(w, http.StatusBadRequest, taskerr.CodeInvalidFormat, "invalid JSON body", err.Error())
		return
	}
	task.ID = chi.URLParam(req, "id")

	updated, err := r.deps.Index.Update(req.Context(), &task)
	if err != nil {
		response.WriteFromError(w, err)
		return
	}

	// Stale results must not be served for the rewritten task.
	invalidated := r.deps.Results.InvalidateByPattern(task.ID)
	r.deps.Logger.DebugContext(req.Context(), "cache invalidated on update",
		"task_id", task.ID, "entries", invalidated)

	response.WriteSuccess(w, http.StatusOK, updated)
}

func (r *Router) handleDeleteTask(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := r.deps.Index.Delete(req.Context(), id); err != nil {
		response.WriteFromError(w, err)
		return
	}
	r.deps.Recorder.Forget(id)
	r.deps.Results.InvalidateByPattern(id)

	response.WriteSuccess(w, http.StatusOK, map[string]string{"deleted": id})
}

func (r *Router) handleDuplicateTask(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if req.Body != nil {
		// An empty or absent body means "use the default copy name".
		_ = json.NewDecoder(req.Body).Decode(&body)
	}

	copied, err := r.deps.Index.Duplicate(req.Context(), chi.URLParam(req, "id"), body.Name)
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	response.WriteSuccess(w, http.StatusCreated, copied)
}

// RankedTask pairs a task with its relevance score for one website.
type RankedTask struct {
	Task  types.Task `json:"task"`
	Score float64    `json:"score"`
}

func (r *Router) handleRankTasks(w http.ResponseWriter, req *http.Request) {
	var site types.WebsiteContext
	if err := json.NewDecoder(req.Body).Decode(&site); err != nil {
		response.WriteError(w, http.StatusBadRequest, taskerr.CodeInvalidFormat, "invalid JSON body", err.Error())
		return
	}
	if site.Domain == "" {
		response.WriteError(w, http.StatusBadRequest, taskerr.CodeRequiredField, "domain is required")
		return
	}

	ranked, err := r.deps.Index.TasksForWebsite(req.Context(), &site)
	if err != nil {
		response.WriteFromError(w, err)
		return
	}

	out := make([]RankedTask, len(ranked))
	for i := range ranked {
		out[i] = RankedTask{Task: ranked[i], Score: r.deps.Scorer.Score(&ranked[i], &site)}
	}
	response.WriteSuccess(w, http.StatusOK, out)
}

// executeRequest is the body of POST /tasks/{id}/execute. DryRun is a
// pointer so an omitted field falls back to the configured default while
// an explicit false still overrides it.
type executeRequest struct {
	Website       types.WebsiteContext `json:"website"`
	PageContent   types.PageContent    `json:"page_content"`
	UserInput     map[string]string    `json:"user_input,omitempty"`
	DryRun        *bool                `json:"dry_run"`
	ValidateFirst bool                 `json:"validate_first"`
}

func (r *Router) handleExecuteTask(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	var body executeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		response.WriteError(w, http.StatusBadRequest, taskerr.CodeInvalidFormat, "invalid JSON body", err.Error())
		return
	}
	if body.Website.Domain == "" {
		response.WriteError(w, http.StatusBadRequest, taskerr.CodeRequiredField, "website.domain is required")
		return
	}

	dryRun := r.deps.DryRunDefault
	if body.DryRun != nil {
		dryRun = *body.DryRun
	}

	execCtx := &types.ExecutionContext{
		TaskID:      id,
		Website:     body.Website,
		PageContent: body.PageContent,
		UserInput:   body.UserInput,
	}
	result, err := r.deps.Orchestrator.Execute(req.Context(), id, execCtx, execute.Options{
		DryRun:        dryRun,
		ValidateFirst: body.ValidateFirst,
	})
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	response.WriteSuccess(w, http.StatusOK, result)
}

func (r *Router) handleTestAll(w http.ResponseWriter, req *http.Request) {
	results, err := r.deps.Orchestrator.TestAll(req.Context())
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	response.WriteSuccess(w, http.StatusOK, results)
}

func (r *Router) handleTaskMetrics(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	m, err := r.deps.Recorder.Get(req.Context(), id)
	if err != nil {
		response.WriteFromError(w, err)
		return
	}
	if m == nil {
		response.WriteError(w, http.StatusNotFound, taskerr.CodeNotFound, "no metrics recorded for task "+id)
		return
	}
	response.WriteSuccess(w, http.StatusOK, m)
}

func (r *Router) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(w, http.StatusOK, r.deps.Results.Stats())
}

func (r *Router) handleCacheInvalidate(w http.ResponseWriter, req *http.Request) {
	pattern := req.URL.Query().Get("pattern")

	var removed int
	if pattern == "" {
		removed = r.deps.Results.Len()
		r.deps.Results.Clear()
	} else {
		removed = r.deps.Results.InvalidateByPattern(pattern)
	}
	response.WriteSuccess(w, http.StatusOK, map[string]int{"invalidated": removed})
}
