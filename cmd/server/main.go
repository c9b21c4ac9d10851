// server is the tasklens HTTP server: task CRUD, relevance ranking and
// rate-limited task execution against web pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasklens/internal/ai"
	"tasklens/internal/api"
	"tasklens/internal/cache"
	"tasklens/internal/config"
	"tasklens/internal/execute"
	"tasklens/internal/logging"
	"tasklens/internal/metrics"
	"tasklens/internal/pattern"
	"tasklens/internal/prompt"
	"tasklens/internal/ratelimit"
	"tasklens/internal/relevance"
	"tasklens/internal/retry"
	"tasklens/internal/security"
	"tasklens/internal/storage"
	"tasklens/internal/tasks"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides configuration)")
	flag.Parse()

	if err := run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(addrOverride string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level)).WithComponent("server")

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("closing storage", "error", cerr)
		}
	}()

	rules := relevance.BuiltinRules()
	if cfg.Execution.RulesPath != "" {
		rules, err = relevance.LoadRules(cfg.Execution.RulesPath)
		if err != nil {
			return fmt.Errorf("loading association rules: %w", err)
		}
		logger.Info("loaded association rules", "path", cfg.Execution.RulesPath)
	}

	matcher := pattern.NewMatcher()
	scorer := relevance.NewScorerWithConfig(relevance.DefaultScorerConfig(), matcher, rules)
	injector := prompt.NewInjector(
		prompt.WithMaxVariableLength(cfg.Prompt.MaxVariableLength),
		prompt.WithMaxTemplateLength(cfg.Prompt.MaxTemplateLength),
	)

	results := cache.New(cache.Config{
		MaxSizeBytes: cfg.Cache.MaxSizeBytes,
		DefaultTTL:   cfg.Cache.DefaultTTL,
		CleanupEvery: cfg.Cache.CleanupEvery,
	})
	defer results.Close()

	recorder := metrics.NewRecorder(store)
	index := tasks.NewIndex(store, scorer, tasks.NewValidator(injector), logger)

	// TODO: swap the mock for a real provider client once one is selected.
	client := ai.NewRetryingClient(ai.NewMockClient(), retry.DefaultConfig())

	orchestrator := execute.NewOrchestrator(
		store,
		client,
		injector,
		security.NewRuleClassifier(),
		results,
		recorder,
		logger,
	)

	limiter, err := ratelimit.New(ratelimit.Config{
		RedisAddr:     cfg.RateLimit.RedisAddr,
		RedisPassword: cfg.RateLimit.RedisPassword,
		KeyPrefix:     "tasklens:ratelimit",
		Limit:         cfg.RateLimit.Limit,
		Window:        cfg.RateLimit.Window,
	})
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}
	defer func() {
		if cerr := limiter.Close(); cerr != nil {
			logger.Error("closing rate limiter", "error", cerr)
		}
	}()
	if cfg.RateLimit.RedisAddr == "" {
		logger.Warn("rate limiting disabled, no redis address configured")
	}

	router := api.NewRouter(api.Deps{
		Index:         index,
		Orchestrator:  orchestrator,
		Scorer:        scorer,
		Recorder:      recorder,
		Results:       results,
		Limiter:       limiter,
		Logger:        logger,
		DryRunDefault: cfg.Execution.DryRunDefault,
	})

	addr := cfg.Server.Addr()
	if addrOverride != "" {
		addr = addrOverride
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
