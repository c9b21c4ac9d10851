package execute

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklens/internal/ai"
	"tasklens/internal/cache"
	"tasklens/internal/logging"
	"tasklens/internal/metrics"
	"tasklens/internal/prompt"
	"tasklens/internal/security"
	"tasklens/internal/storage"
	"tasklens/internal/taskerr"
	"tasklens/pkg/types"
)

type testHarness struct {
	orch    *Orchestrator
	store   *storage.MemoryStore
	client  *ai.MockClient
	results *cache.BoundedCache
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	store := storage.NewMemoryStore()
	client := ai.NewMockClient()
	results := cache.New(cache.DefaultConfig())
	t.Cleanup(func() { _ = results.Close() })

	orch := NewOrchestrator(
		store,
		client,
		prompt.NewInjector(),
		security.NewRuleClassifier(),
		results,
		metrics.NewRecorder(store),
		logging.NewNoOpLogger(),
	)
	return &testHarness{orch: orch, store: store, client: client, results: results}
}

func (h *testHarness) addTask(t *testing.T, template string) *types.Task {
	t.Helper()
	task := &types.Task{
		ID:              "task-" + t.Name(),
		Name:            "summarize",
		Description:     "summarize the page",
		WebsitePatterns: []string{`example\.com`},
		PromptTemplate:  template,
		OutputFormat:    types.FormatMarkdown,
		Enabled:         true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, h.store.CreateTask(context.Background(), task))
	return task
}

func pageContext() *types.ExecutionContext {
	return &types.ExecutionContext{
		Website: types.WebsiteContext{
			Domain:        "example.com",
			Category:      types.CategoryTechnical,
			PageType:      types.PageArticle,
			Security:      types.SecurityPublic,
			ExtractedData: map[string]string{"url": "https://example.com/post"},
			AnalyzedAt:    time.Now(),
		},
		PageContent: types.PageContent{
			Title:    "A post about caching",
			URL:      "https://example.com/post",
			MainText: "Body text explaining cache eviction strategies.",
		},
		UserInput: map[string]string{"focus": "eviction"},
	}
}

func TestExecuteSuccess(t *testing.T) {
	h := newTestHarness(t)
	task := h.addTask(t, "Summarize {{mainText}} from {{domain}} for {{userInput}}")

	res, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Content)
	assert.Equal(t, types.FormatMarkdown, res.Format)
	assert.NotEmpty(t, res.RequestID)
	assert.False(t, res.Cached)
	assert.False(t, res.DryRun)

	m, err := h.store.GetUsageMetrics(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.UsageCount)
	assert.Equal(t, float64(100), m.SuccessRate)

	stored, err := h.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestExecuteSecondCallHitsCache(t *testing.T) {
	h := newTestHarness(t)
	task := h.addTask(t, "Summarize {{mainText}}")

	first, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{})
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{})
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, 1, h.client.Requests(), "cache hit must not reach the provider")

	// Cache hits do not touch usage statistics.
	m, err := h.store.GetUsageMetrics(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.UsageCount)
}

func TestExecuteDifferentInputMissesCache(t *testing.T) {
	h := newTestHarness(t)
	task := h.addTask(t, "Summarize {{mainText}}")

	_, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{})
	require.NoError(t, err)

	other := pageContext()
	other.PageContent.URL = "https://example.com/another"
	_, err = h.orch.Execute(context.Background(), task.ID, other, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, h.client.Requests())
}

func TestExecuteFailureRecordedNotCached(t *testing.T) {
	h := newTestHarness(t)
	h.client.FailEvery = 1
	task := h.addTask(t, "Summarize {{mainText}}")

	res, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	m, err := h.store.GetUsageMetrics(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.UsageCount)
	assert.Equal(t, 1, m.ErrorCount)
	assert.Equal(t, float64(0), m.SuccessRate)

	// A failed result must not be served from cache later.
	h.client.FailEvery = 0
	res2, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{})
	require.NoError(t, err)
	assert.True(t, res2.Success)
	assert.False(t, res2.Cached)
}

func TestExecuteDryRunBypassesCacheAndProvider(t *testing.T) {
	h := newTestHarness(t)
	task := h.addTask(t, "Summarize {{mainText}}")

	res, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.DryRun)
	assert.False(t, res.Cached)
	assert.Contains(t, res.Content, task.Name)

	again, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, again.Cached)
	assert.Equal(t, 0, h.client.Requests())

	// A dry run still counts as usage.
	m, err := h.store.GetUsageMetrics(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.UsageCount)
}

func TestExecuteUnknownTask(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.orch.Execute(context.Background(), "nope", pageContext(), Options{})
	require.Error(t, err)
	assert.True(t, taskerr.IsNotFound(err))
}

func TestExecuteValidateFirstRejectsBadTemplate(t *testing.T) {
	h := newTestHarness(t)
	task := h.addTask(t, "Summarize {{bogusVariable}} please, in some detail")

	_, err := h.orch.Execute(context.Background(), task.ID, pageContext(), Options{ValidateFirst: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template invalid")

	// Nothing ran, so nothing was recorded.
	m, err := h.store.GetUsageMetrics(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 0, h.client.Requests())
}

func TestExecuteRestrictedPageTruncatesPrompt(t *testing.T) {
	h := newTestHarness(t)
	task := h.addTask(t, "Summarize {{mainText}} and {{textContent}}")

	execCtx := pageContext()
	execCtx.Website.Domain = "mybank.example.com"
	execCtx.Website.Security = "" // force classification from the domain
	long := strings.Repeat("lorem ipsum dolor sit amet ", 150)
	execCtx.PageContent.MainText = long
	execCtx.PageContent.TextContent = long

	res, err := h.orch.Execute(context.Background(), task.ID, execCtx, Options{})
	require.NoError(t, err)
	require.True(t, res.Success)

	// MockClient echoes the prompt length; restricted pages cap it at 500.
	assert.Contains(t, res.Content, "(500 chars of prompt)")
}

// captureClient records the last request so tests can inspect the prompt.
type captureClient struct {
	last *ai.Request
}

func (c *captureClient) Process(_ context.Context, req *ai.Request) (*ai.Response, error) {
	c.last = req
	return &ai.Response{
		Content:   "captured",
		Format:    req.OutputFormat,
		Timestamp: time.Now(),
		RequestID: req.ID,
	}, nil
}

func TestExecuteScrubsSensitiveContent(t *testing.T) {
	store := storage.NewMemoryStore()
	client := &captureClient{}
	results := cache.New(cache.DefaultConfig())
	t.Cleanup(func() { _ = results.Close() })

	orch := NewOrchestrator(
		store,
		client,
		prompt.NewInjector(),
		security.NewRuleClassifier(),
		results,
		metrics.NewRecorder(store),
		logging.NewNoOpLogger(),
	)

	task := &types.Task{
		ID:             "scrub-task",
		Name:           "extract",
		Description:    "extract account details",
		PromptTemplate: "Review {{mainText}}",
		OutputFormat:   types.FormatText,
		Enabled:        true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.CreateTask(context.Background(), task))

	execCtx := pageContext()
	execCtx.Website.Domain = "portal.mybank.example"
	execCtx.Website.Security = ""
	execCtx.PageContent.MainText = "Statement for jane@example.com, SSN 123-45-6789."

	res, err := orch.Execute(context.Background(), task.ID, execCtx, Options{})
	require.NoError(t, err)
	require.True(t, res.Success)

	require.NotNil(t, client.last)
	assert.Equal(t, types.SecurityRestricted, client.last.SecurityLevel)
	assert.NotContains(t, client.last.Prompt, "123-45-6789")
	assert.NotContains(t, client.last.Prompt, "jane@example.com")
	assert.Contains(t, client.last.Prompt, "[redacted]")
	assert.NotEmpty(t, client.last.RestrictedSelectors)

	// The caller's context stays untouched.
	assert.Contains(t, execCtx.PageContent.MainText, "123-45-6789")
}

func TestExecuteCapsPromptOnRunesNotBytes(t *testing.T) {
	store := storage.NewMemoryStore()
	client := &captureClient{}
	results := cache.New(cache.DefaultConfig())
	t.Cleanup(func() { _ = results.Close() })

	orch := NewOrchestrator(
		store,
		client,
		prompt.NewInjector(),
		security.NewRuleClassifier(),
		results,
		metrics.NewRecorder(store),
		logging.NewNoOpLogger(),
	)

	task := &types.Task{
		ID:             "rune-cap-task",
		Name:           "summarize",
		Description:    "summarize the page",
		PromptTemplate: "Résumé: {{mainText}}",
		OutputFormat:   types.FormatText,
		Enabled:        true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.CreateTask(context.Background(), task))

	execCtx := pageContext()
	execCtx.Website.Domain = "mybank.example.com"
	execCtx.Website.Security = "" // force classification from the domain
	execCtx.PageContent.MainText = strings.Repeat("compte rendu détaillé ", 80)

	res, err := orch.Execute(context.Background(), task.ID, execCtx, Options{})
	require.NoError(t, err)
	require.True(t, res.Success)

	// Restricted pages cap the prompt at 500 characters, counted in runes,
	// so the cut never lands inside a multi-byte character.
	require.NotNil(t, client.last)
	assert.Equal(t, 500, utf8.RuneCountInString(client.last.Prompt))
	assert.True(t, utf8.ValidString(client.last.Prompt))
}

func TestTestAllRunsEnabledTasksOnly(t *testing.T) {
	h := newTestHarness(t)
	enabled := h.addTask(t, "Summarize {{mainText}} with headline {{pageTitle}}")

	disabled := &types.Task{
		ID:             "disabled-task",
		Name:           "disabled",
		Description:    "never runs",
		PromptTemplate: "Summarize {{mainText}} when enabled again",
		OutputFormat:   types.FormatText,
		Enabled:        false,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, h.store.CreateTask(context.Background(), disabled))

	results, err := h.orch.TestAll(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 1)
	tr, ok := results[enabled.ID]
	require.True(t, ok)
	assert.True(t, tr.Passed)
	assert.Empty(t, tr.Error)
	assert.Equal(t, 0, h.client.Requests(), "self tests are dry runs")
}

func TestTestAllReportsTemplateFailures(t *testing.T) {
	h := newTestHarness(t)
	bad := h.addTask(t, "Summarize {{noSuchVariable}} for me in enough words")

	results, err := h.orch.TestAll(context.Background())
	require.NoError(t, err)

	tr, ok := results[bad.ID]
	require.True(t, ok)
	assert.False(t, tr.Passed)
	assert.NotEmpty(t, tr.Error)
}
