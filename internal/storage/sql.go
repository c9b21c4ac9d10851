package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	// Database drivers selected via config.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"tasklens/internal/taskerr"
	"tasklens/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	website_patterns TEXT NOT NULL,
	prompt_template TEXT NOT NULL,
	output_format TEXT NOT NULL,
	automation_steps TEXT,
	enabled INTEGER NOT NULL DEFAULT 1,
	usage_count INTEGER NOT NULL DEFAULT 0,
	tags TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_metrics (
	task_id TEXT PRIMARY KEY,
	usage_count INTEGER NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 0,
	avg_execution_ms REAL NOT NULL DEFAULT 0,
	last_used TIMESTAMP,
	error_count INTEGER NOT NULL DEFAULT 0
);
`

// SQLStore implements Store on database/sql. It supports the sqlite3 and
// postgres drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, ensures the schema and returns the store.
func Open(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	store := &SQLStore{db: db, driver: driver}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) ensureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to $n for the postgres driver.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// CreateTask inserts a new task.
func (s *SQLStore) CreateTask(ctx context.Context, task *types.Task) error {
	patterns, steps, tags, err := marshalTaskFields(task)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO tasks
		(id, name, description, website_patterns, prompt_template, output_format,
		 automation_steps, enabled, usage_count, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		task.ID, task.Name, task.Description, patterns, task.PromptTemplate,
		string(task.OutputFormat), steps, task.Enabled, task.UsageCount, tags,
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// GetTask fetches one task by id.
func (s *SQLStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	query := s.rebind(`SELECT id, name, description, website_patterns, prompt_template,
		output_format, automation_steps, enabled, usage_count, tags, created_at, updated_at
		FROM tasks WHERE id = ?`)
	row := s.db.QueryRowContext(ctx, query, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taskerr.NewNotFoundError("task", id)
	}
	return task, err
}

// GetAllTasks returns every stored task, newest first.
func (s *SQLStore) GetAllTasks(ctx context.Context) ([]types.Task, error) {
	query := `SELECT id, name, description, website_patterns, prompt_template,
		output_format, automation_steps, enabled, usage_count, tags, created_at, updated_at
		FROM tasks ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

// GetTasksForWebsite returns tasks whose raw pattern text mentions domain.
// This is only a prefilter; relevance scoring happens in the task index.
func (s *SQLStore) GetTasksForWebsite(ctx context.Context, domain string) ([]types.Task, error) {
	query := s.rebind(`SELECT id, name, description, website_patterns, prompt_template,
		output_format, automation_steps, enabled, usage_count, tags, created_at, updated_at
		FROM tasks WHERE website_patterns LIKE ? ORDER BY created_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, "%"+domain+"%")
	if err != nil {
		return nil, fmt.Errorf("prefiltering tasks for %s: %w", domain, err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

// UpdateTask rewrites a stored task.
func (s *SQLStore) UpdateTask(ctx context.Context, task *types.Task) error {
	patterns, steps, tags, err := marshalTaskFields(task)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE tasks SET name = ?, description = ?, website_patterns = ?,
		prompt_template = ?, output_format = ?, automation_steps = ?, enabled = ?,
		usage_count = ?, tags = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		task.Name, task.Description, patterns, task.PromptTemplate,
		string(task.OutputFormat), steps, task.Enabled, task.UsageCount, tags,
		task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return taskerr.NewNotFoundError("task", task.ID)
	}
	return nil
}

// DeleteTask removes a task and its usage metrics.
func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return taskerr.NewNotFoundError("task", id)
	}
	return s.DeleteUsageMetrics(ctx, id)
}

// IncrementTaskUsage bumps a task's usage counter.
func (s *SQLStore) IncrementTaskUsage(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE tasks SET usage_count = usage_count + 1 WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("incrementing usage for task %s: %w", id, err)
	}
	return nil
}

// GetUsageMetrics returns the metrics record for a task, nil if absent.
func (s *SQLStore) GetUsageMetrics(ctx context.Context, taskID string) (*types.UsageMetrics, error) {
	query := s.rebind(`SELECT task_id, usage_count, success_rate, avg_execution_ms,
		last_used, error_count FROM usage_metrics WHERE task_id = ?`)
	row := s.db.QueryRowContext(ctx, query, taskID)

	var m types.UsageMetrics
	var lastUsed sql.NullTime
	err := row.Scan(&m.TaskID, &m.UsageCount, &m.SuccessRate, &m.AvgExecutionMS, &lastUsed, &m.ErrorCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading metrics for task %s: %w", taskID, err)
	}
	if lastUsed.Valid {
		m.LastUsed = lastUsed.Time
	}
	return &m, nil
}

// SaveUsageMetrics upserts a metrics record.
func (s *SQLStore) SaveUsageMetrics(ctx context.Context, m *types.UsageMetrics) error {
	query := s.rebind(`INSERT INTO usage_metrics
		(task_id, usage_count, success_rate, avg_execution_ms, last_used, error_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			usage_count = excluded.usage_count,
			success_rate = excluded.success_rate,
			avg_execution_ms = excluded.avg_execution_ms,
			last_used = excluded.last_used,
			error_count = excluded.error_count`)
	_, err := s.db.ExecContext(ctx, query,
		m.TaskID, m.UsageCount, m.SuccessRate, m.AvgExecutionMS, m.LastUsed, m.ErrorCount)
	if err != nil {
		return fmt.Errorf("saving metrics for task %s: %w", m.TaskID, err)
	}
	return nil
}

// DeleteUsageMetrics removes the metrics record for a deleted task.
func (s *SQLStore) DeleteUsageMetrics(ctx context.Context, taskID string) error {
	query := s.rebind(`DELETE FROM usage_metrics WHERE task_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, taskID); err != nil {
		return fmt.Errorf("deleting metrics for task %s: %w", taskID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func marshalTaskFields(task *types.Task) (patterns, steps, tags []byte, err error) {
	patterns, err = json.Marshal(task.WebsitePatterns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshalling patterns: %w", err)
	}
	steps, err = json.Marshal(task.AutomationSteps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshalling steps: %w", err)
	}
	tags, err = json.Marshal(task.Tags)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshalling tags: %w", err)
	}
	return patterns, steps, tags, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var task types.Task
	var patterns, steps, tags []byte
	var format string

	err := row.Scan(&task.ID, &task.Name, &task.Description, &patterns,
		&task.PromptTemplate, &format, &steps, &task.Enabled,
		&task.UsageCount, &tags, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	task.OutputFormat = types.OutputFormat(format)
	if err := json.Unmarshal(patterns, &task.WebsitePatterns); err != nil {
		return nil, fmt.Errorf("unmarshalling patterns: %w", err)
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &task.AutomationSteps); err != nil {
			return nil, fmt.Errorf("unmarshalling steps: %w", err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &task.Tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags: %w", err)
		}
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]types.Task, error) {
	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
