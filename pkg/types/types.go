// Package types provides the data structures shared across the task
// matching and execution pipeline.
package types

import (
	"time"
)

// Task represents a reusable prompt template bound to website URL patterns.
type Task struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	WebsitePatterns []string         `json:"website_patterns"`
	PromptTemplate  string           `json:"prompt_template"`
	OutputFormat    OutputFormat     `json:"output_format"`
	AutomationSteps []AutomationStep `json:"automation_steps,omitempty"`
	Enabled         bool             `json:"enabled"`
	UsageCount      int              `json:"usage_count"`
	Tags            []string         `json:"tags,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// OutputFormat represents the requested shape of AI output.
type OutputFormat string

const (
	FormatText     OutputFormat = "text"
	FormatMarkdown OutputFormat = "markdown"
	FormatJSON     OutputFormat = "json"
	FormatHTML     OutputFormat = "html"
)

// ValidOutputFormats lists every accepted output format value.
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatText, FormatMarkdown, FormatJSON, FormatHTML}
}

// IsValid reports whether the output format is a known value.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatText, FormatMarkdown, FormatJSON, FormatHTML:
		return true
	default:
		return false
	}
}

// StepType represents the kind of an automation step.
type StepType string

const (
	StepClick    StepType = "click"
	StepExtract  StepType = "extract"
	StepFill     StepType = "fill"
	StepNavigate StepType = "navigate"
	StepWait     StepType = "wait"
	StepScroll   StepType = "scroll"
)

// IsValid reports whether the step type is a known value.
func (s StepType) IsValid() bool {
	switch s {
	case StepClick, StepExtract, StepFill, StepNavigate, StepWait, StepScroll:
		return true
	default:
		return false
	}
}

// RequiresSelector reports whether steps of this type need a CSS selector.
// Wait steps only need a duration.
func (s StepType) RequiresSelector() bool {
	return s != StepWait
}

// AutomationStep represents one step in a task's optional automation list.
type AutomationStep struct {
	Type     StepType `json:"type"`
	Selector string   `json:"selector,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// WebsiteCategory represents the detected category of a website.
type WebsiteCategory string

const (
	CategorySocialMedia   WebsiteCategory = "social_media"
	CategoryEcommerce     WebsiteCategory = "ecommerce"
	CategoryProfessional  WebsiteCategory = "professional"
	CategoryNewsContent   WebsiteCategory = "news_content"
	CategoryTechnical     WebsiteCategory = "technical"
	CategoryEntertainment WebsiteCategory = "entertainment"
	CategoryGeneral       WebsiteCategory = "general"
)

// PageType represents the detected type of the current page.
type PageType string

const (
	PageArticle PageType = "article"
	PageProduct PageType = "product"
	PageProfile PageType = "profile"
	PageFeed    PageType = "feed"
	PageSearch  PageType = "search"
	PageForm    PageType = "form"
	PageVideo   PageType = "video"
	PageHome    PageType = "home"
	PageUnknown PageType = "unknown"
)

// SecurityLevel represents the security classification of a website.
type SecurityLevel string

const (
	SecurityPublic     SecurityLevel = "public"
	SecurityCautious   SecurityLevel = "cautious"
	SecurityRestricted SecurityLevel = "restricted"
)

// WebsiteContext represents derived metadata about the page currently
// being viewed. Created fresh per page visit, never persisted.
type WebsiteContext struct {
	Domain        string            `json:"domain"`
	Category      WebsiteCategory   `json:"category"`
	PageType      PageType          `json:"page_type"`
	ExtractedData map[string]string `json:"extracted_data,omitempty"`
	Security      SecurityLevel     `json:"security"`
	AnalyzedAt    time.Time         `json:"analyzed_at"`
}

// URL returns the page URL recorded in the extracted data, or "" if absent.
func (w WebsiteContext) URL() string {
	if w.ExtractedData == nil {
		return ""
	}
	return w.ExtractedData["url"]
}

// PageContent represents extracted content of the page a task runs against.
type PageContent struct {
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	SelectedText string   `json:"selected_text,omitempty"`
	MainText     string   `json:"main_text,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	TextContent  string   `json:"text_content,omitempty"`
	FormCount    int      `json:"form_count"`
	LinkCount    int      `json:"link_count"`
}

// ExecutionContext carries everything needed to run one task against one
// page. Ephemeral, created per execution request.
type ExecutionContext struct {
	TaskID      string            `json:"task_id"`
	Website     WebsiteContext    `json:"website"`
	PageContent PageContent       `json:"page_content"`
	UserInput   map[string]string `json:"user_input,omitempty"`
}

// UsageMetrics represents per-task running statistics. One record per
// task, created on first execution.
type UsageMetrics struct {
	TaskID         string    `json:"task_id"`
	UsageCount     int       `json:"usage_count"`
	SuccessRate    float64   `json:"success_rate"` // 0-100 percentage
	AvgExecutionMS float64   `json:"avg_execution_ms"`
	LastUsed       time.Time `json:"last_used"`
	ErrorCount     int       `json:"error_count"`
}

// AssociationRule maps a domain pattern to a website category with a
// priority. Rules are built in and not user editable.
type AssociationRule struct {
	Name     string          `json:"name" yaml:"name"`
	Pattern  string          `json:"pattern" yaml:"pattern"`
	Category WebsiteCategory `json:"category" yaml:"category"`
	Priority int             `json:"priority" yaml:"priority"`
	Enabled  bool            `json:"enabled" yaml:"enabled"`
}

// ExecutionResult is what callers receive from a task execution.
type ExecutionResult struct {
	Success         bool         `json:"success"`
	Content         string       `json:"content,omitempty"`
	Format          OutputFormat `json:"format,omitempty"`
	Error           string       `json:"error,omitempty"`
	ExecutionTimeMS int64        `json:"execution_time_ms"`
	Cached          bool         `json:"cached"`
	DryRun          bool         `json:"dry_run"`
	RequestID       string       `json:"request_id,omitempty"`
}

// TestResult reports the outcome of a dry-run self test for one task.
type TestResult struct {
	TaskID     string `json:"task_id"`
	Passed     bool   `json:"passed"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}
