// Package prompt builds AI prompts from task templates and page context.
package prompt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tasklens/pkg/types"
)

const (
	// DefaultMaxVariableLength bounds each substituted value.
	DefaultMaxVariableLength = 2000
	// DefaultMaxTemplateLength bounds the whole template.
	DefaultMaxTemplateLength = 10000

	truncationMarker = "..."
)

// variableRe matches a {{name}} token, tolerating whitespace in the braces.
var variableRe = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// recognizedVariables is the fixed, closed set of template variable names.
var recognizedVariables = map[string]struct{}{
	"domain":       {},
	"pageTitle":    {},
	"title":        {}, // alias of pageTitle
	"selectedText": {},
	"mainText":     {},
	"headings":     {},
	"url":          {},
	"category":     {},
	"pageType":     {},
	"textContent":  {},
	"formCount":    {},
	"linkCount":    {},
	"userInput":    {},
}

// Injector substitutes {{variable}} placeholders in task templates.
type Injector struct {
	maxVariableLength int
	maxTemplateLength int
}

// Option configures an Injector.
type Option func(*Injector)

// WithMaxVariableLength overrides the per-variable truncation limit.
func WithMaxVariableLength(n int) Option {
	return func(i *Injector) {
		if n > 0 {
			i.maxVariableLength = n
		}
	}
}

// WithMaxTemplateLength overrides the template length limit used by Validate.
func WithMaxTemplateLength(n int) Option {
	return func(i *Injector) {
		if n > 0 {
			i.maxTemplateLength = n
		}
	}
}

// NewInjector creates an injector with default limits.
func NewInjector(opts ...Option) *Injector {
	inj := &Injector{
		maxVariableLength: DefaultMaxVariableLength,
		maxTemplateLength: DefaultMaxTemplateLength,
	}
	for _, opt := range opts {
		opt(inj)
	}
	return inj
}

// Inject substitutes every {{variable}} occurrence in template with its
// value from execCtx. Unknown variables are replaced with a bracketed
// placeholder and reported as warnings; injection itself never fails, and
// the returned prompt contains no residual {{...}} tokens.
func (i *Injector) Inject(template string, execCtx *types.ExecutionContext) (string, []string) {
	var warnings []string

	out := variableRe.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		value, known := i.resolve(name, execCtx)
		if !known {
			warnings = append(warnings, "unknown template variable: "+name)
			return "[" + name + "]"
		}
		return i.truncate(value)
	})

	// Stray brace pairs that never formed a complete token are dropped so
	// the contract of no {{ or }} in the output holds for malformed input.
	if strings.Contains(out, "{{") || strings.Contains(out, "}}") {
		warnings = append(warnings, "template contained unbalanced braces")
		out = strings.ReplaceAll(out, "{{", "")
		out = strings.ReplaceAll(out, "}}", "")
	}

	return out, warnings
}

// resolve computes the value of a recognized variable.
func (i *Injector) resolve(name string, execCtx *types.ExecutionContext) (string, bool) {
	if _, ok := recognizedVariables[name]; !ok {
		return "", false
	}
	if execCtx == nil {
		return "", true
	}

	page := execCtx.PageContent
	site := execCtx.Website

	switch name {
	case "domain":
		return site.Domain, true
	case "pageTitle", "title":
		return page.Title, true
	case "selectedText":
		return page.SelectedText, true
	case "mainText":
		return page.MainText, true
	case "headings":
		return strings.Join(page.Headings, "\n"), true
	case "url":
		if page.URL != "" {
			return page.URL, true
		}
		return site.URL(), true
	case "category":
		return string(site.Category), true
	case "pageType":
		return string(site.PageType), true
	case "textContent":
		return page.TextContent, true
	case "formCount":
		return strconv.Itoa(page.FormCount), true
	case "linkCount":
		return strconv.Itoa(page.LinkCount), true
	case "userInput":
		return formatUserInput(execCtx.UserInput), true
	}
	return "", false
}

// truncate bounds a substituted value to maxVariableLength characters,
// marking the cut with an ellipsis. The limit counts runes, not bytes, so
// multi-byte text is never split mid-character.
func (i *Injector) truncate(value string) string {
	if len(value) <= i.maxVariableLength {
		return value
	}
	runes := []rune(value)
	if len(runes) <= i.maxVariableLength {
		return value
	}
	return string(runes[:i.maxVariableLength]) + truncationMarker
}

// formatUserInput renders user key/value input as sorted "key: value"
// lines so injection stays deterministic.
func formatUserInput(input map[string]string) string {
	if len(input) == 0 {
		return ""
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+input[k])
	}
	return strings.Join(lines, "\n")
}
