package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationResult reports the static checks performed on a template.
type ValidationResult struct {
	IsValid   bool     `json:"is_valid"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Variables []string `json:"variables,omitempty"`
}

// minMeaningfulTemplateLength is the point below which a template is
// probably too short to produce useful output.
const minMeaningfulTemplateLength = 20

// singleBraceRe matches a lone {name} token left after all well-formed
// double-brace tokens have been removed.
var singleBraceRe = regexp.MustCompile(`\{[^{}]*\}`)

// Validate statically checks a template: length bounds, unknown variables
// and malformed brace tokens are errors; very short or variable-free
// templates only produce warnings.
func (i *Injector) Validate(template string) ValidationResult {
	result := ValidationResult{IsValid: true}

	if strings.TrimSpace(template) == "" {
		result.Errors = append(result.Errors, "template is empty")
		result.IsValid = false
		return result
	}
	if len(template) > i.maxTemplateLength {
		result.Errors = append(result.Errors,
			fmt.Sprintf("template exceeds maximum length of %d characters", i.maxTemplateLength))
	}

	for _, match := range variableRe.FindAllStringSubmatch(template, -1) {
		name := match[1]
		result.Variables = append(result.Variables, name)
		if _, ok := recognizedVariables[name]; !ok {
			result.Errors = append(result.Errors, "unknown template variable: "+name)
		}
	}

	// Strip the well-formed {{...}} tokens, then look for leftover brace
	// constructs such as {foo} or a dangling {{.
	stripped := variableRe.ReplaceAllString(template, "")
	for _, token := range singleBraceRe.FindAllString(stripped, -1) {
		result.Errors = append(result.Errors, "malformed variable token: "+token+" (use {{name}})")
	}
	if strings.Contains(stripped, "{{") || strings.Contains(stripped, "}}") {
		result.Errors = append(result.Errors, "template contains unbalanced braces")
	}

	if len(template) < minMeaningfulTemplateLength {
		result.Warnings = append(result.Warnings, "template is very short")
	}
	if len(result.Variables) == 0 {
		result.Warnings = append(result.Warnings, "template uses no variables; output will ignore page context")
	}

	result.IsValid = len(result.Errors) == 0
	return result
}
