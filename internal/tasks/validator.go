// Package tasks provides the task index: validation, CRUD over the store
// and relevance-ranked lookup for the current website.
package tasks

import (
	"fmt"
	"strings"

	"tasklens/internal/pattern"
	"tasklens/internal/prompt"
	"tasklens/internal/taskerr"
	"tasklens/pkg/types"
)

// Validator checks tasks at write time. It collects every failure before
// reporting, not just the first, so callers can fix a form in one pass.
type Validator struct {
	injector *prompt.Injector
}

// NewValidator creates a task validator.
func NewValidator(injector *prompt.Injector) *Validator {
	return &Validator{injector: injector}
}

// ValidateTask returns a ValidationError listing every problem with the
// task, or nil when it is acceptable. Invalid tasks are never stored.
func (v *Validator) ValidateTask(task *types.Task) error {
	verr := &taskerr.ValidationError{}
	if task == nil {
		verr.Add("task", taskerr.CodeRequiredField, "task is required")
		return verr
	}

	if strings.TrimSpace(task.Name) == "" {
		verr.Add("name", taskerr.CodeRequiredField, "name must be a non-empty string")
	}
	if strings.TrimSpace(task.Description) == "" {
		verr.Add("description", taskerr.CodeRequiredField, "description must be a non-empty string")
	}

	v.validateTemplate(task, verr)
	v.validatePatterns(task, verr)
	v.validateOutputFormat(task, verr)
	v.validateSteps(task, verr)

	return verr.ErrOrNil()
}

func (v *Validator) validateTemplate(task *types.Task, verr *taskerr.ValidationError) {
	if strings.TrimSpace(task.PromptTemplate) == "" {
		verr.Add("prompt_template", taskerr.CodeRequiredField, "prompt template must be a non-empty string")
		return
	}
	result := v.injector.Validate(task.PromptTemplate)
	for _, e := range result.Errors {
		verr.Add("prompt_template", taskerr.CodeInvalidValue, e)
	}
}

func (v *Validator) validatePatterns(task *types.Task, verr *taskerr.ValidationError) {
	for i, p := range task.WebsitePatterns {
		if !pattern.Valid(p) {
			verr.Add(fmt.Sprintf("website_patterns[%d]", i), taskerr.CodeInvalidFormat,
				fmt.Sprintf("pattern %q is neither a valid regular expression nor a bare domain", p))
		}
	}
}

func (v *Validator) validateOutputFormat(task *types.Task, verr *taskerr.ValidationError) {
	if !task.OutputFormat.IsValid() {
		verr.Add("output_format", taskerr.CodeInvalidValue,
			fmt.Sprintf("output format %q is not one of %v", task.OutputFormat, types.ValidOutputFormats()))
	}
}

func (v *Validator) validateSteps(task *types.Task, verr *taskerr.ValidationError) {
	for i, step := range task.AutomationSteps {
		field := fmt.Sprintf("automation_steps[%d]", i)
		if !step.Type.IsValid() {
			verr.Add(field, taskerr.CodeInvalidValue,
				fmt.Sprintf("unknown step type %q", step.Type))
			continue
		}
		if step.Type.RequiresSelector() && strings.TrimSpace(step.Selector) == "" {
			verr.Add(field, taskerr.CodeRequiredField,
				fmt.Sprintf("%s steps require a non-empty selector", step.Type))
		}
	}
}
