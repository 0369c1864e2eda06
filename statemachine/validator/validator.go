// Package validator checks machine definitions for structural mistakes and
// suspicious patterns, and offers automatic fixes for some of them.
package validator

import (
	"fmt"
	"os"
	"strings"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// ValidationResult contains the results of validating a machine definition.
type ValidationResult struct {
	Valid       bool
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Suggestions []Suggestion
}

// ValidationError represents a validation error with fix suggestions.
type ValidationError struct {
	Code     string   // Error code like "MISSING_PARENT", "DANGLING_TARGET"
	Message  string   // Human-readable error message
	Location Location // Where the error occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string   // Warning code
	Message  string   // Human-readable warning message
	Location Location // Where the warning occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// Suggestion provides improvement recommendations.
type Suggestion struct {
	Message string // Suggestion description
	Example string // YAML example showing the improvement
}

// Location identifies where an issue occurred.
type Location struct {
	File       string // Config file path
	Line       int    // Line number (0 if unknown)
	State      string // State name if applicable
	Transition string // Transition name if applicable
}

func (l Location) String() string {
	var parts []string

	if l.File != "" {
		file := l.File
		if l.Line > 0 {
			file = fmt.Sprintf("%s:%d", file, l.Line)
		}

		parts = append(parts, file)
	}

	if l.State != "" {
		parts = append(parts, "state: "+l.State)
	}

	if l.Transition != "" {
		parts = append(parts, "transition: "+l.Transition)
	}

	return strings.Join(parts, ", ")
}

// Validate runs the default rules.
func Validate(config *statemachine.Config) ValidationResult {
	return ValidateWithRules(config, DefaultRules())
}

// ValidateWithRegistry runs the default rules plus a check that every guard,
// handler and resolver name is known to the registry.
func ValidateWithRegistry(config *statemachine.Config, registry *statemachine.Registry) ValidationResult {
	return ValidateWithRules(config, append(DefaultRules(), ReferenceRule(registry)))
}

// ValidateFile loads a definition from a file and validates it.
func ValidateFile(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, false)
}

// ValidateFileStrict loads a definition from a file and validates it in strict mode.
func ValidateFileStrict(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, true)
}

// ValidateFileWithOptions loads a definition from a file and validates it with options.
// Only unreadable or undecodable files produce an error; structural problems are
// reported in the result.
func ValidateFileWithOptions(path string, strict bool) (ValidationResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err == nil {
		var config *statemachine.Config

		config, err = statemachine.ParseConfig(data)
		if err == nil {
			return validateLoaded(config, path, strict), nil
		}
	}

	return ValidationResult{
		Valid: false,
		Errors: []ValidationError{
			{
				Code:     "CONFIG_LOAD_FAILED",
				Message:  fmt.Sprintf("Failed to load config: %v", err),
				Location: Location{File: path},
			},
		},
	}, err
}

func validateLoaded(config *statemachine.Config, path string, strict bool) ValidationResult {
	var result ValidationResult
	if strict {
		result = ValidateWithRulesStrict(config, DefaultRules())
	} else {
		result = Validate(config)
	}

	// Set file location for all errors and warnings
	for i := range result.Errors {
		if result.Errors[i].Location.File == "" {
			result.Errors[i].Location.File = path
		}
	}

	for i := range result.Warnings {
		if result.Warnings[i].Location.File == "" {
			result.Warnings[i].Location.File = path
		}
	}

	return result
}

// ValidateWithRules validates using custom rules.
func ValidateWithRules(config *statemachine.Config, rules []Rule) ValidationResult {
	var result ValidationResult

	result.Valid = true

	if config == nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "CONFIG_MISSING",
			Message: "No definition to validate",
		})

		return result
	}

	for _, rule := range rules {
		ruleResult := rule.Check(config)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	result.Suggestions = generateSuggestions(config)

	return result
}

// ValidateWithRulesStrict validates with strict mode (treats warnings as errors).
func ValidateWithRulesStrict(config *statemachine.Config, rules []Rule) ValidationResult {
	result := ValidateWithRules(config, rules)

	for _, warning := range result.Warnings {
		result.Errors = append(result.Errors, ValidationError{
			Code:     warning.Code,
			Message:  warning.Message,
			Location: warning.Location,
			Fix:      warning.Fix,
		})
	}

	result.Warnings = nil

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

// Fixes returns every fix offered by the errors and warnings, errors first.
func (r ValidationResult) Fixes() []*Fix {
	var fixes []*Fix

	for _, err := range r.Errors {
		if err.Fix != nil {
			fixes = append(fixes, err.Fix)
		}
	}

	for _, warn := range r.Warnings {
		if warn.Fix != nil {
			fixes = append(fixes, warn.Fix)
		}
	}

	return fixes
}

// generateSuggestions provides general improvement suggestions.
func generateSuggestions(config *statemachine.Config) []Suggestion {
	var suggestions []Suggestion

	if config.Name == "" {
		suggestions = append(suggestions, Suggestion{
			Message: "Name the machine so that its logs, metrics and traces can be told apart",
			Example: `name: traffic_light
states:
  ...`,
		})
	}

	nested := false
	topLevel := 0

	for _, state := range config.States {
		if state.ParentName() != "" {
			nested = true
		} else {
			topLevel++
		}
	}

	if !nested && topLevel > 5 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider grouping related states under a common parent to share transitions",
			Example: `states:
  on:
    powerOff: off      # available from every state below "on"
  on/green:
    isInitial: true
    next: on/orange`,
		})
	}

	hasGuards := false

	for _, state := range config.States {
		if len(state.Guards.Entry) > 0 || len(state.Guards.Exit) > 0 {
			hasGuards = true

			break
		}
	}

	if !hasGuards && len(config.States) > 3 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider guards to refuse transitions that are not allowed yet",
			Example: `states:
  on:
    guards:
      exit: [notBusy]`,
		})
	}

	return suggestions
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Configuration is valid\n")
	} else {
		fmt.Fprintf(&sb, "✗ Configuration has %d error(s)\n", len(r.Errors))

		for _, err := range r.Errors {
			fmt.Fprintf(&sb, "  [%s] %s", err.Code, err.Message)

			if loc := err.Location.String(); loc != "" {
				fmt.Fprintf(&sb, " (%s)", loc)
			}

			sb.WriteString("\n")

			if err.Fix != nil {
				fmt.Fprintf(&sb, "    Fix: %s\n", err.Fix.Description)
			}
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "\n⚠ %d warning(s):\n", len(r.Warnings))

		for _, warn := range r.Warnings {
			fmt.Fprintf(&sb, "  [%s] %s\n", warn.Code, warn.Message)
		}
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(&sb, "\n%d suggestion(s) for improvement\n", len(r.Suggestions))
	}

	return sb.String()
}
