// Package planschema is the single validation boundary for plan documents.
// It runs extraction, evaluates the candidate against the embedded JSON
// schema, refines raw schema messages into actionable ones, and applies the
// cross-cutting business rules the schema cannot express.
package planschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"github.com/davidahmann/plankeep/core/planmd"
)

//go:embed schema.json
var planSchemaJSON []byte

// FormatHint is the fixed remediation hint attached to every input failure.
const FormatHint = "Plan format: frontmatter (status/phase/updated), '## Goal', one or more '## Phase N: Name [STATUS]' sections, and '- [ ] N.N task' lines. Mark at most one task with '" + planmd.CurrentMarker + "'."

// Result is the discriminated outcome of Validate. Exactly one of Plan or
// Error is populated; Warnings may accompany a successful result.
type Result struct {
	OK       bool
	Plan     *Plan
	Warnings []string
	Error    string
	Hint     string
}

var planSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(planSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("compile embedded plan schema: %v", err))
	}
	return schema
}

// Validate runs the full extract -> schema -> business-rule pipeline over raw
// plan text. It never returns an error value: user-supplied data problems are
// data, not exceptions.
func Validate(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Error: "Empty content provided", Hint: FormatHint}
	}

	candidate := planmd.Extract(text)
	encoded, err := json.Marshal(candidate)
	if err != nil {
		return Result{Error: fmt.Sprintf("Failed to encode plan candidate: %v", err), Hint: FormatHint}
	}

	evaluation := planSchema.ValidateJSON(encoded)
	if !evaluation.IsValid() {
		return Result{Error: strings.Join(formatSchemaErrors(evaluation), "\n"), Hint: FormatHint}
	}

	var plan Plan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return Result{Error: fmt.Sprintf("Failed to decode validated plan: %v", err), Hint: FormatHint}
	}

	currentCount := 0
	inProgressPhases := 0
	for _, phase := range plan.Phases {
		if phase.Status == PhaseInProgress {
			inProgressPhases++
		}
		for _, task := range phase.Tasks {
			if task.IsCurrent {
				currentCount++
			}
		}
	}
	if currentCount > 1 {
		return Result{
			Error: fmt.Sprintf("Multiple tasks marked %s (found %d).", planmd.CurrentMarker, currentCount),
			Hint:  fmt.Sprintf("Remove the %s marker from all but one task.", planmd.CurrentMarker),
		}
	}

	var warnings []string
	if inProgressPhases > 1 {
		warnings = append(warnings, fmt.Sprintf("Multiple phases marked %s (found %d); expected at most one.", PhaseInProgress, inProgressPhases))
	}

	return Result{OK: true, Plan: &plan, Warnings: warnings}
}

type schemaViolation struct {
	instanceLocation string
	keyword          string
	message          string
}

var quotedNamePattern = regexp.MustCompile(`'([^']+)'`)

// formatSchemaErrors flattens an evaluation tree into sorted, deduplicated
// "[dotted.path]: message" lines covering every violated constraint.
func formatSchemaErrors(evaluation *jsonschema.EvaluationResult) []string {
	violations := collectViolations(evaluation.ToList())

	seen := map[string]struct{}{}
	lines := make([]string, 0, len(violations))
	for _, violation := range violations {
		for _, line := range renderViolation(violation) {
			if _, duplicate := seen[line]; duplicate {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		lines = append(lines, "[plan]: Does not match the plan schema")
	}
	return lines
}

func collectViolations(list *jsonschema.List) []schemaViolation {
	if list == nil {
		return nil
	}
	var violations []schemaViolation
	for keyword, message := range list.Errors {
		violations = append(violations, schemaViolation{
			instanceLocation: list.InstanceLocation,
			keyword:          keyword,
			message:          message,
		})
	}
	for index := range list.Details {
		violations = append(violations, collectViolations(&list.Details[index])...)
	}
	return violations
}

// renderViolation maps one schema violation to its user-facing lines. A
// single "required" violation fans out to one line per missing property so
// each missing field shows up under its own path.
func renderViolation(violation schemaViolation) []string {
	path := dottedPath(violation.instanceLocation)

	if violation.keyword == "required" {
		names := quotedNamePattern.FindAllStringSubmatch(violation.message, -1)
		if len(names) == 0 {
			return []string{fmt.Sprintf("[%s]: Required field missing", path)}
		}
		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("[%s]: Required field missing", joinPath(path, name[1])))
		}
		return lines
	}

	return []string{fmt.Sprintf("[%s]: %s", path, refineMessage(path, violation))}
}

func refineMessage(path string, violation schemaViolation) string {
	switch violation.keyword {
	case "enum":
		if accepted := acceptedValuesFor(path); accepted != "" {
			return "Must be one of: " + accepted
		}
	case "pattern":
		switch {
		case path == "frontmatter.updated":
			return "Date must be YYYY-MM-DD"
		case strings.HasSuffix(path, ".id"):
			return "Task ID must be <phase>.<task> (for example 1.2)"
		case strings.HasSuffix(path, ".citation"):
			return "Citation must match ref:word-word-word"
		}
	case "minLength":
		switch {
		case path == "goal":
			return "Goal must be at least 10 characters"
		case strings.HasSuffix(path, ".name"):
			return "Phase name must not be empty"
		case strings.HasSuffix(path, ".content"):
			return "Task content must not be empty"
		}
	case "minItems":
		switch {
		case path == "phases":
			return "Plan must contain at least one phase"
		case strings.HasSuffix(path, ".tasks"):
			return "Phase must contain at least one task"
		}
	case "type", "minimum":
		switch {
		case path == "frontmatter.phase":
			return "Phase counter must be a positive integer"
		case strings.HasSuffix(path, ".number"):
			return "Phase number must be a positive integer"
		}
	}
	return violation.message
}

func acceptedValuesFor(path string) string {
	switch {
	case path == "frontmatter.status":
		return strings.Join([]string{StatusNotStarted, StatusInProgress, StatusComplete, StatusBlocked}, ", ")
	case strings.HasSuffix(path, ".status"):
		return strings.Join([]string{PhasePending, PhaseInProgress, PhaseComplete, PhaseBlocked}, ", ")
	}
	return ""
}

// dottedPath converts a JSON pointer ("/phases/0/tasks/1/id") into the dotted
// form used in error reports ("phases[0].tasks[1].id").
func dottedPath(pointer string) string {
	trimmed := strings.Trim(pointer, "/")
	if trimmed == "" {
		return "plan"
	}
	var builder strings.Builder
	for _, segment := range strings.Split(trimmed, "/") {
		if isDigits(segment) {
			builder.WriteString("[" + segment + "]")
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString(".")
		}
		builder.WriteString(segment)
	}
	return builder.String()
}

func joinPath(parent, child string) string {
	if parent == "" || parent == "plan" {
		return child
	}
	return parent + "." + child
}

func isDigits(segment string) bool {
	if segment == "" {
		return false
	}
	for _, character := range segment {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
