// Package planmd extracts a structural candidate from plan markdown text.
// Extraction is mechanical and total: it never fails and never judges the
// result. Missing or malformed sections surface as nil/zero fields so the
// schema layer can report every problem in one pass.
package planmd

import (
	"regexp"
	"strconv"
	"strings"
)

// CurrentMarker flags the single task a plan may mark as actively worked.
const CurrentMarker = "← CURRENT"

// Candidate is the raw extraction result prior to any validation. Field
// shapes intentionally mirror the plan schema so the candidate can be
// marshaled and evaluated as-is.
type Candidate struct {
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Goal        *string        `json:"goal,omitempty"`
	Context     []ContextEntry `json:"context,omitempty"`
	Phases      []Phase        `json:"phases,omitempty"`
}

type ContextEntry struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
	Source    string `json:"source"`
}

type Phase struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Tasks  []Task `json:"tasks"`
}

type Task struct {
	ID        string `json:"id"`
	Checked   bool   `json:"checked"`
	Content   string `json:"content"`
	IsCurrent bool   `json:"isCurrent,omitempty"`
	Citation  string `json:"citation,omitempty"`
}

var (
	phaseHeadingPattern = regexp.MustCompile(`(?m)^## Phase (\d+): (.+?) \[([^\]]+)\][ \t]*$`)
	taskLinePattern     = regexp.MustCompile(`^- \[( |x)\] (\S+) (.+)$`)
	citationPattern     = regexp.MustCompile("`(ref:" + `\w+-\w+-\w+` + ")`")
	tableRowPattern     = regexp.MustCompile(`^\|(.+)\|$`)
	emphasisStripper    = strings.NewReplacer("**", "", "__", "", "*", "")
)

// Extract builds a best-effort Candidate from plan markdown. Task lines that
// do not match the expected shape contribute no task; that loss is deliberate
// and left for the validator to surface as missing tasks where it matters.
func Extract(text string) Candidate {
	return Candidate{
		Frontmatter: extractFrontmatter(text),
		Goal:        extractGoal(text),
		Context:     extractContext(text),
		Phases:      extractPhases(text),
	}
}

func extractFrontmatter(text string) map[string]any {
	if !strings.HasPrefix(text, "---\n") {
		return nil
	}
	body := text[len("---\n"):]
	end := strings.Index(body, "\n---")
	if end < 0 {
		return nil
	}
	fields := map[string]any{}
	for _, line := range strings.Split(body[:end], "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if key == "phase" {
			// Coerced so the schema can check positivity; a non-numeric value
			// stays a string and fails the schema's integer check instead.
			if number, err := strconv.Atoi(value); err == nil {
				fields[key] = number
			} else {
				fields[key] = value
			}
			continue
		}
		fields[key] = value
	}
	return fields
}

func extractGoal(text string) *string {
	lines := strings.Split(text, "\n")
	for index, line := range lines {
		if strings.TrimSpace(line) != "## Goal" {
			continue
		}
		captured := make([]string, 0, 4)
		for _, following := range lines[index+1:] {
			if strings.HasPrefix(strings.TrimSpace(following), "#") {
				break
			}
			captured = append(captured, following)
		}
		goal := strings.TrimSpace(strings.Join(captured, "\n"))
		if goal == "" {
			return nil
		}
		return &goal
	}
	return nil
}

func extractContext(text string) []ContextEntry {
	lines := strings.Split(text, "\n")
	start := -1
	for index, line := range lines {
		if strings.TrimSpace(line) == "## Context" {
			start = index + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	var entries []ContextEntry
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			break
		}
		match := tableRowPattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		cells := strings.Split(match[1], "|")
		if len(cells) != 3 {
			continue
		}
		decision := strings.TrimSpace(cells[0])
		rationale := strings.TrimSpace(cells[1])
		source := strings.TrimSpace(cells[2])
		if isTableChrome(decision) {
			continue
		}
		entries = append(entries, ContextEntry{
			Decision:  decision,
			Rationale: rationale,
			Source:    source,
		})
	}
	return entries
}

// isTableChrome reports header and separator rows of a context table.
func isTableChrome(firstCell string) bool {
	if strings.EqualFold(firstCell, "decision") {
		return true
	}
	trimmed := strings.Trim(firstCell, "-: ")
	return trimmed == "" && firstCell != ""
}

func extractPhases(text string) []Phase {
	headings := phaseHeadingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(headings) == 0 {
		return nil
	}
	phases := make([]Phase, 0, len(headings))
	for index, heading := range headings {
		bodyStart := heading[1]
		bodyEnd := len(text)
		if index+1 < len(headings) {
			bodyEnd = headings[index+1][0]
		}
		body := trimAtTerminalSection(text[bodyStart:bodyEnd])

		number, _ := strconv.Atoi(text[heading[2]:heading[3]])
		phases = append(phases, Phase{
			Number: number,
			Name:   strings.TrimSpace(text[heading[4]:heading[5]]),
			Status: strings.TrimSpace(text[heading[6]:heading[7]]),
			Tasks:  extractTasks(body),
		})
	}
	return phases
}

// trimAtTerminalSection cuts a phase body at the first terminal section
// heading so trailing notes never masquerade as phase content.
func trimAtTerminalSection(body string) string {
	for _, terminal := range []string{"\n## Notes", "\n## Blockers"} {
		if cut := strings.Index(body, terminal); cut >= 0 {
			body = body[:cut]
		}
	}
	return body
}

func extractTasks(body string) []Task {
	tasks := make([]Task, 0, 8)
	for _, line := range strings.Split(body, "\n") {
		match := taskLinePattern.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if match == nil {
			continue
		}
		rest := match[3]

		citation := ""
		if citationMatch := citationPattern.FindStringSubmatch(rest); citationMatch != nil {
			citation = citationMatch[1]
			rest = strings.Replace(rest, citationMatch[0], "", 1)
		}

		isCurrent := strings.Contains(rest, CurrentMarker)
		if isCurrent {
			rest = strings.Replace(rest, CurrentMarker, "", 1)
		}

		content := strings.TrimSpace(emphasisStripper.Replace(rest))
		tasks = append(tasks, Task{
			ID:        match[2],
			Checked:   match[1] == "x",
			Content:   content,
			IsCurrent: isCurrent,
			Citation:  citation,
		})
	}
	return tasks
}
