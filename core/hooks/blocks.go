package hooks

import (
	"fmt"
	"time"
)

// Agent role names the host reports on prompt construction.
const (
	RolePlanner     = "planner"
	RoleImplementer = "implementer"
	RoleReviewer    = "reviewer"
)

const plannerInstructions = `## Plan discipline (planner)
Maintain a single implementation plan with the plan_save tool.
- Frontmatter: status (not-started|in-progress|complete|blocked), phase (positive integer), updated (YYYY-MM-DD).
- One "## Goal" section of at least 10 characters.
- One or more "## Phase N: Name [PENDING|IN PROGRESS|COMPLETE|BLOCKED]" sections, each with at least one "- [ ] N.N task" line.
- Mark at most one task with "← CURRENT"; move the marker as work progresses.
- Attach research citations as ` + "`ref:word-word-word`" + ` tokens on the task or in a "## Context" decision table.
Save the whole plan on every change; partial edits are never persisted.`

const implementerInstructions = `## Plan discipline (implementer)
Read the active plan with plan_read before starting work and keep your work
scoped to the task marked "← CURRENT". When a task completes, report back so
the planner can advance the marker; do not rewrite the plan yourself.`

const reviewerInstructions = `## Plan discipline (reviewer)
Read the active plan with plan_read and verify completed tasks against their
phase's stated goal. Flag checked tasks whose work is missing and phases
marked COMPLETE that still carry unchecked tasks.`

const genericInstructions = `## Plan discipline
A persistent implementation plan is maintained for this session. Use plan_read
to consult it and plan_save to replace it with an updated version.`

// reviewReminder is appended after a successful plan save and after the last
// in-flight implementation call reports completion.
const reviewReminder = `## Review step
Implementation activity has settled. Re-read the plan with plan_read, verify
the task marked "← CURRENT" actually finished, check it off, and advance the
marker before delegating more work.`

func instructionsForRole(role string) string {
	switch role {
	case RolePlanner:
		return plannerInstructions
	case RoleImplementer:
		return implementerInstructions
	case RoleReviewer:
		return reviewerInstructions
	default:
		return genericInstructions
	}
}

func currentDateBlock(now time.Time) string {
	return fmt.Sprintf("Current date: %s", now.UTC().Format("2006-01-02"))
}
