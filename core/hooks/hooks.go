// Package hooks is the thin glue between host lifecycle events and the plan
// core: it resolves identities, reads and writes the plan store, validates
// plan text, and formats the text blocks injected back into agent context.
package hooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/davidahmann/plankeep/core/calltrack"
	"github.com/davidahmann/plankeep/core/errors"
	"github.com/davidahmann/plankeep/core/identity"
	"github.com/davidahmann/plankeep/core/planmd"
	"github.com/davidahmann/plankeep/core/planschema"
	"github.com/davidahmann/plankeep/core/planstore"
	"github.com/davidahmann/plankeep/core/session"
)

const (
	// DefaultDelegateTool is the host tool that spawns implementation work.
	DefaultDelegateTool = "task"
	// DefaultDelegateRole is the role argument that marks a delegation as
	// implementation work worth tracking.
	DefaultDelegateRole = RoleImplementer

	// Resume-point window around the current-task marker on compaction.
	resumeWindowBefore = 100
	resumeWindowAfter  = 50
)

// Hooks wires the plan core into host lifecycle events. All collaborators
// are injectable; zero-value clock and warn sink get sane defaults.
type Hooks struct {
	Store        planstore.Store
	Sessions     session.Source
	Tracker      *calltrack.Tracker
	ProjectRoot  string
	DelegateTool string
	DelegateRole string
	Now          func() time.Time
	Warn         identity.Logf
}

func (h *Hooks) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Hooks) warn(format string, args ...any) {
	if h.Warn != nil {
		h.Warn(format, args...)
	}
}

func (h *Hooks) delegateTool() string {
	if h.DelegateTool == "" {
		return DefaultDelegateTool
	}
	return h.DelegateTool
}

func (h *Hooks) delegateRole() string {
	if h.DelegateRole == "" {
		return DefaultDelegateRole
	}
	return h.DelegateRole
}

// PromptBlocks returns the text blocks appended during prompt construction:
// role-specific plan instructions plus the current date. Stateless.
func (h *Hooks) PromptBlocks(agentRole string) []string {
	return []string{
		instructionsForRole(strings.ToLower(strings.TrimSpace(agentRole))),
		currentDateBlock(h.now()),
	}
}

// ToolStarted records delegation calls that target the implementation role so
// ToolFinished can tell when the last one lands. Other tools are ignored.
func (h *Hooks) ToolStarted(tool, callID string, args map[string]any) {
	if h.Tracker == nil || tool != h.delegateTool() || callID == "" {
		return
	}
	if role, ok := args["role"].(string); !ok || !strings.EqualFold(role, h.delegateRole()) {
		return
	}
	h.Tracker.Start(callID)
}

// ToolFinished returns the blocks to append after a tool completes: a review
// reminder after a successful plan save, and a review reminder once the final
// tracked delegation call has reported back. The response is the host's view
// of the tool result; a failed save must not prompt a review.
func (h *Hooks) ToolFinished(tool, callID string, response map[string]any) []string {
	switch tool {
	case "plan_save":
		if planSaveSucceeded(response) {
			return []string{reviewReminder}
		}
	case h.delegateTool():
		if h.Tracker == nil {
			return nil
		}
		wasTracked := h.Tracker.InFlight() > 0
		if remaining := h.Tracker.Finish(callID); wasTracked && remaining == 0 {
			return []string{reviewReminder}
		}
	}
	return nil
}

// planSaveSucceeded reads the host's tool response for an explicit failure
// signal. Hosts that report no structured response are taken as successful.
func planSaveSucceeded(response map[string]any) bool {
	if response == nil {
		return true
	}
	if ok, isBool := response["ok"].(bool); isBool && !ok {
		return false
	}
	if message, _ := response["error"].(string); message != "" {
		return false
	}
	return true
}

// PlanSave validates and persists plan text for the session's root. The
// returned confirmation names the plan digest and any validation warnings.
func (h *Hooks) PlanSave(ctx context.Context, sessionID, content string) (string, error) {
	rootID, err := session.ResolveRoot(ctx, h.Sessions, sessionID)
	if err != nil {
		return "", err
	}

	result := planschema.Validate(content)
	if !result.OK {
		return "", errors.Wrap(
			fmt.Errorf("%s", result.Error),
			errors.CategoryInvalidInput, "plan_validation_failed",
			result.Hint, false,
		)
	}

	projectID, err := identity.ResolveProject(ctx, h.ProjectRoot, h.Warn)
	if err != nil {
		return "", err
	}
	if err := h.Store.Write(projectID, rootID, content); err != nil {
		return "", err
	}

	digest, digestErr := planschema.Digest(result.Plan)
	if digestErr != nil {
		h.warn("plan digest unavailable: %v", digestErr)
	}
	return saveConfirmation(digest, result.Warnings), nil
}

func saveConfirmation(digest string, warnings []string) string {
	suffix := ""
	if digest != "" {
		suffix = fmt.Sprintf(" (digest %s)", digest[:12])
	}
	if len(warnings) == 0 {
		return fmt.Sprintf("Plan saved%s.", suffix)
	}
	return fmt.Sprintf("Plan saved with %d warning(s)%s: %s", len(warnings), suffix, strings.Join(warnings, " "))
}

// PlanRead returns the stored plan text for the session's root, or the
// no-plan sentinel when none exists yet.
func (h *Hooks) PlanRead(ctx context.Context, sessionID string) (string, error) {
	rootID, err := session.ResolveRoot(ctx, h.Sessions, sessionID)
	if err != nil {
		return "", err
	}
	projectID, err := identity.ResolveProject(ctx, h.ProjectRoot, h.Warn)
	if err != nil {
		return "", err
	}
	text, err := h.Store.Read(projectID, rootID)
	if err != nil {
		if stderrors.Is(err, planstore.ErrNoPlan) {
			return planstore.NoPlanSentinel, nil
		}
		return "", err
	}
	return text, nil
}

// CompactionContext re-reads and re-validates the plan when the host compacts
// a session, returning the context block to re-inject. An absent plan is a
// silent no-op (empty block, nil error).
func (h *Hooks) CompactionContext(ctx context.Context, sessionID string) (string, error) {
	rootID, err := session.ResolveRoot(ctx, h.Sessions, sessionID)
	if err != nil {
		return "", err
	}
	projectID, err := identity.ResolveProject(ctx, h.ProjectRoot, h.Warn)
	if err != nil {
		return "", err
	}
	text, err := h.Store.Read(projectID, rootID)
	if err != nil {
		if stderrors.Is(err, planstore.ErrNoPlan) {
			return "", nil
		}
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("## Active plan (restored across compaction)\n\n")

	result := planschema.Validate(text)
	if result.OK {
		if digest, digestErr := planschema.Digest(result.Plan); digestErr == nil {
			fmt.Fprintf(&builder, "Plan digest: %s\n\n", digest[:12])
		}
	} else {
		h.warn("stored plan for session %s no longer validates: %s", rootID, result.Error)
		builder.WriteString("Note: the stored plan no longer passes validation; fix it with plan_save.\n\n")
	}

	builder.WriteString(text)

	if resume := resumePoint(text); resume != "" {
		builder.WriteString("\n\nResume point (text around the current-task marker):\n")
		builder.WriteString("…" + resume + "…")
	}
	return builder.String(), nil
}

// resumePoint extracts a proximity window around the current-task marker so
// the agent can re-anchor after compaction without re-reading the whole plan.
// The window is counted in runes so multi-byte text is never split mid-rune.
func resumePoint(text string) string {
	index := strings.Index(text, planmd.CurrentMarker)
	if index < 0 {
		return ""
	}
	start := index
	for count := 0; count < resumeWindowBefore && start > 0; count++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := index + len(planmd.CurrentMarker)
	for count := 0; count < resumeWindowAfter && end < len(text); count++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return strings.TrimSpace(text[start:end])
}
