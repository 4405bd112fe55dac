// Package session resolves a host session to the root ancestor of its parent
// chain. One plan file exists per (project, root session), so every operation
// that touches the store resolves the root first.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidahmann/plankeep/core/errors"
)

// MaxParentDepth bounds parent-chain traversal. A chain deeper than this
// indicates a corrupted or cyclic session graph and is never silently
// accepted.
const MaxParentDepth = 10

// Session is the host's view of a session: an opaque id plus an optional
// parent id forming a tree.
type Session struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
}

// Source supplies session metadata. The host runtime is the production
// implementation; tests substitute in-memory fakes.
type Source interface {
	Lookup(ctx context.Context, id string) (Session, error)
}

// ResolveRoot follows parent links from id until a session without a parent
// is found, failing fast on a missing id and hard on chains deeper than
// MaxParentDepth.
func ResolveRoot(ctx context.Context, source Source, id string) (string, error) {
	current := strings.TrimSpace(id)
	if current == "" {
		return "", errors.Wrap(
			fmt.Errorf("session id is required"),
			errors.CategorySessionResolution, "session_id_missing",
			"invoke plan operations from an active host session", false,
		)
	}
	for depth := 0; depth < MaxParentDepth; depth++ {
		record, err := source.Lookup(ctx, current)
		if err != nil {
			return "", errors.Wrap(
				fmt.Errorf("look up session %s: %w", current, err),
				errors.CategorySessionResolution, "session_lookup_failed",
				"confirm the host session store is reachable", true,
			)
		}
		parent := strings.TrimSpace(record.ParentID)
		if parent == "" {
			return current, nil
		}
		current = parent
	}
	return "", errors.Wrap(
		fmt.Errorf("session parent chain exceeds depth %d starting from %s", MaxParentDepth, strings.TrimSpace(id)),
		errors.CategorySessionResolution, "session_chain_too_deep",
		"inspect the host session graph for cycles", false,
	)
}
