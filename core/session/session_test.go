package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/plankeep/core/errors"
	"github.com/davidahmann/plankeep/internal/testutil"
)

type mapSource map[string]Session

func (m mapSource) Lookup(_ context.Context, id string) (Session, error) {
	record, ok := m[id]
	if !ok {
		return Session{}, fmt.Errorf("unknown session %s", id)
	}
	return record, nil
}

// chain builds sessions s0 <- s1 <- ... <- s(n-1) where s0 is the root.
func chain(length int) (mapSource, string) {
	source := mapSource{}
	for index := 0; index < length; index++ {
		id := fmt.Sprintf("s%d", index)
		record := Session{ID: id}
		if index > 0 {
			record.ParentID = fmt.Sprintf("s%d", index-1)
		}
		source[id] = record
	}
	return source, fmt.Sprintf("s%d", length-1)
}

func TestResolveRootSingleSession(t *testing.T) {
	source := mapSource{"solo": {ID: "solo"}}
	root, err := ResolveRoot(context.Background(), source, "solo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != "solo" {
		t.Fatalf("unexpected root: %s", root)
	}
}

func TestResolveRootNineAncestors(t *testing.T) {
	source, leaf := chain(10) // 9 parent hops from the leaf
	root, err := ResolveRoot(context.Background(), source, leaf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != "s0" {
		t.Fatalf("expected topmost session, got %s", root)
	}
}

func TestResolveRootDepthExceeded(t *testing.T) {
	source, leaf := chain(12) // 11 parent hops, beyond the bound
	_, err := ResolveRoot(context.Background(), source, leaf)
	if err == nil {
		t.Fatal("expected depth-exceeded error")
	}
	if !strings.Contains(err.Error(), "exceeds depth 10") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if errors.CategoryOf(err) != errors.CategorySessionResolution {
		t.Fatalf("unexpected category: %s", errors.CategoryOf(err))
	}
}

func TestResolveRootCycleHitsDepthBound(t *testing.T) {
	source := mapSource{
		"a": {ID: "a", ParentID: "b"},
		"b": {ID: "b", ParentID: "a"},
	}
	_, err := ResolveRoot(context.Background(), source, "a")
	if err == nil {
		t.Fatal("expected error for cyclic parent chain")
	}
}

func TestResolveRootMissingID(t *testing.T) {
	_, err := ResolveRoot(context.Background(), mapSource{}, "   ")
	if err == nil {
		t.Fatal("expected error for blank session id")
	}
	if errors.CodeOf(err) != "session_id_missing" {
		t.Fatalf("unexpected code: %s", errors.CodeOf(err))
	}
	if errors.HintOf(err) == "" {
		t.Fatal("expected a hint")
	}
}

func TestResolveRootLookupFailure(t *testing.T) {
	source := mapSource{"child": {ID: "child", ParentID: "ghost"}}
	_, err := ResolveRoot(context.Background(), source, "child")
	if err == nil {
		t.Fatal("expected error when a parent lookup fails")
	}
	if errors.CodeOf(err) != "session_lookup_failed" {
		t.Fatalf("unexpected code: %s", errors.CodeOf(err))
	}
}

func TestDirSourceLookup(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "child.json"), []byte(`{"id":"child","parent_id":"root"}`))
	testutil.WriteFile(t, filepath.Join(dir, "root.json"), []byte(`{"id":"root"}`))

	source := DirSource{Dir: dir}
	record, err := source.Lookup(context.Background(), "child")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ParentID != "root" {
		t.Fatalf("unexpected parent: %+v", record)
	}

	root, err := ResolveRoot(context.Background(), source, "child")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != "root" {
		t.Fatalf("unexpected root: %s", root)
	}
}

func TestDirSourceRejectsPathTraversal(t *testing.T) {
	source := DirSource{Dir: t.TempDir()}
	if _, err := source.Lookup(context.Background(), "../escape"); err == nil {
		t.Fatal("expected rejection of traversal-shaped session id")
	}
}

func TestDirSourceMissingRecord(t *testing.T) {
	source := DirSource{Dir: t.TempDir()}
	if _, err := source.Lookup(context.Background(), "absent"); err == nil {
		t.Fatal("expected error for missing session record")
	}
}
