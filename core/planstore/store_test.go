package planstore

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteThenReadRoundTripsExactBytes(t *testing.T) {
	store := Store{BaseDir: t.TempDir()}
	text := "---\nstatus: in-progress\nphase: 1\nupdated: 2025-01-01\n---\n## Goal\nShip it  \n"

	if err := store.Write("abcd1234abcd1234", "session-1", text); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Read("abcd1234abcd1234", "session-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != text {
		t.Fatalf("round trip mutated content:\nwrote %q\nread  %q", text, got)
	}
}

func TestReadMissingPlanReturnsSentinelError(t *testing.T) {
	store := Store{BaseDir: t.TempDir()}
	_, err := store.Read("abcd1234abcd1234", "session-1")
	if !stderrors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
}

func TestWriteReplacesWholeFile(t *testing.T) {
	store := Store{BaseDir: t.TempDir()}
	if err := store.Write("p", "s", "first version with plenty of text\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write("p", "s", "v2\n"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err := store.Read("p", "s")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "v2\n" {
		t.Fatalf("expected full replacement, got %q", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	store := Store{BaseDir: t.TempDir()}
	if err := store.Write("p", "s", "content\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(store.BaseDir, "p", "s"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != FileName {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestPlanPathLayout(t *testing.T) {
	store := Store{BaseDir: "/base"}
	expected := filepath.Join("/base", "proj", "root-session", "plan.md")
	if got := store.PlanPath("proj", "root-session"); got != expected {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestDefaultBaseDirHonorsXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := DefaultBaseDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-data", "plankeep", "workspace") {
		t.Fatalf("unexpected default dir: %s", dir)
	}
}
