package identity

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/davidahmann/plankeep/core/errors"
	"github.com/davidahmann/plankeep/internal/testutil"
)

func TestPathIdentityDeterministicAndShaped(t *testing.T) {
	root := t.TempDir()
	first := PathIdentity(root)
	second := PathIdentity(root)
	if first != second {
		t.Fatalf("expected deterministic path identity, got %s vs %s", first, second)
	}
	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(first) {
		t.Fatalf("unexpected fallback shape: %s", first)
	}
	if PathIdentity(filepath.Join(root, "other")) == first {
		t.Fatal("different roots must not collide")
	}
}

func TestResolveProjectWithoutRepositoryFallsBack(t *testing.T) {
	root := t.TempDir()
	var warned []string
	warn := func(format string, args ...any) { warned = append(warned, format) }

	token, err := ResolveProject(context.Background(), root, warn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != PathIdentity(mustAbs(t, root)) {
		t.Fatalf("expected path-hash identity, got %s", token)
	}
	if len(warned) == 0 {
		t.Fatal("expected a fallback warning")
	}
}

func TestResolveProjectTrustsWellFormedCache(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	cached := strings.Repeat("a", 40)
	testutil.WriteFile(t, filepath.Join(gitDir, CacheFileName), []byte(cached+"\n"))

	token, err := ResolveProject(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != cached {
		t.Fatalf("expected cached identity, got %s", token)
	}
}

func TestResolveProjectRegeneratesCorruptCache(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	cachePath := filepath.Join(gitDir, CacheFileName)
	testutil.WriteFile(t, cachePath, []byte("not-hex-content\n"))

	token, err := ResolveProject(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// rev-list fails on an empty metadata directory, so regeneration lands on
	// the path hash rather than accepting the corrupt cache.
	if token != PathIdentity(mustAbs(t, root)) {
		t.Fatalf("expected regenerated path-hash identity, got %s", token)
	}
	refreshed := string(testutil.MustReadFile(t, cachePath))
	if strings.TrimSpace(refreshed) != token {
		t.Fatalf("expected cache rewritten with %s, got %q", token, refreshed)
	}
}

func TestResolveProjectWorktreePointer(t *testing.T) {
	shared := t.TempDir()
	commonDir := filepath.Join(shared, "repo", ".git")
	worktreeGitDir := filepath.Join(commonDir, "worktrees", "feature")
	testutil.WriteFile(t, filepath.Join(worktreeGitDir, "commondir"), []byte("../..\n"))

	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, ".git"), []byte("gitdir: "+worktreeGitDir+"\n"))

	cached := strings.Repeat("b", 40)
	testutil.WriteFile(t, filepath.Join(commonDir, CacheFileName), []byte(cached+"\n"))

	token, err := ResolveProject(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != cached {
		t.Fatalf("expected identity from shared common directory cache, got %s", token)
	}
}

func TestResolveProjectMalformedWorktreePointerFailsHard(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, ".git"), []byte("gitdir: /nonexistent/worktrees/gone\n"))

	_, err := ResolveProject(context.Background(), root, nil)
	if err == nil {
		t.Fatal("expected hard error for dangling worktree pointer")
	}
	if errors.CategoryOf(err) != errors.CategoryIdentityDerivation {
		t.Fatalf("unexpected category: %s", errors.CategoryOf(err))
	}
}

func TestResolveProjectWorktreePointerWithoutGitdirLine(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, ".git"), []byte("nothing useful\n"))

	_, err := ResolveProject(context.Background(), root, nil)
	if err == nil {
		t.Fatal("expected hard error for pointer without gitdir line")
	}
}

func TestResolveProjectAgainstRealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	root := t.TempDir()
	runGit(t, root, "init")
	runGit(t, root, "config", "user.email", "test@example.com")
	runGit(t, root, "config", "user.name", "Test")
	testutil.WriteFile(t, filepath.Join(root, "README.md"), []byte("hello\n"))
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	first, err := ResolveProject(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{40}$`).MatchString(first) {
		t.Fatalf("expected full commit identity, got %s", first)
	}
	second, err := ResolveProject(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic identity, got %s vs %s", first, second)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...) // #nosec G204 -- fixed git invocations in tests.
	if out, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	absolute, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs %s: %v", path, err)
	}
	return absolute
}

func TestResolveProjectNilWarnSinkTolerated(t *testing.T) {
	if _, err := ResolveProject(context.Background(), t.TempDir(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
