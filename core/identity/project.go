// Package identity derives the stable project token that scopes persisted
// plan state. Git-rooted projects are identified by the lexicographically
// smallest parentless commit of the repository; everything else falls back to
// a truncated digest of the project root path.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/davidahmann/plankeep/core/errors"
)

const (
	// CacheFileName holds the derived identity inside the git common
	// directory so repeated invocations skip the rev-list probe.
	CacheFileName = "plankeep-project-id"

	rootCommitTimeout = 5 * time.Second
)

var (
	identityShape   = regexp.MustCompile(`^([0-9a-f]{40}|[0-9a-f]{16})$`)
	fullCommitShape = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// Logf receives non-fatal resolution warnings. A nil sink discards them.
type Logf func(format string, args ...any)

// ResolveProject returns the identity token for projectRoot. Absent or broken
// repositories degrade to the path-hash fallback; the only hard error is a
// worktree indirection file whose resolved common directory does not exist,
// which indicates corrupted on-disk state rather than a missing repository.
func ResolveProject(ctx context.Context, projectRoot string, warn Logf) (string, error) {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	absoluteRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", errors.Wrap(
			fmt.Errorf("resolve project root %q: %w", projectRoot, err),
			errors.CategoryIdentityDerivation, "project_root_unresolvable",
			"pass an existing project directory", false,
		)
	}

	gitDir, err := locateGitDir(absoluteRoot)
	if err != nil {
		return "", err
	}
	if gitDir == "" {
		warn("no git metadata at %s; using path-hash project identity", absoluteRoot)
		return PathIdentity(absoluteRoot), nil
	}

	cachePath := filepath.Join(gitDir, CacheFileName)
	if cached, readErr := os.ReadFile(cachePath); readErr == nil { // #nosec G304 -- cache lives inside the resolved git directory.
		trimmed := strings.TrimSpace(string(cached))
		if identityShape.MatchString(trimmed) {
			return trimmed, nil
		}
		warn("ignoring malformed identity cache at %s", cachePath)
	}

	token := rootCommitIdentity(ctx, absoluteRoot, warn)
	if token == "" {
		token = PathIdentity(absoluteRoot)
	}
	if writeErr := os.WriteFile(cachePath, []byte(token+"\n"), 0o600); writeErr != nil {
		warn("could not cache project identity: %v", writeErr)
	}
	return token, nil
}

// PathIdentity is the non-repository fallback: sha256 over the cleaned
// absolute path, truncated to 16 hex characters.
func PathIdentity(absoluteRoot string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(absoluteRoot)))
	return hex.EncodeToString(sum[:])[:16]
}

// locateGitDir resolves the git metadata directory for a project root. It
// returns "" when the root carries no git metadata at all.
func locateGitDir(absoluteRoot string) (string, error) {
	gitPath := filepath.Join(absoluteRoot, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(
			fmt.Errorf("stat %s: %w", gitPath, err),
			errors.CategoryIOFailure, "git_metadata_unreadable",
			"check filesystem permissions on the project root", true,
		)
	}
	if info.IsDir() {
		return gitPath, nil
	}
	return resolveWorktreePointer(absoluteRoot, gitPath)
}

// resolveWorktreePointer follows a linked-worktree ".git" file to the shared
// common directory. This is the only resolution step allowed to fail hard: a
// pointer that resolves nowhere means the worktree state is corrupted.
func resolveWorktreePointer(absoluteRoot, gitFilePath string) (string, error) {
	content, err := os.ReadFile(gitFilePath) // #nosec G304 -- path is <projectRoot>/.git.
	if err != nil {
		return "", errors.Wrap(
			fmt.Errorf("read worktree pointer %s: %w", gitFilePath, err),
			errors.CategoryIOFailure, "worktree_pointer_unreadable",
			"check filesystem permissions on the project root", true,
		)
	}
	pointer := ""
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, found := strings.CutPrefix(trimmed, "gitdir:"); found {
			pointer = strings.TrimSpace(rest)
			break
		}
	}
	if pointer == "" {
		return "", errors.Wrap(
			fmt.Errorf("worktree pointer %s has no gitdir line", gitFilePath),
			errors.CategoryIdentityDerivation, "worktree_pointer_malformed",
			"repair or re-create the linked worktree", false,
		)
	}
	if !filepath.IsAbs(pointer) {
		pointer = filepath.Join(absoluteRoot, pointer)
	}

	commonDir := filepath.Dir(filepath.Dir(pointer))
	if raw, readErr := os.ReadFile(filepath.Join(pointer, "commondir")); readErr == nil { // #nosec G304 -- derived from the worktree pointer.
		candidate := strings.TrimSpace(string(raw))
		if candidate != "" {
			if !filepath.IsAbs(candidate) {
				candidate = filepath.Join(pointer, candidate)
			}
			commonDir = candidate
		}
	}
	commonDir = filepath.Clean(commonDir)

	info, err := os.Stat(commonDir)
	if err != nil || !info.IsDir() {
		return "", errors.Wrap(
			fmt.Errorf("worktree common directory %s is not a directory", commonDir),
			errors.CategoryIdentityDerivation, "worktree_common_dir_missing",
			"repair or re-create the linked worktree", false,
		)
	}
	return commonDir, nil
}

// rootCommitIdentity queries all parentless commits under a hard deadline and
// picks the lexicographically smallest hash so the choice is independent of
// ref enumeration order. Any failure returns "" so the caller falls back.
func rootCommitIdentity(ctx context.Context, absoluteRoot string, warn Logf) string {
	deadlineCtx, cancel := context.WithTimeout(ctx, rootCommitTimeout)
	defer cancel()

	// #nosec G204 -- fixed git invocation against the caller's project root.
	command := exec.CommandContext(deadlineCtx, "git", "-C", absoluteRoot, "rev-list", "--max-parents=0", "--all")
	output, err := command.Output()
	if deadlineCtx.Err() != nil {
		warn("root-commit query timed out after %s; using path-hash identity", rootCommitTimeout)
		return ""
	}
	if err != nil {
		warn("root-commit query failed (%v); using path-hash identity", err)
		return ""
	}

	hashes := make([]string, 0, 4)
	for _, line := range strings.Split(string(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !fullCommitShape.MatchString(trimmed) {
			warn("root-commit query returned unexpected output; using path-hash identity")
			return ""
		}
		hashes = append(hashes, trimmed)
	}
	if len(hashes) == 0 {
		warn("repository has no commits; using path-hash identity")
		return ""
	}
	sort.Strings(hashes)
	return hashes[0]
}
