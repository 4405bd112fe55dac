// Package planstore persists plan markdown, one file per (project identity,
// root session) pair. The raw text is the canonical representation; writes
// replace the whole file atomically and reads return the exact bytes written.
package planstore

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davidahmann/plankeep/core/errors"
)

const (
	// FileName is the plan file within a session directory.
	FileName = "plan.md"

	// NoPlanSentinel is the literal text surfaced to agents when no plan
	// exists for the resolved session.
	NoPlanSentinel = "No plan found."
)

// ErrNoPlan reports the normal, expected absence of a plan file. Callers map
// it to NoPlanSentinel or a silent no-op; every other read error propagates.
var ErrNoPlan = stderrors.New("no plan found")

// Store scopes plan files under a base directory.
type Store struct {
	BaseDir string
}

// DefaultBaseDir is `$XDG_DATA_HOME/plankeep/workspace`, falling back to
// `~/.local/share/plankeep/workspace`.
func DefaultBaseDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "plankeep", "workspace"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(
			fmt.Errorf("resolve home directory: %w", err),
			errors.CategoryIOFailure, "home_dir_unresolvable",
			"set HOME or XDG_DATA_HOME", false,
		)
	}
	return filepath.Join(home, ".local", "share", "plankeep", "workspace"), nil
}

// PlanPath returns the path of the plan file for a project and root session.
func (s Store) PlanPath(projectIdentity, rootSessionID string) string {
	return filepath.Join(s.BaseDir, projectIdentity, rootSessionID, FileName)
}

// Write persists validated plan text, creating the session directory when
// absent. The file is replaced atomically; last write wins by design since
// each root session has a single writer.
func (s Store) Write(projectIdentity, rootSessionID, planText string) error {
	path := s.PlanPath(projectIdentity, rootSessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(
			fmt.Errorf("create plan directory: %w", err),
			errors.CategoryIOFailure, "plan_dir_create_failed",
			"check permissions on the plankeep data directory", true,
		)
	}
	if err := writeFileAtomic(path, []byte(planText), 0o600); err != nil {
		return errors.Wrap(
			fmt.Errorf("write plan file: %w", err),
			errors.CategoryIOFailure, "plan_write_failed",
			"check free space and permissions on the plankeep data directory", true,
		)
	}
	return nil
}

// Read returns the stored plan text, ErrNoPlan when the file does not exist,
// and a wrapped io_failure for anything else.
func (s Store) Read(projectIdentity, rootSessionID string) (string, error) {
	path := s.PlanPath(projectIdentity, rootSessionID)
	content, err := os.ReadFile(path) // #nosec G304 -- path is derived from validated identity tokens under BaseDir.
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoPlan
		}
		return "", errors.Wrap(
			fmt.Errorf("read plan file: %w", err),
			errors.CategoryIOFailure, "plan_read_failed",
			"check permissions on the plankeep data directory", true,
		)
	}
	return string(content), nil
}

// writeFileAtomic stages content in a sibling temp file and renames it over
// the destination so readers never observe a partial plan.
func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	tempFile, err := os.CreateTemp(parent, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(content); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}
