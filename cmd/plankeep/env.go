package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/davidahmann/plankeep/core/calltrack"
	"github.com/davidahmann/plankeep/core/hooks"
	"github.com/davidahmann/plankeep/core/planstore"
	"github.com/davidahmann/plankeep/core/projectconfig"
	"github.com/davidahmann/plankeep/core/session"
)

// runtimeEnv assembles the collaborators every command needs: per-project
// configuration plus a wired hooks facade.
type runtimeEnv struct {
	projectRoot string
	config      projectconfig.Config
	hooks       *hooks.Hooks
}

// newRuntimeEnv resolves the project root (defaulting to the working
// directory), loads optional .plankeep/config.yaml, and wires the hooks
// facade. Diagnostics go to stderr so they never pollute JSON stdout.
func newRuntimeEnv(projectRoot string) (*runtimeEnv, error) {
	if projectRoot == "" {
		workingDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		projectRoot = workingDir
	}

	configuration, err := projectconfig.Load(filepath.Join(projectRoot, projectconfig.DefaultPath), true)
	if err != nil {
		return nil, err
	}

	baseDir := configuration.Workspace.DataDir
	if baseDir == "" {
		baseDir, err = planstore.DefaultBaseDir()
		if err != nil {
			return nil, err
		}
	}

	sessionDir := configuration.Sessions.Dir
	if sessionDir == "" {
		// Sibling of the workspace directory by default.
		sessionDir = filepath.Join(filepath.Dir(baseDir), "sessions")
	}

	staleTTL, err := configuration.StaleCallTTL()
	if err != nil {
		return nil, fmt.Errorf("hooks.stale_call_ttl: %w", err)
	}

	warn := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "plankeep: "+format+"\n", args...)
	}

	return &runtimeEnv{
		projectRoot: projectRoot,
		config:      configuration,
		hooks: &hooks.Hooks{
			Store:        planstore.Store{BaseDir: baseDir},
			Sessions:     session.DirSource{Dir: sessionDir},
			Tracker:      calltrack.New(staleTTL, nil),
			ProjectRoot:  projectRoot,
			DelegateTool: configuration.Hooks.DelegateTool,
			DelegateRole: configuration.Hooks.DelegateRole,
			Warn:         warn,
		},
	}, nil
}
