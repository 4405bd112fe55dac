// Package projectconfig loads optional per-project defaults for plankeep
// from .plankeep/config.yaml at the project root.
package projectconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const DefaultPath = ".plankeep/config.yaml"

type Config struct {
	Workspace WorkspaceDefaults `yaml:"workspace"`
	Sessions  SessionDefaults   `yaml:"sessions"`
	Hooks     HookDefaults      `yaml:"hooks"`
	MCPServe  MCPServeDefaults  `yaml:"mcp_serve"`
}

type WorkspaceDefaults struct {
	// DataDir overrides the XDG data directory for plan files.
	DataDir string `yaml:"data_dir"`
}

type SessionDefaults struct {
	// Dir points at the host's on-disk session records.
	Dir string `yaml:"dir"`
}

type HookDefaults struct {
	DelegateTool  string `yaml:"delegate_tool"`
	DelegateRole  string `yaml:"delegate_role"`
	StaleCallTTL  string `yaml:"stale_call_ttl"`
	SweepInterval string `yaml:"sweep_interval"`
}

type MCPServeDefaults struct {
	Listen          string `yaml:"listen"`
	AuthMode        string `yaml:"auth_mode"`
	AuthTokenEnv    string `yaml:"auth_token_env"`
	MaxRequestBytes int64  `yaml:"max_request_bytes"`
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	return configuration, nil
}

func (configuration *Config) normalize() {
	configuration.Workspace.DataDir = strings.TrimSpace(configuration.Workspace.DataDir)
	configuration.Sessions.Dir = strings.TrimSpace(configuration.Sessions.Dir)
	configuration.Hooks.DelegateTool = strings.TrimSpace(configuration.Hooks.DelegateTool)
	configuration.Hooks.DelegateRole = strings.TrimSpace(configuration.Hooks.DelegateRole)
	configuration.Hooks.StaleCallTTL = strings.TrimSpace(configuration.Hooks.StaleCallTTL)
	configuration.Hooks.SweepInterval = strings.TrimSpace(configuration.Hooks.SweepInterval)
	configuration.MCPServe.Listen = strings.TrimSpace(configuration.MCPServe.Listen)
	configuration.MCPServe.AuthMode = strings.ToLower(strings.TrimSpace(configuration.MCPServe.AuthMode))
	configuration.MCPServe.AuthTokenEnv = strings.TrimSpace(configuration.MCPServe.AuthTokenEnv)
}

// StaleCallTTL parses the configured tracker TTL, returning 0 (use the
// built-in default) when unset.
func (configuration Config) StaleCallTTL() (time.Duration, error) {
	return parseOptionalDuration(configuration.Hooks.StaleCallTTL)
}

// SweepInterval parses the configured sweep interval, returning 0 (use the
// built-in default) when unset.
func (configuration Config) SweepInterval() (time.Duration, error) {
	return parseOptionalDuration(configuration.Hooks.SweepInterval)
}

func parseOptionalDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if parsed < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return parsed, nil
}
