package projectconfig

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/davidahmann/plankeep/internal/testutil"
)

func TestLoadFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	testutil.WriteFile(t, path, []byte(`
workspace:
  data_dir: "  /var/lib/plankeep  "
sessions:
  dir: /srv/host/sessions
hooks:
  delegate_tool: task
  delegate_role: implementer
  stale_call_ttl: 15m
  sweep_interval: 1m
mcp_serve:
  listen: 127.0.0.1:8765
  auth_mode: TOKEN
  auth_token_env: PLANKEEP_TOKEN
  max_request_bytes: 65536
`))

	configuration, err := Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if configuration.Workspace.DataDir != "/var/lib/plankeep" {
		t.Fatalf("expected trimmed data dir, got %q", configuration.Workspace.DataDir)
	}
	if configuration.Hooks.DelegateTool != "task" || configuration.Hooks.DelegateRole != "implementer" {
		t.Fatalf("unexpected hook defaults: %+v", configuration.Hooks)
	}
	if configuration.MCPServe.AuthMode != "token" {
		t.Fatalf("expected lowercased auth mode, got %q", configuration.MCPServe.AuthMode)
	}
	ttl, err := configuration.StaleCallTTL()
	if err != nil || ttl != 15*time.Minute {
		t.Fatalf("unexpected ttl: %v %v", ttl, err)
	}
	interval, err := configuration.SweepInterval()
	if err != nil || interval != time.Minute {
		t.Fatalf("unexpected interval: %v %v", interval, err)
	}
}

func TestLoadMissingConfigAllowed(t *testing.T) {
	configuration, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("expected zero config for missing file, got %v", err)
	}
	if configuration != (Config{}) {
		t.Fatalf("expected zero config, got %+v", configuration)
	}
}

func TestLoadMissingConfigRejectedWhenRequired(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Fatal("expected error for required missing config")
	}
}

func TestLoadEmptyPathRejected(t *testing.T) {
	if _, err := Load("  ", true); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	testutil.WriteFile(t, path, []byte("workspace: [not, a, mapping\n"))
	if _, err := Load(path, true); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationParsing(t *testing.T) {
	configuration := Config{Hooks: HookDefaults{StaleCallTTL: "not-a-duration"}}
	if _, err := configuration.StaleCallTTL(); err == nil {
		t.Fatal("expected duration parse error")
	}
	configuration = Config{Hooks: HookDefaults{StaleCallTTL: "-5m"}}
	if _, err := configuration.StaleCallTTL(); err == nil {
		t.Fatal("expected rejection of negative duration")
	}
	configuration = Config{}
	ttl, err := configuration.StaleCallTTL()
	if err != nil || ttl != 0 {
		t.Fatalf("expected zero ttl for unset value, got %v %v", ttl, err)
	}
}
