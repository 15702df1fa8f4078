// ABOUTME: Tests for configuration loading, env expansion, and validation
// ABOUTME: Uses temp files to exercise the YAML parsing path end to end

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/vireon.db"
auth:
  jwt_secret: "test-secret"
  token_ttl: "12h"
bots:
  command_prefix: "?"
  connect_timeout: "10s"
  nodes:
    - alpha
    - beta
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("http_addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Bots.CommandPrefix != "?" {
		t.Errorf("command_prefix = %q", cfg.Bots.CommandPrefix)
	}
	if cfg.Bots.ConnectTimeout != 10*time.Second {
		t.Errorf("connect_timeout = %v", cfg.Bots.ConnectTimeout)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("token_ttl = %v", cfg.Auth.TokenTTL)
	}
	if len(cfg.Bots.Nodes) != 2 || cfg.Bots.Nodes[0] != "alpha" {
		t.Errorf("nodes = %v", cfg.Bots.Nodes)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/vireon.db"
auth:
  jwt_secret: "test-secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Bots.CommandPrefix != DefaultCommandPrefix {
		t.Errorf("command_prefix = %q, want default", cfg.Bots.CommandPrefix)
	}
	if cfg.Bots.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("connect_timeout = %v, want default", cfg.Bots.ConnectTimeout)
	}
	if cfg.Bots.RestoreRetryInterval != DefaultRestoreRetryInterval {
		t.Errorf("restore_retry_interval = %v, want default", cfg.Bots.RestoreRetryInterval)
	}
	if len(cfg.Bots.Nodes) != len(DefaultNodes) {
		t.Errorf("nodes = %v, want defaults", cfg.Bots.Nodes)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("VIREON_TEST_SECRET", "from-env")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/vireon.db"
auth:
  jwt_secret: "${VIREON_TEST_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("jwt_secret = %q, want expanded env value", cfg.Auth.JWTSecret)
	}
}

func TestLoadDisabledRetry(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/vireon.db"
auth:
  jwt_secret: "s"
bots:
  restore_retry_interval: "0s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bots.RestoreRetryInterval != 0 {
		t.Errorf("restore_retry_interval = %v, want 0 (disabled)", cfg.Bots.RestoreRetryInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: "/tmp/vireon.db"
auth:
  jwt_secret: "s"
`,
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: ":8080"
auth:
  jwt_secret: "s"
`,
		},
		{
			name: "missing jwt secret",
			content: `
server:
  http_addr: ":8080"
database:
  path: "/tmp/vireon.db"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/vireon.db"
auth:
  jwt_secret: "s"
bots:
  connect_timeout: "not-a-duration"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected duration parse error, got nil")
	}
}
