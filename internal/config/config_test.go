package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simone-weiss/ankaios/internal/wire"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadServer_Valid(t *testing.T) {
	path := writeConfig(t, `
listen_addr: "0.0.0.0:25551"
startup_state: "./startup.yaml"
database:
  path: "./audit.db"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:25551", cfg.ListenAddr)
	require.Equal(t, "./startup.yaml", cfg.StartupState)
	require.Equal(t, "./audit.db", cfg.Database.Path)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadServer_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing listen_addr", `
startup_state: "./startup.yaml"
database:
  path: "./audit.db"
`, "listen_addr is required"},
		{"missing startup_state", `
listen_addr: "0.0.0.0:25551"
database:
  path: "./audit.db"
`, "startup_state is required"},
		{"missing database path", `
listen_addr: "0.0.0.0:25551"
startup_state: "./startup.yaml"
`, "database.path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadServer(path)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadServer_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, `
listen_addr: "0.0.0.0:25551"
startup_state: "./startup.yaml"
database:
  path: "./audit.db"
totally_unknown_field: true
`)
	_, err := LoadServer(path)
	require.Error(t, err)
}

func TestLoadServer_MissingFile(t *testing.T) {
	_, err := LoadServer("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestLoadAgent_Valid(t *testing.T) {
	path := writeConfig(t, `
agent_name: "agent_A"
server_addr: "127.0.0.1:25551"
log_dir: "/tmp/ank-agent-logs"
backoff:
  base: "2s"
  cap: "1m"
  reset_after: "5m"
`)

	cfg, err := LoadAgent(path)
	require.NoError(t, err)
	require.Equal(t, "agent_A", cfg.AgentName)
	require.Equal(t, "127.0.0.1:25551", cfg.ServerAddr)
	require.Equal(t, 2*time.Second, cfg.Backoff.Base)
	require.Equal(t, 1*time.Minute, cfg.Backoff.Cap)
	require.Equal(t, 5*time.Minute, cfg.Backoff.ResetAfter)
}

func TestLoadAgent_DefaultBackoff(t *testing.T) {
	path := writeConfig(t, `
agent_name: "agent_A"
server_addr: "127.0.0.1:25551"
`)

	cfg, err := LoadAgent(path)
	require.NoError(t, err)
	require.Equal(t, 1*time.Second, cfg.Backoff.Base)
	require.Equal(t, 30*time.Second, cfg.Backoff.Cap)
	require.Equal(t, 1*time.Minute, cfg.Backoff.ResetAfter)
}

func TestLoadAgent_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
server_addr: "127.0.0.1:25551"
`)
	_, err := LoadAgent(path)
	require.ErrorContains(t, err, "agent_name is required")
}

func TestLoadAgent_InvalidBackoffDuration(t *testing.T) {
	path := writeConfig(t, `
agent_name: "agent_A"
server_addr: "127.0.0.1:25551"
backoff:
  base: "not-a-duration"
`)
	_, err := LoadAgent(path)
	require.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ANK_TEST_VAR", "expanded")

	require.Equal(t, "expanded", expandEnvVars("${ANK_TEST_VAR}"))
	require.Equal(t, "prefix-expanded-suffix", expandEnvVars("prefix-${ANK_TEST_VAR}-suffix"))
	require.Equal(t, "", expandEnvVars("${ANK_TEST_UNSET_VAR}"))
	require.Equal(t, "no-vars-here", expandEnvVars("no-vars-here"))
}

func TestLoadServer_EnvVarExpansion(t *testing.T) {
	t.Setenv("ANK_DB_PATH", "/var/lib/ankaios/audit.db")

	path := writeConfig(t, `
listen_addr: "0.0.0.0:25551"
startup_state: "./startup.yaml"
database:
  path: "${ANK_DB_PATH}"
`)

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/ankaios/audit.db", cfg.Database.Path)
}

func TestLoadStartupState_Valid(t *testing.T) {
	path := writeConfig(t, `
workloads:
  nginx:
    agent: agent_A
    runtime: podman
    runtimeConfig: "image: nginx"
    updateStrategy: AT_MOST_ONCE
  hello:
    agent: agent_A
    runtime: podman
    runtimeConfig: "image: hello"
    dependencies:
      nginx: ADD_COND_RUNNING
configs:
  greeting: "hello world"
cronjobs:
  nightly:
    workload: hello
    schedule: "0 0 * * *"
`)

	st, err := LoadStartupState(path)
	require.NoError(t, err)
	require.Len(t, st.Workloads, 2)
	require.Equal(t, wire.UpdateStrategyAtMostOnce, st.Workloads["nginx"].UpdateStrategy)
	require.Equal(t, wire.AddCondRunning, st.Workloads["hello"].Dependencies["nginx"])
	require.Equal(t, "hello world", st.Configs["greeting"])
	require.Equal(t, "hello", st.Cronjobs["nightly"].Workload)
}

func TestLoadStartupState_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, `
workloads:
  nginx:
    agent: agent_A
    runtime: podman
    runtimeConfig: "image: nginx"
    bogusField: true
`)

	_, err := LoadStartupState(path)
	require.Error(t, err)
}

func TestLoadStartupState_EnvVarExpansion(t *testing.T) {
	t.Setenv("ANK_IMAGE_TAG", "1.27")

	path := writeConfig(t, `
workloads:
  nginx:
    agent: agent_A
    runtime: podman
    runtimeConfig: "image: nginx:${ANK_IMAGE_TAG}"
`)

	st, err := LoadStartupState(path)
	require.NoError(t, err)
	require.Equal(t, "image: nginx:1.27", st.Workloads["nginx"].RuntimeConfig)
}
