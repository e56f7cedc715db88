package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simone-weiss/ankaios/internal/wire"
)

// ServerConfig is the configuration surface of cmd/ank-server.
type ServerConfig struct {
	ListenAddr   string       `yaml:"listen_addr"`
	StartupState string       `yaml:"startup_state"`
	Database     DatabaseConfig `yaml:"database"`
	Logging      LoggingConfig  `yaml:"logging"`
}

// AgentConfig is the configuration surface of cmd/ank-agent.
type AgentConfig struct {
	AgentName  string      `yaml:"agent_name"`
	ServerAddr string      `yaml:"server_addr"`
	LogDir     string      `yaml:"log_dir"`
	Backoff    BackoffConfig `yaml:"backoff"`
	Logging    LoggingConfig `yaml:"logging"`
}

// BackoffConfig is the retry schedule for cmd/ank-agent's own reconnect
// loop against the server: base 1s, cap 30s, and the backoff resets to
// Base once a connection has stayed up for ResetAfter. This is separate
// from (and configurable, unlike) the Agent Scheduler's own restart
// backoff, whose base/cap/reset values spec §4.6/§9 fixes in code.
type BackoffConfig struct {
	BaseRaw   string `yaml:"base"`
	CapRaw    string `yaml:"cap"`
	ResetRaw  string `yaml:"reset_after"`
	Base      time.Duration `yaml:"-"`
	Cap       time.Duration `yaml:"-"`
	ResetAfter time.Duration `yaml:"-"`
}

// DatabaseConfig points at the audit log's SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls slog's handler and level.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the environment variable's
// value, or the empty string if unset.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func readExpanded(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return []byte(expandEnvVars(string(data))), nil
}

// LoadServer reads and strictly decodes a server config file, expanding
// ${VAR} environment references first.
func LoadServer(path string) (*ServerConfig, error) {
	data, err := readExpanded(path)
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen_addr is required")
	}
	if cfg.StartupState == "" {
		return nil, fmt.Errorf("startup_state is required")
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database.path is required")
	}
	return &cfg, nil
}

// LoadAgent reads and strictly decodes an agent config file, expanding
// ${VAR} environment references first.
func LoadAgent(path string) (*AgentConfig, error) {
	data, err := readExpanded(path)
	if err != nil {
		return nil, err
	}

	var cfg AgentConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.AgentName == "" {
		return nil, fmt.Errorf("agent_name is required")
	}
	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server_addr is required")
	}
	if err := parseBackoff(&cfg.Backoff); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

// LoadStartupState reads and strictly decodes the structured text document
// that materializes a server's startup State, expanding ${VAR} environment
// references first. Unknown keys are rejected, matching LoadServer and
// LoadAgent's decode strictness.
func LoadStartupState(path string) (*wire.State, error) {
	data, err := readExpanded(path)
	if err != nil {
		return nil, err
	}

	st := wire.NewState()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(st); err != nil {
		return nil, fmt.Errorf("parsing startup state file: %w", err)
	}
	return st, nil
}

func parseBackoff(b *BackoffConfig) error {
	b.Base = 1 * time.Second
	b.Cap = 30 * time.Second
	b.ResetAfter = 1 * time.Minute

	var err error
	if b.BaseRaw != "" {
		if b.Base, err = time.ParseDuration(b.BaseRaw); err != nil {
			return fmt.Errorf("parsing backoff.base %q: %w", b.BaseRaw, err)
		}
	}
	if b.CapRaw != "" {
		if b.Cap, err = time.ParseDuration(b.CapRaw); err != nil {
			return fmt.Errorf("parsing backoff.cap %q: %w", b.CapRaw, err)
		}
	}
	if b.ResetRaw != "" {
		if b.ResetAfter, err = time.ParseDuration(b.ResetRaw); err != nil {
			return fmt.Errorf("parsing backoff.reset_after %q: %w", b.ResetRaw, err)
		}
	}
	return nil
}
