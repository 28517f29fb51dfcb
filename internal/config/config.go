// Package config loads the application configuration: defaults, JSON5 file
// overlay, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/agentchat/internal/store"
	"github.com/nextlevelbuilder/agentchat/internal/tracing"
)

// ContextConfig tunes per-turn context materialization.
type ContextConfig struct {
	Window          int `json:"window,omitempty"`
	MaxSiblings     int `json:"maxSiblings,omitempty"`
	SiblingMaxRunes int `json:"siblingMaxRunes,omitempty"`
	MaxBytes        int `json:"maxBytes,omitempty"`
}

// QueueConfig tunes routing queue protection limits.
type QueueConfig struct {
	MaxQueueSize  int `json:"maxQueueSize,omitempty"`
	MaxBranchSize int `json:"maxBranchSize,omitempty"`
	MaxLocalSeq   int `json:"maxLocalSeq,omitempty"`
}

// RunnerConfig tunes agent process execution.
type RunnerConfig struct {
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
	WorkDir        string `json:"workDir,omitempty"`
}

// SessionConfig names the team document and governance knobs.
type SessionConfig struct {
	TeamFile       string  `json:"teamFile,omitempty"`
	MaxRounds      int     `json:"maxRounds,omitempty"`
	TurnsPerMinute float64 `json:"turnsPerMinute,omitempty"`
}

// Config is the whole application configuration.
type Config struct {
	Session SessionConfig  `json:"session"`
	Context ContextConfig  `json:"context"`
	Queue   QueueConfig    `json:"queue"`
	Runner  RunnerConfig   `json:"runner"`
	Store   store.Config   `json:"store"`
	Tracing tracing.Config `json:"tracing"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			TeamFile: "team.json",
		},
		Runner: RunnerConfig{
			TimeoutSeconds: 300,
		},
		Store: store.Config{
			Backend: store.BackendFile,
			Dir:     "~/.agentchat/snapshots",
			Path:    "~/.agentchat/agentchat.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.expandPaths()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env wins over file.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("AGENTCHAT_TEAM_FILE", &c.Session.TeamFile)
	envInt("AGENTCHAT_MAX_ROUNDS", &c.Session.MaxRounds)
	envInt("AGENTCHAT_TURN_TIMEOUT", &c.Runner.TimeoutSeconds)
	envStr("AGENTCHAT_WORKDIR", &c.Runner.WorkDir)
	envStr("AGENTCHAT_STORE_BACKEND", &c.Store.Backend)
	envStr("AGENTCHAT_STORE_DIR", &c.Store.Dir)
	envStr("AGENTCHAT_STORE_PATH", &c.Store.Path)
	envStr("AGENTCHAT_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if os.Getenv("AGENTCHAT_OTLP_ENDPOINT") != "" {
		c.Tracing.Enabled = true
	}
}

func (c *Config) expandPaths() {
	c.Store.Dir = ExpandHome(c.Store.Dir)
	c.Store.Path = ExpandHome(c.Store.Path)
	c.Runner.WorkDir = ExpandHome(c.Runner.WorkDir)
	c.Session.TeamFile = ExpandHome(c.Session.TeamFile)
}

// TurnTimeout returns the per-turn cap as a duration.
func (c *Config) TurnTimeout() time.Duration {
	if c.Runner.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Runner.TimeoutSeconds) * time.Second
}

// ProxyEnv collects the proxy variables to inject unchanged into spawned
// agents. Empty when none are set.
func ProxyEnv() map[string]string {
	out := map[string]string{}
	for _, key := range []string{"https_proxy", "HTTPS_PROXY", "http_proxy", "HTTP_PROXY"} {
		if v := os.Getenv(key); v != "" {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
