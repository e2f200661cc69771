// Package config provides YAML-based configuration loading for weaver.
//
// Configuration lives at .weaver/config.yml inside a workspace. The
// file is optional: every field has a default, and a missing file
// yields a fully defaulted Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level weaver configuration, loaded from
// .weaver/config.yml.
type Config struct {
	IDPrefix     string          `yaml:"id_prefix"`
	DefaultModel string          `yaml:"default_model"`
	Sync         SyncConfig      `yaml:"sync"`
	Autopilot    AutopilotConfig `yaml:"autopilot"`
	Notify       NotifyConfig    `yaml:"notify"`
	Mirror       MirrorConfig    `yaml:"mirror"`
}

// SyncConfig holds git sync settings.
type SyncConfig struct {
	Branch string `yaml:"branch"`
}

// AutopilotConfig holds daemon scheduling settings.
type AutopilotConfig struct {
	PollInterval string `yaml:"poll_interval"`
	Schedule     string `yaml:"schedule"`
	MaxAgents    int    `yaml:"max_agents"`
}

// NotifyConfig holds settings for outbound notifications.
type NotifyConfig struct {
	Command string              `yaml:"command"`
	Slack   SlackNotifyConfig   `yaml:"slack"`
	Discord DiscordNotifyConfig `yaml:"discord"`
}

// SlackNotifyConfig configures the Slack notifier.
type SlackNotifyConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordNotifyConfig configures the Discord notifier.
type DiscordNotifyConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// MirrorConfig configures the GitHub issue mirror.
type MirrorConfig struct {
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	TokenEnv string `yaml:"token_env"`
	Label    string `yaml:"label"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Path returns the config file location for a workspace root.
func Path(root string) string {
	return filepath.Join(store.WeaverDir(root), "config.yml")
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated
// Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadWorkspace loads the config for a workspace root, falling back
// to defaults when no config file exists.
func LoadWorkspace(root string) (*Config, error) {
	cfg, err := Load(Path(root))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.IDPrefix == "" {
		c.IDPrefix = "wv"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = string(models.ModelSonnet)
	}
	if c.Sync.Branch == "" {
		c.Sync.Branch = "weaver-" + username()
	}
	if c.Autopilot.PollInterval == "" {
		c.Autopilot.PollInterval = "30s"
	}
	if c.Autopilot.MaxAgents == 0 {
		c.Autopilot.MaxAgents = 1
	}
	if c.Mirror.TokenEnv == "" {
		c.Mirror.TokenEnv = "GITHUB_TOKEN"
	}
	if c.Mirror.Label == "" {
		c.Mirror.Label = "weaver"
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if strings.ContainsAny(c.IDPrefix, " \t") {
		errs = append(errs, "id_prefix must not contain whitespace")
	}
	if !models.AgentModel(c.DefaultModel).Valid() {
		errs = append(errs, fmt.Sprintf("default_model %q must be one of sonnet, opus, flash", c.DefaultModel))
	}
	if d, err := time.ParseDuration(c.Autopilot.PollInterval); err != nil {
		errs = append(errs, fmt.Sprintf("autopilot.poll_interval %q is not a valid duration", c.Autopilot.PollInterval))
	} else if d <= 0 {
		errs = append(errs, "autopilot.poll_interval must be positive")
	}
	if c.Autopilot.MaxAgents < 1 {
		errs = append(errs, "autopilot.max_agents must be at least 1")
	}
	if c.Autopilot.Schedule != "" {
		if _, err := cronParser.Parse(c.Autopilot.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("autopilot.schedule %q is not a valid cron expression", c.Autopilot.Schedule))
		}
	}
	if (c.Notify.Slack.Token == "") != (c.Notify.Slack.Channel == "") {
		errs = append(errs, "notify.slack.token and notify.slack.channel must be set together")
	}
	if (c.Notify.Discord.Token == "") != (c.Notify.Discord.Channel == "") {
		errs = append(errs, "notify.discord.token and notify.discord.channel must be set together")
	}
	if (c.Mirror.Owner == "") != (c.Mirror.Repo == "") {
		errs = append(errs, "mirror.owner and mirror.repo must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Model returns the configured default agent model.
func (c *Config) Model() models.AgentModel {
	return models.AgentModel(c.DefaultModel)
}

// Interval returns the parsed poll interval. Only meaningful on a
// validated Config.
func (a AutopilotConfig) Interval() time.Duration {
	d, err := time.ParseDuration(a.PollInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Enabled reports whether the Slack notifier is configured.
func (s SlackNotifyConfig) Enabled() bool {
	return s.Token != "" && s.Channel != ""
}

// Enabled reports whether the Discord notifier is configured.
func (d DiscordNotifyConfig) Enabled() bool {
	return d.Token != "" && d.Channel != ""
}

// Enabled reports whether the GitHub mirror is configured.
func (m MirrorConfig) Enabled() bool {
	return m.Owner != "" && m.Repo != ""
}

// Token resolves the mirror API token from the configured
// environment variable.
func (m MirrorConfig) Token() string {
	return os.Getenv(m.TokenEnv)
}

func username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "weaver"
}
