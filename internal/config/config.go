package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"colonies/internal/deck"
	"colonies/internal/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FileName = "colonies.yml"
)

// Config models colonies.yml.
type Config struct {
	Rules struct {
		Suits       []string `yaml:"suits"`
		Ranks       int      `yaml:"ranks"`
		WagerRanks  []int    `yaml:"wager_ranks"`
		HandSize    int      `yaml:"hand_size"`
		NearlyEmpty int      `yaml:"nearly_empty"`
	} `yaml:"rules"`
	Storage struct {
		Driver         string `yaml:"driver"`
		Workspace      string `yaml:"workspace"`
		DSN            string `yaml:"dsn"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"storage"`
	Sealing struct {
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"sealing"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		AllowPlayerHeader bool   `yaml:"allow_player_header"`
	} `yaml:"auth"`
	Notify struct {
		Log   bool `yaml:"log"`
		Redis struct {
			Addr    string `yaml:"addr"`
			Channel string `yaml:"channel"`
		} `yaml:"redis"`
		Webhooks []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notify"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Layout returns the card layout described by the rules section.
func (c *Config) Layout() deck.Layout {
	return deck.Layout{
		Suits:      append([]string(nil), c.Rules.Suits...),
		Ranks:      c.Rules.Ranks,
		WagerRanks: append([]int(nil), c.Rules.WagerRanks...),
		HandSize:   c.Rules.HandSize,
	}
}

// StorageTimeout bounds every storage round trip.
func (c *Config) StorageTimeout() time.Duration {
	if c.Storage.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Storage.TimeoutSeconds) * time.Second
}

// Webhooks returns the enabled webhook destinations.
func (c *Config) Webhooks() []events.Webhook {
	var out []events.Webhook
	for _, hook := range c.Notify.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		out = append(out, events.Webhook{
			URL:     hook.URL,
			Secret:  hook.Secret,
			Events:  hook.Events,
			Timeout: time.Duration(hook.TimeoutSeconds) * time.Second,
		})
	}
	return out
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("config.rules: %w", err)
	}
	if c.Rules.NearlyEmpty < 0 {
		return fmt.Errorf("config.rules.nearly_empty must not be negative")
	}
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config.storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config.storage.driver must be %q or %q", DriverSQLite, DriverPostgres)
	}
	if c.Storage.TimeoutSeconds < 0 {
		return fmt.Errorf("config.storage.timeout_seconds must not be negative")
	}
	for i, hook := range c.Notify.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.notify.webhooks[%d].url is required", i)
		}
		for _, evt := range hook.Events {
			switch evt {
			case events.TypeTurnCompleted, events.TypeGameInvite, events.TypeGameCompleted:
			default:
				return fmt.Errorf("config.notify.webhooks[%d] has unknown event %q", i, evt)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads the workspace config, falling back to defaults when the file is missing.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.Storage.Workspace = workspace
			return cfg, nil
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Workspace == "" {
		cfg.Storage.Workspace = workspace
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `rules:
  suits: [agriculture, medicine, military, politics, science]
  ranks: 12
  wager_ranks: [0, 1, 11]
  hand_size: 8
  nearly_empty: 8

storage:
  driver: sqlite
  timeout_seconds: 5

sealing:
  # base64 of 32 random bytes; generate with: colonies key
  encryption_key: ""

auth:
  jwt_secret: ""
  allow_player_header: false

notify:
  log: true
  redis:
    addr: ""
    channel: colonies:events
  webhooks: []

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
