// Package config loads pushbot's YAML configuration. Secrets (bot
// token, admin ids) are taken from the environment so the config file
// can be committed without them.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	yaml "go.yaml.in/yaml/v3"

	"pushbot/internal/catalog"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

type TelegramConfig struct {
	Token        string   `yaml:"token,omitempty"`
	PollTimeout  Duration `yaml:"poll_timeout,omitempty"`
	AdminUserIDs []int64  `yaml:"admin_user_ids,omitempty"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level,omitempty"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type StoreConfig struct {
	// Path of the subscriber snapshot file.
	Path string `yaml:"path"`
}

type BroadcastConfig struct {
	BatchSize       int      `yaml:"batch_size,omitempty"`
	InterBatchDelay Duration `yaml:"inter_batch_delay,omitempty"`
	RatePerSec      int      `yaml:"rate_per_sec,omitempty"`
}

type ScheduleConfig struct {
	// Trigger patterns: "minute hour weekday", each literal or "*".
	DailyRecommendation string `yaml:"daily_recommendation,omitempty"`
	WeeklyReport        string `yaml:"weekly_report,omitempty"`
}

type CatalogConfig struct {
	Items []catalog.Item `yaml:"items,omitempty"`
}

// envOverrides are secrets pulled from the environment (optionally via
// a .env file loaded in main). They take precedence over the YAML file.
type envOverrides struct {
	Token        string  `env:"BOT_TOKEN"`
	AdminUserIDs []int64 `env:"ADMIN_USER_IDS"`
}

// Load reads and strictly decodes the YAML config, then applies env
// overrides and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	// Unknown keys fail the load.
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if ov.Token != "" {
		c.Telegram.Token = ov.Token
	}
	if len(ov.AdminUserIDs) > 0 {
		c.Telegram.AdminUserIDs = ov.AdminUserIDs
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required (config telegram.token or BOT_TOKEN)")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = "./data/subscribers.json"
	}
	return nil
}
