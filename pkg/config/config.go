package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmedigital/tickchat/pkg/models"
	"github.com/getmedigital/tickchat/pkg/plan"
)

// Config holds all tickchat configuration.
type Config struct {
	Listen        string             `yaml:"listen"`
	DataDir       string             `yaml:"data_dir"`
	AdminKey      string             `yaml:"admin_key"`
	CORSOrigins   []string           `yaml:"cors_origins"`
	HistoryWindow int                `yaml:"history_window"`
	Upstream      UpstreamConfig     `yaml:"upstream"`
	Plans         plan.Set           `yaml:"plans"`
	Audit         models.AuditConfig `yaml:"audit"`
}

// UpstreamConfig defines the completion API the service delegates to.
type UpstreamConfig struct {
	URL         string   `yaml:"url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
}

// Duration accepts "30s"-style YAML values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:        ":8080",
		DataDir:       "data",
		CORSOrigins:   []string{"*"},
		HistoryWindow: 20,
		Upstream: UpstreamConfig{
			URL:         "https://api.openai.com",
			Model:       "gpt-4o-mini",
			Temperature: 0.6,
			Timeout:     Duration(60 * time.Second),
		},
		Plans: plan.Defaults(),
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "audit.db",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// UsageFile is the path of the usage ledger snapshot.
func (c *Config) UsageFile() string {
	return filepath.Join(c.DataDir, "usage.json")
}

// HistoryFile is the path of the conversation store snapshot.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.DataDir, "conversations.json")
}
