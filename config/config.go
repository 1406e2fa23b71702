package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/recsizing/core/factory"
	"github.com/kilianp07/recsizing/core/metrics"
)

type Config struct {
	Server    ServerConfig         `json:"server"`
	Jobs      JobsConfig           `json:"jobs"`
	Store     StoreConfig          `json:"store"`
	Source    factory.ModuleConfig `json:"source"`
	Solver    factory.ModuleConfig `json:"solver"`
	Reference ReferenceConfig      `json:"reference"`
	Metrics   metrics.Config       `json:"metrics"`
	Cache     CacheConfig          `json:"cache"`
	Notify    NotifyConfig         `json:"notify"`
	Sentry    SentryConfig         `json:"sentry"`
	Tracing   TracingConfig        `json:"tracing"`
	Journal   JournalConfig        `json:"journal"`
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_STORE__DSN sets store.dsn), then fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Jobs.SetDefaults()
	c.Store.SetDefaults()
	c.Cache.SetDefaults()
	c.Notify.MQTT.SetDefaults()
	c.Tracing.SetDefaults()
	c.Journal.SetDefaults()
	if c.Source.Type == "" {
		c.Source.Type = "file"
	}
	if c.Solver.Type == "" {
		c.Solver.Type = "reference"
	}
}

// Validate checks every section and reports all problems together.
func (c Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Jobs.Validate(),
		c.Store.Validate(),
		c.Cache.Validate(),
		c.Notify.MQTT.Validate(),
	)
}
