package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/dockyard/api/server"
	"github.com/kilianp07/dockyard/auth"
	"github.com/kilianp07/dockyard/core/dispatch"
	"github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/infra/mqtt"
	"github.com/kilianp07/dockyard/infra/notify"
	"github.com/kilianp07/dockyard/infra/store"
)

// EnvPrefix marks environment overrides. DOCKYARD_SCHEDULER__HOLD=5s sets
// scheduler.hold.
const EnvPrefix = "DOCKYARD_"

type Config struct {
	Server    server.Config      `json:"server"`
	Store     store.Config       `json:"store"`
	Docks     DocksConfig        `json:"docks"`
	Scheduler dispatch.Config    `json:"scheduler"`
	Logging   LoggingConfig      `json:"logging"`
	Metrics   metrics.Config     `json:"metrics"`
	MQTT      mqtt.Config        `json:"mqtt"`
	Redis     notify.RedisConfig `json:"redis"`
	Auth      auth.Conf          `json:"auth"`
	Sentry    SentryConfig       `json:"sentry"`
}

// Load reads path (yaml or json), then a .env file next to it, then the
// DOCKYARD_ environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	dir := "."
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
		dir = filepath.Dir(path)
	}
	if err := loadDotenv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
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

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
}

// loadDotenv exports the variables of a .env file. Variables already set in
// the process environment win.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Store.SetDefaults()
	c.Docks.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	c.Redis.SetDefaults()
	c.Auth.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	errs := []error{
		c.Server.Validate(),
		c.Store.Validate(),
		c.Docks.Validate(),
		c.Scheduler.Validate(),
		c.Logging.Validate(),
		c.Metrics.Validate(),
		c.Redis.Validate(),
		c.MQTT.Validate(),
		c.Auth.Validate(),
	}
	return errors.Join(errs...)
}
