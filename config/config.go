package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/showplan/core/metrics"
	"github.com/kilianp07/showplan/core/planner/runlog"
	"github.com/kilianp07/showplan/infra/logger"
	_ "github.com/kilianp07/showplan/infra/metrics" // registers the metric sink types
	"github.com/kilianp07/showplan/infra/monitoring"
	"github.com/kilianp07/showplan/infra/mqtt"
)

// EnvPrefix marks environment variables that override file values.
// SHOWPLAN_SOLVER__STRICT=true sets solver.strict.
const EnvPrefix = "SHOWPLAN_"

type Config struct {
	Solver  SolverConfig      `json:"solver"`
	Logging logger.Config     `json:"logging"`
	Metrics metrics.Config    `json:"metrics"`
	RunLog  runlog.Config     `json:"runlog"`
	MQTT    mqtt.Config       `json:"mqtt"`
	Sentry  monitoring.Config `json:"sentry"`
}

// Load reads path, applies environment overrides, fills defaults and
// validates every section. An empty path loads defaults and environment
// values only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
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

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Logging.SetDefaults()
	c.RunLog.SetDefaults()
	c.MQTT.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	known := metrics.SinkTypes()
	for i, s := range c.Metrics.Sinks {
		if !slices.Contains(known, s.Type) {
			return fmt.Errorf("metrics: sink %d has unknown type %q (known: %s)", i, s.Type, strings.Join(known, ", "))
		}
	}
	if err := c.RunLog.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return c.Sentry.Validate()
}
