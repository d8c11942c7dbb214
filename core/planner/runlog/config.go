package runlog

import "fmt"

// Backends.
const (
	BackendNone          = "none"
	BackendJSONL         = "jsonl"
	BackendJSONLRotating = "jsonl_rotating"
	BackendSQLite        = "sqlite"
)

// Config selects and tunes the run log backend.
type Config struct {
	Backend    string `json:"backend" yaml:"backend"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults populates unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendSQLite:
			c.Path = "showplan-runs.db"
		default:
			c.Path = "showplan-runs.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendJSONL, BackendJSONLRotating, BackendSQLite:
	default:
		return fmt.Errorf("runlog: unknown backend %q", c.Backend)
	}
	if c.Backend != BackendNone && c.Path == "" {
		return fmt.Errorf("runlog: path required for backend %s", c.Backend)
	}
	return nil
}

// Open creates the configured store. The none backend returns a nil Store.
func Open(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendJSONL:
		return NewJSONLStore(cfg.Path)
	case BackendJSONLRotating:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	}
	return nil, nil
}
