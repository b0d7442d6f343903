package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/marcus/featuregate/internal/workdir"
)

const lockFile = ".featuregate/config.lock"

// Log defaults
const (
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Feature is a declared feature
type Feature struct {
	Name        string `yaml:"name" json:"name"`
	Default     bool   `yaml:"default,omitempty" json:"default"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Log configures the process logger
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Config is the project configuration in .featuregate.yaml
type Config struct {
	Features []Feature `yaml:"features,omitempty"`
	// Enabled overrides feature defaults for this project.
	Enabled map[string]bool `yaml:"enabled,omitempty"`
	// Flags are bare condition flags that are always set, e.g. unix.
	Flags []string `yaml:"flags,omitempty"`
	// Values are key/value atoms that are always set, e.g. target_os: [linux].
	Values map[string][]string `yaml:"values,omitempty"`

	Docs         bool     `yaml:"docs,omitempty"`
	AllFeatures  bool     `yaml:"all_features,omitempty"`
	PruneImports *bool    `yaml:"prune_imports,omitempty"`
	Output       string   `yaml:"output,omitempty"`
	Exclude      []string `yaml:"exclude,omitempty"`
	Log          Log      `yaml:"log,omitempty"`
}

// Prune reports whether unused imports are removed after filtering
func (c *Config) Prune() bool {
	return c.PruneImports == nil || *c.PruneImports
}

// Feature looks up a declared feature by name
func (c *Config) Feature(name string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// envOverrides are the FEATUREGATE_* variables that override file settings
type envOverrides struct {
	Docs        *bool    `env:"FEATUREGATE_DOCS"`
	AllFeatures *bool    `env:"FEATUREGATE_ALL_FEATURES"`
	Prune       *bool    `env:"FEATUREGATE_PRUNE_IMPORTS"`
	Output      string   `env:"FEATUREGATE_OUTPUT"`
	Exclude     []string `env:"FEATUREGATE_EXCLUDE"      envSeparator:","`
	LogLevel    string   `env:"FEATUREGATE_LOG_LEVEL"`
	LogFormat   string   `env:"FEATUREGATE_LOG_FORMAT"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads the config under root. A missing file yields the defaults.
// Environment overrides are applied and the result is validated.
func Load(root string) (*Config, error) {
	path := workdir.ConfigPath(root)
	cfg, err := LoadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration after environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadFile reads, defaults and validates a config file without consulting
// the environment
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Enabled == nil {
		cfg.Enabled = map[string]bool{}
	}
	if cfg.Values == nil {
		cfg.Values = map[string][]string{}
	}
}

// ApplyEnv applies FEATUREGATE_* overrides. Feature toggles from the
// environment are resolved by the features package, not here.
func ApplyEnv(cfg *Config) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if raw.Docs != nil {
		cfg.Docs = *raw.Docs
	}
	if raw.AllFeatures != nil {
		cfg.AllFeatures = *raw.AllFeatures
	}
	if raw.Prune != nil {
		cfg.PruneImports = raw.Prune
	}
	if raw.Output != "" {
		cfg.Output = raw.Output
	}
	if len(raw.Exclude) > 0 {
		cfg.Exclude = raw.Exclude
	}
	if raw.LogLevel != "" {
		cfg.Log.Level = raw.LogLevel
	}
	if raw.LogFormat != "" {
		cfg.Log.Format = raw.LogFormat
	}
	return nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks feature declarations and condition atoms
func Validate(cfg *Config) error {
	var errs []error

	seen := make(map[string]bool, len(cfg.Features))
	for i, f := range cfg.Features {
		switch {
		case f.Name == "":
			errs = append(errs, fmt.Errorf("features[%d]: name is required", i))
		case seen[f.Name]:
			errs = append(errs, fmt.Errorf("features[%d]: duplicate feature %q", i, f.Name))
		}
		seen[f.Name] = true
	}

	for _, flag := range cfg.Flags {
		if !identRe.MatchString(flag) {
			errs = append(errs, fmt.Errorf("flags: %q is not an identifier", flag))
		}
	}
	for _, key := range sortedKeys(cfg.Values) {
		if !identRe.MatchString(key) {
			errs = append(errs, fmt.Errorf("values: key %q is not an identifier", key))
		}
	}
	for _, pattern := range cfg.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude: bad pattern %q: %w", pattern, err))
		}
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

// Save writes the config under root using atomic write (temp file + rename)
func Save(root string, cfg *Config) error {
	path := workdir.ConfigPath(root)
	dir := filepath.Dir(path)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".featuregate-*.yaml.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// withConfigLock serializes read-modify-write cycles on the config file
func withConfigLock(root string, fn func() error) error {
	lockPath := filepath.Join(root, lockFile)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockFileExclusive(f); err != nil {
		return err
	}
	defer unlockFile(f)

	return fn()
}

// SetFeature records an explicit enabled/disabled state for a feature in
// the project config
func SetFeature(root, name string, enabled bool) error {
	return withConfigLock(root, func() error {
		cfg, err := loadForUpdate(root)
		if err != nil {
			return err
		}
		cfg.Enabled[name] = enabled
		return Save(root, cfg)
	})
}

// UnsetFeature removes an explicit state so the default applies again
func UnsetFeature(root, name string) error {
	return withConfigLock(root, func() error {
		cfg, err := loadForUpdate(root)
		if err != nil {
			return err
		}
		delete(cfg.Enabled, name)
		return Save(root, cfg)
	})
}

// loadForUpdate reads the file without environment overrides so they are
// not persisted
func loadForUpdate(root string) (*Config, error) {
	cfg, err := LoadFile(workdir.ConfigPath(root))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
