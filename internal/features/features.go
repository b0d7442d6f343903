// Package features resolves which features are enabled for a run. A
// feature's state comes from, in order of precedence, FEATUREGATE_*
// environment variables, command-line flags, the project config and the
// declared default.
package features

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/config"
)

// Resolution sources
const (
	SourceEnv     = "env"
	SourceFlag    = "flag"
	SourceConfig  = "config"
	SourceDefault = "default"
)

// Environment variables consulted during resolution
const (
	EnvFeaturePrefix     = "FEATUREGATE_FEATURE_"
	EnvFeatures          = "FEATUREGATE_FEATURES"
	EnvDisableFeatures   = "FEATUREGATE_DISABLE_FEATURES"
	EnvNoDefaultFeatures = "FEATUREGATE_NO_DEFAULT_FEATURES"
)

// Options are the feature selection flags given on the command line
type Options struct {
	Features          []string
	NoDefaultFeatures bool
	AllFeatures       bool
	// Exclusive makes Features the complete selection: every other
	// feature resolves off at flag precedence, ignoring config, defaults
	// and AllFeatures.
	Exclusive bool
	// Cfg entries are "name" or "key=value" atoms.
	Cfg []string
}

// State is the resolved state of one feature
type State struct {
	config.Feature
	Declared bool   `json:"declared"`
	Enabled  bool   `json:"enabled"`
	Source   string `json:"source"`
}

// Resolver resolves features against a project config and command-line
// options
type Resolver struct {
	cfg  *config.Config
	opts Options
}

// NewResolver creates a resolver. A nil cfg behaves as an empty config.
func NewResolver(cfg *config.Config, opts Options) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Resolver{cfg: cfg, opts: opts}
}

// AllFeatures reports whether every feature test is forced true
func (r *Resolver) AllFeatures() bool {
	if r.opts.Exclusive {
		return false
	}
	return r.opts.AllFeatures || r.cfg.AllFeatures
}

// IsKnownFeature returns true when the feature is declared in the config
func (r *Resolver) IsKnownFeature(name string) bool {
	_, ok := r.cfg.Feature(normalizeName(name))
	return ok
}

// IsEnabled resolves a single feature
func (r *Resolver) IsEnabled(name string) bool {
	enabled, _ := r.Resolve(name)
	return enabled
}

// Resolve returns the resolved feature state and the source ("env", "flag",
// "config", "default").
func (r *Resolver) Resolve(name string) (bool, string) {
	canonical := normalizeName(name)

	if enabled, ok := resolveEnvOverride(canonical); ok {
		return enabled, SourceEnv
	}

	if r.opts.Exclusive {
		return containsName(r.opts.Features, canonical), SourceFlag
	}
	if r.opts.AllFeatures || containsName(r.opts.Features, canonical) {
		return true, SourceFlag
	}

	if enabled, ok := r.cfg.Enabled[canonical]; ok {
		return enabled, SourceConfig
	}
	if r.cfg.AllFeatures {
		return true, SourceConfig
	}

	def := r.defaultValue(canonical)
	if def {
		if disabled, ok := parseBoolEnv(EnvNoDefaultFeatures); ok && disabled {
			return false, SourceEnv
		}
		if r.opts.NoDefaultFeatures {
			return false, SourceFlag
		}
	}
	return def, SourceDefault
}

// List returns every declared feature plus any undeclared feature named by
// flags, config or environment, sorted by name
func (r *Resolver) List() []State {
	var states []State
	for _, name := range r.names() {
		f, declared := r.cfg.Feature(name)
		if !declared {
			f = config.Feature{Name: name}
		}
		enabled, source := r.Resolve(name)
		states = append(states, State{Feature: f, Declared: declared, Enabled: enabled, Source: source})
	}
	return states
}

// Enabled returns the names of enabled features, sorted
func (r *Resolver) Enabled() []string {
	var out []string
	for _, s := range r.List() {
		if s.Enabled {
			out = append(out, s.Name)
		}
	}
	return out
}

// Env builds the evaluation environment: enabled features, the configured
// flags and values, and --cfg atoms. Under all-features every feature test
// holds except for features resolved off by the environment or config.
func (r *Resolver) Env() (*condition.Env, error) {
	env := condition.NewEnv()
	states := r.List()
	for _, s := range states {
		if s.Enabled {
			env.EnableFeature(s.Name)
		}
	}
	if r.AllFeatures() {
		env.MatchAll(condition.FeatureKey)
		for _, s := range states {
			if !s.Enabled {
				env.Deny(condition.FeatureKey, s.Name)
			}
		}
	}

	for _, flag := range r.cfg.Flags {
		env.SetFlag(flag)
	}
	for key, values := range r.cfg.Values {
		for _, v := range values {
			env.SetValue(key, v)
		}
	}

	for _, raw := range r.opts.Cfg {
		if err := applyCfg(env, raw); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// applyCfg sets a "name" or "key=value" atom. The value may be quoted.
func applyCfg(env *condition.Env, raw string) error {
	key, value, hasValue := strings.Cut(strings.TrimSpace(raw), "=")
	key = strings.TrimSpace(key)
	if !isIdent(key) {
		return fmt.Errorf("--cfg %q: %q is not an identifier", raw, key)
	}
	if !hasValue {
		env.SetFlag(key)
		return nil
	}

	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, `"`) {
		unquoted, err := strconv.Unquote(value)
		if err != nil {
			return fmt.Errorf("--cfg %q: bad string literal: %w", raw, err)
		}
		value = unquoted
	}
	env.SetValue(key, value)
	return nil
}

func (r *Resolver) names() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = normalizeName(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, f := range r.cfg.Features {
		add(f.Name)
	}
	for name := range r.cfg.Enabled {
		add(name)
	}
	for _, name := range r.opts.Features {
		add(name)
	}
	for _, name := range splitNames(os.Getenv(EnvFeatures)) {
		add(name)
	}
	for _, name := range splitNames(os.Getenv(EnvDisableFeatures)) {
		add(name)
	}

	sort.Strings(names)
	return names
}

func (r *Resolver) defaultValue(name string) bool {
	if f, ok := r.cfg.Feature(name); ok {
		return f.Default
	}
	return false
}

// Feature names are case sensitive; only surrounding space is ignored.
func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

func resolveEnvOverride(name string) (bool, bool) {
	featureVar := EnvFeaturePrefix + normalizeForEnvKey(name)
	if enabled, ok := parseBoolEnv(featureVar); ok {
		return enabled, true
	}

	if containsName(splitNames(os.Getenv(EnvDisableFeatures)), name) {
		return false, true
	}
	if containsName(splitNames(os.Getenv(EnvFeatures)), name) {
		return true, true
	}

	return false, false
}

func normalizeForEnvKey(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range upper {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func parseBoolEnv(key string) (bool, bool) {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no":
		return false, true
	default:
		return false, false
	}
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = normalizeName(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if normalizeName(n) == target {
			return true
		}
	}
	return false
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r)) || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}
