package features

import (
	"testing"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Features = []config.Feature{
		{Name: "json", Default: true, Description: "JSON support"},
		{Name: "nightly"},
		{Name: "serde-json"},
	}
	return cfg
}

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		opts       Options
		enabled    map[string]bool
		feature    string
		wantOn     bool
		wantSource string
	}{
		{
			name:       "default on",
			feature:    "json",
			wantOn:     true,
			wantSource: SourceDefault,
		},
		{
			name:       "default off",
			feature:    "nightly",
			wantOn:     false,
			wantSource: SourceDefault,
		},
		{
			name:       "config beats default",
			enabled:    map[string]bool{"json": false},
			feature:    "json",
			wantOn:     false,
			wantSource: SourceConfig,
		},
		{
			name:       "flag beats config",
			enabled:    map[string]bool{"nightly": false},
			opts:       Options{Features: []string{"nightly"}},
			feature:    "nightly",
			wantOn:     true,
			wantSource: SourceFlag,
		},
		{
			name:       "env beats flag",
			env:        map[string]string{"FEATUREGATE_FEATURE_NIGHTLY": "0"},
			opts:       Options{Features: []string{"nightly"}},
			feature:    "nightly",
			wantOn:     false,
			wantSource: SourceEnv,
		},
		{
			name:       "env key normalization",
			env:        map[string]string{"FEATUREGATE_FEATURE_SERDE_JSON": "yes"},
			feature:    "serde-json",
			wantOn:     true,
			wantSource: SourceEnv,
		},
		{
			name:       "env enable list",
			env:        map[string]string{EnvFeatures: "a, nightly"},
			feature:    "nightly",
			wantOn:     true,
			wantSource: SourceEnv,
		},
		{
			name:       "env disable list wins over enable list",
			env:        map[string]string{EnvFeatures: "nightly", EnvDisableFeatures: "nightly"},
			feature:    "nightly",
			wantOn:     false,
			wantSource: SourceEnv,
		},
		{
			name:       "no default features flag",
			opts:       Options{NoDefaultFeatures: true},
			feature:    "json",
			wantOn:     false,
			wantSource: SourceFlag,
		},
		{
			name:       "no default features env",
			env:        map[string]string{EnvNoDefaultFeatures: "true"},
			feature:    "json",
			wantOn:     false,
			wantSource: SourceEnv,
		},
		{
			name:       "no default features leaves explicit enable",
			opts:       Options{NoDefaultFeatures: true, Features: []string{"json"}},
			feature:    "json",
			wantOn:     true,
			wantSource: SourceFlag,
		},
		{
			name:       "all features flag",
			opts:       Options{AllFeatures: true},
			feature:    "nightly",
			wantOn:     true,
			wantSource: SourceFlag,
		},
		{
			name:       "undeclared feature",
			feature:    "ghost",
			wantOn:     false,
			wantSource: SourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := testConfig()
			for k, v := range tt.enabled {
				cfg.Enabled[k] = v
			}

			on, source := NewResolver(cfg, tt.opts).Resolve(tt.feature)
			if on != tt.wantOn || source != tt.wantSource {
				t.Errorf("Resolve(%s) = %v, %s; want %v, %s", tt.feature, on, source, tt.wantOn, tt.wantSource)
			}
		})
	}
}

func TestListIncludesUndeclared(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled["extra"] = true
	r := NewResolver(cfg, Options{Features: []string{"cli-only"}})

	states := r.List()
	var names []string
	for _, s := range states {
		names = append(names, s.Name)
	}
	want := []string{"cli-only", "extra", "json", "nightly", "serde-json"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	for _, s := range states {
		switch s.Name {
		case "json":
			if !s.Declared || !s.Enabled || s.Description != "JSON support" {
				t.Errorf("json state = %+v", s)
			}
		case "extra", "cli-only":
			if s.Declared || !s.Enabled {
				t.Errorf("%s state = %+v", s.Name, s)
			}
		}
	}

	if !r.IsKnownFeature("json") || r.IsKnownFeature("extra") {
		t.Error("IsKnownFeature misreports")
	}
}

func TestEnv(t *testing.T) {
	cfg := testConfig()
	cfg.Flags = []string{"unix"}
	cfg.Values["target_os"] = []string{"linux"}

	env, err := NewResolver(cfg, Options{
		Features: []string{"nightly"},
		Cfg:      []string{"test", `target_arch="amd64"`, "profile=release"},
	}).Env()
	if err != nil {
		t.Fatalf("Env: %v", err)
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`feature = "json"`, true},
		{`feature = "nightly"`, true},
		{`feature = "serde-json"`, false},
		{"unix", true},
		{"test", true},
		{"windows", false},
		{`target_os = "linux"`, true},
		{`target_arch = "amd64"`, true},
		{`profile = "release"`, true},
		{`any(test, feature = "test")`, true},
	}
	for _, tt := range tests {
		if got := condition.MustParse(tt.expr).Eval(env); got != tt.want {
			t.Errorf("Eval(%s) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEnvAllFeatures(t *testing.T) {
	cfg := testConfig()
	cfg.AllFeatures = true
	env, err := NewResolver(cfg, Options{}).Env()
	if err != nil {
		t.Fatal(err)
	}
	if !condition.Feature("never-declared").Eval(env) {
		t.Error("all features should satisfy any feature test")
	}
}

func TestEnvAllFeaturesHonorsDisables(t *testing.T) {
	t.Setenv("FEATUREGATE_FEATURE_NIGHTLY", "0")
	r := NewResolver(testConfig(), Options{AllFeatures: true})
	env, err := r.Env()
	if err != nil {
		t.Fatal(err)
	}

	on, source := r.Resolve("nightly")
	if on || source != SourceEnv {
		t.Errorf("Resolve(nightly) = %v/%s, want false/%s", on, source, SourceEnv)
	}
	if condition.Feature("nightly").Eval(env) {
		t.Error("env-disabled feature should not match under all-features")
	}
	if !condition.Feature("serde-json").Eval(env) || !condition.Feature("never-declared").Eval(env) {
		t.Error("other features should still match under all-features")
	}
}

func TestEnvMatchesResolveUnderConfigAllFeatures(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = map[string]bool{"nightly": false}
	cfg.AllFeatures = true

	r := NewResolver(cfg, Options{})
	env, err := r.Env()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range r.List() {
		if got := condition.Feature(s.Name).Eval(env); got != s.Enabled {
			t.Errorf("%s: eval = %v, resolved = %v (%s)", s.Name, got, s.Enabled, s.Source)
		}
	}
}

func TestResolveExclusive(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = map[string]bool{"nightly": true}
	cfg.AllFeatures = true

	r := NewResolver(cfg, Options{Features: []string{"serde-json"}, Exclusive: true, AllFeatures: true})
	tests := []struct {
		feature string
		wantOn  bool
	}{
		{"nightly", false},
		{"json", false},
		{"serde-json", true},
	}
	for _, tt := range tests {
		on, source := r.Resolve(tt.feature)
		if on != tt.wantOn || source != SourceFlag {
			t.Errorf("Resolve(%s) = %v/%s, want %v/%s", tt.feature, on, source, tt.wantOn, SourceFlag)
		}
	}
	if r.AllFeatures() {
		t.Error("exclusive selection should turn off all-features")
	}

	env, err := r.Env()
	if err != nil {
		t.Fatal(err)
	}
	if condition.Feature("nightly").Eval(env) || !condition.Feature("serde-json").Eval(env) {
		t.Error("env should follow the exclusive selection")
	}
}

func TestResolveExclusiveEnvStillWins(t *testing.T) {
	t.Setenv("FEATUREGATE_FEATURES", "nightly")
	r := NewResolver(testConfig(), Options{Exclusive: true})
	if on, source := r.Resolve("nightly"); !on || source != SourceEnv {
		t.Errorf("Resolve = %v/%s, want true/%s", on, source, SourceEnv)
	}
}

func TestEnvBadCfg(t *testing.T) {
	for _, raw := range []string{"", "1abc", "a-b", `k="unterminated`} {
		if _, err := NewResolver(nil, Options{Cfg: []string{raw}}).Env(); err == nil {
			t.Errorf("Env with --cfg %q: expected error", raw)
		}
	}
}
