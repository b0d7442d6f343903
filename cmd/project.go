package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/config"
	"github.com/marcus/featuregate/internal/features"
	"github.com/marcus/featuregate/internal/gate"
	"github.com/marcus/featuregate/internal/source"
	"github.com/marcus/featuregate/internal/workdir"
)

// globalFlags holds the persistent flags shared by every command
type globalFlags struct {
	features          []string
	noDefaultFeatures bool
	allFeatures       bool
	cfg               cfgList
	docs              bool
	logLevel          string
	logFormat         string
}

var globals globalFlags

// cfgList is a repeatable --cfg flag. Each value is one atom, so values may
// contain commas.
type cfgList []string

var _ pflag.Value = (*cfgList)(nil)

func (c *cfgList) String() string {
	return strings.Join(*c, " ")
}

func (c *cfgList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("empty --cfg value")
	}
	*c = append(*c, v)
	return nil
}

func (c *cfgList) Type() string {
	return "atom"
}

// project is everything a command needs about the current project
type project struct {
	root     string
	cfg      *config.Config
	resolver *features.Resolver
	logger   *slog.Logger
}

// loadProject resolves the root, loads config and applies the global flags
// on top of it
func loadProject(cmd *cobra.Command) (*project, error) {
	root := workdir.ResolveBaseDir(getBaseDir())

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("docs") {
		cfg.Docs = globals.docs
	}
	if globals.logLevel != "" {
		cfg.Log.Level = globals.logLevel
	}
	if globals.logFormat != "" {
		cfg.Log.Format = globals.logFormat
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("project loaded", "root", root, "docs", cfg.Docs)

	return &project{
		root:     root,
		cfg:      cfg,
		resolver: features.NewResolver(cfg, resolverOptions()),
		logger:   logger,
	}, nil
}

func resolverOptions() features.Options {
	return features.Options{
		Features:          globals.features,
		NoDefaultFeatures: globals.noDefaultFeatures,
		AllFeatures:       globals.allFeatures,
		Cfg:               globals.cfg,
	}
}

func (p *project) gate() *gate.Gate {
	return gate.New(p.cfg.Docs, p.logger)
}

func (p *project) env() (*condition.Env, error) {
	return p.resolver.Env()
}

func (p *project) filterOptions() (source.FilterOptions, error) {
	env, err := p.env()
	if err != nil {
		return source.FilterOptions{}, err
	}
	return source.FilterOptions{
		Env:          env,
		Docs:         p.cfg.Docs,
		PruneImports: p.cfg.Prune(),
		Logger:       p.logger,
	}, nil
}

// files expands command arguments (default: the working directory) into
// Go files, honoring config exclusions
func (p *project) files(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	paths := make([]string, len(args))
	for i, a := range args {
		paths[i] = resolvePath(a)
	}
	return source.Files(paths, p.cfg.Exclude)
}

// resolvePath makes a command-line path relative to the base directory
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(getBaseDir(), path)
}

// displayPath shortens path for output, relative to the base directory
// when it lies inside it
func displayPath(path string) string {
	rel, err := filepath.Rel(getBaseDir(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
