package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/features"
	"github.com/marcus/featuregate/internal/output"
	"github.com/marcus/featuregate/internal/source"
	"github.com/marcus/featuregate/internal/workdir"
)

var filterCmd = &cobra.Command{
	Use:   "filter [paths...]",
	Short: "Drop declarations whose gate conditions are false",
	Long: `Expands gate directives and then filters the result against the selected
features, the way a build would: declarations whose conditions are false
are removed along with imports only they used.

With -o the tree is mirrored into the output directory (non-Go files are
copied). Without -o a single file is printed to stdout.

A documentation build (--docs --all-features) makes every feature test true
and turns //gate:requires annotations into "Requires:" doc comments. Gates
on bare flags or on not(feature = ...) can still be false and are dropped.

With --pick the chosen features are the whole selection: features left
unchecked are off even when enabled in the config.`,
	Example: `  featuregate filter -o build/ --features nightly .
  featuregate filter --no-default-features widget.go
  featuregate filter --docs --all-features -o docs-src/ .
  featuregate filter --pick -o build/ .`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}

		pick, _ := cmd.Flags().GetBool("pick")
		if pick {
			selected, err := pickFeatures(p.resolver.List())
			if err != nil {
				return err
			}
			p.resolver = features.NewResolver(p.cfg, pickedOptions(selected))
		}

		opts, err := p.filterOptions()
		if err != nil {
			return err
		}
		p.logger.Debug("filter", "features", p.resolver.Enabled(), "docs", opts.Docs)

		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = p.cfg.Output
		}
		showDiff, _ := cmd.Flags().GetBool("diff")

		args = trimEllipsis(args)
		if len(args) == 0 {
			args = []string{"."}
		}

		if outDir == "" || showDiff {
			files, err := p.files(args)
			if err != nil {
				return err
			}
			if !showDiff && len(files) != 1 {
				return fmt.Errorf("filtering %d files needs an output directory (-o)", len(files))
			}
			return filterToStdout(p, files, opts, showDiff)
		}

		return filterTree(p, args, resolvePath(outDir), opts)
	},
}

func filterToStdout(p *project, files []string, opts source.FilterOptions, showDiff bool) error {
	g := p.gate()
	failed := 0
	for _, path := range files {
		name := displayPath(path)
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		res, err := source.Build(g, name, src, opts)
		if err != nil {
			output.Error("%v", err)
			failed++
			continue
		}
		if showDiff {
			if err := printDiff(name, src, res.Src); err != nil {
				return err
			}
			continue
		}
		printSource(name, res.Src, false)
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func filterTree(p *project, args []string, outDir string, opts source.FilterOptions) error {
	g := p.gate()
	kept, dropped := 0, 0
	filterFile := func(path string, src []byte) ([]byte, error) {
		res, err := source.Build(g, displayPath(path), src, opts)
		if err != nil {
			return nil, err
		}
		kept += len(res.Kept)
		dropped += len(res.Dropped)
		return res.Src, nil
	}

	for _, arg := range args {
		path := resolvePath(arg)
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		dest := outDir
		if len(args) > 1 {
			dest = filepath.Join(outDir, filepath.Base(path))
		}

		if !info.IsDir() {
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			data, err := filterFile(path, src)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dest, filepath.Base(path)), data, 0644); err != nil {
				return err
			}
			continue
		}

		if err := source.Process(path, dest, p.cfg.Exclude, filterFile); err != nil {
			return err
		}
	}

	output.Success("filtered into %s: %d kept, %d dropped", displayPath(outDir), kept, dropped)
	return nil
}

// pickedOptions makes the picked features the complete selection
func pickedOptions(selected []string) features.Options {
	opts := resolverOptions()
	opts.Features = selected
	opts.Exclusive = true
	return opts
}

// pickFeatures asks which features to enable, starting from the current
// resolved state
func pickFeatures(states []features.State) ([]string, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no features declared in %s", workdir.ConfigFile)
	}

	var selected []string
	options := make([]huh.Option[string], 0, len(states))
	for _, s := range states {
		label := s.Name
		if s.Description != "" {
			label += " - " + s.Description
		}
		options = append(options, huh.NewOption(label, s.Name).Selected(s.Enabled))
		if s.Enabled {
			selected = append(selected, s.Name)
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Features").
				Description("space to toggle, enter to confirm").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	return selected, nil
}

func init() {
	filterCmd.Flags().StringP("out", "o", "", "output directory for the filtered tree")
	filterCmd.Flags().Bool("diff", false, "print what filtering changes instead of writing")
	filterCmd.Flags().Bool("pick", false, "choose features interactively")

	rootCmd.AddCommand(filterCmd)
}
