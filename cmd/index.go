package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/index"
	"github.com/marcus/featuregate/internal/output"
	"github.com/marcus/featuregate/internal/source"
	"github.com/marcus/featuregate/internal/workdir"
)

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Record gated declarations in the project index",
	Long: `Scans the tree and replaces the project index (.featuregate/index.db) with
every gate found, then prints how many gates reference each feature.

Use "index show" to query the index without rescanning.`,
	GroupID: "query",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")

		files, err := p.files(trimEllipsis(args))
		if err != nil {
			return err
		}

		g := p.gate()
		var entries []source.Entry
		for _, path := range files {
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			found, diags, err := source.Inspect(g, displayPath(path), src)
			if err != nil {
				return err
			}
			if len(diags) > 0 {
				return fmt.Errorf("%w (run check for all problems)", diags[0])
			}
			entries = append(entries, found...)
		}

		db, err := index.Open(workdir.IndexPath(p.root))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Rebuild(entries); err != nil {
			return err
		}
		p.logger.Debug("index rebuilt", "path", db.Path(), "gates", len(entries))

		counts, err := db.FeatureCounts()
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(map[string]any{
				"files":    len(files),
				"gates":    len(entries),
				"features": nonNilCounts(counts),
			})
		}

		output.Success("indexed %d gate(s) in %d file(s)", len(entries), len(files))
		printCounts(counts)
		return nil
	},
}

var indexShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show indexed gates",
	Long: `Prints the gates recorded by the last "featuregate index", optionally only
those whose condition references --feature.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")
		feature, _ := cmd.Flags().GetString("feature")

		path := workdir.IndexPath(p.root)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			err := fmt.Errorf("no index at %s (run featuregate index)", displayPath(path))
			if jsonOut {
				output.JSONError(output.ErrCodeIO, err.Error())
			}
			return err
		}
		db, err := index.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		var gates []index.Gate
		if feature != "" {
			gates, err = db.ByFeature(feature)
		} else {
			gates, err = db.All()
		}
		if err != nil {
			return err
		}

		if jsonOut {
			if gates == nil {
				gates = []index.Gate{}
			}
			return output.JSON(gates)
		}
		if len(gates) == 0 {
			output.Info("No indexed gates")
			return nil
		}

		env, err := p.env()
		if err != nil {
			return err
		}
		width := 0
		if output.IsTerminal() {
			width = output.TerminalWidth(0)
		}
		for _, ig := range gates {
			e := source.Entry{
				File: ig.File, Line: ig.Line, Column: ig.Column,
				Decl: ig.Decl, Kind: ig.Kind,
				Directive: ig.Directive, Condition: ig.Condition,
			}
			fmt.Fprintln(output.Stdout, output.FormatGate(e, gateActive(ig.Condition, env), width))
		}
		return nil
	},
}

// gateActive evaluates a stored condition. A condition that no longer
// parses is reported inactive.
func gateActive(cond string, env *condition.Env) bool {
	c, err := condition.Parse(cond)
	if err != nil {
		return false
	}
	return c.Eval(env)
}

func printCounts(counts []index.FeatureCount) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprint(output.Stdout, output.SectionHeader("features"))
	lines := make([]string, len(counts))
	for i, c := range counts {
		lines[i] = fmt.Sprintf("%s: %d", c.Feature, c.Gates)
	}
	for _, l := range output.BulletList(lines, 2) {
		fmt.Fprintln(output.Stdout, l)
	}
}

func nonNilCounts(c []index.FeatureCount) []index.FeatureCount {
	if c == nil {
		return []index.FeatureCount{}
	}
	return c
}

func init() {
	indexCmd.Flags().Bool("json", false, "JSON output")
	indexShowCmd.Flags().Bool("json", false, "JSON output")
	indexShowCmd.Flags().String("feature", "", "only gates referencing this feature")

	indexCmd.AddCommand(indexShowCmd)
	rootCmd.AddCommand(indexCmd)
}
