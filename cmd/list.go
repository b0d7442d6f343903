package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/output"
	"github.com/marcus/featuregate/internal/source"
)

// listedGate is a gate entry with its evaluation under the current features
type listedGate struct {
	source.Entry
	Active bool `json:"active"`
}

var listCmd = &cobra.Command{
	Use:     "list [paths...]",
	Aliases: []string{"ls"},
	Short:   "List gated declarations",
	Long: `Lists every gated declaration with its condition and whether it is active
under the selected features.`,
	GroupID: "query",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")
		activeOnly, _ := cmd.Flags().GetBool("active")
		inactiveOnly, _ := cmd.Flags().GetBool("inactive")

		env, err := p.env()
		if err != nil {
			return err
		}
		files, err := p.files(trimEllipsis(args))
		if err != nil {
			return err
		}

		g := p.gate()
		gates := []listedGate{}
		for _, path := range files {
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			entries, diags, err := source.Inspect(g, displayPath(path), src)
			if err != nil {
				output.Warning("%v", err)
				continue
			}
			for _, d := range diags {
				output.Warning("%v", d)
			}
			for _, e := range entries {
				active := e.Cond().Eval(env)
				if (activeOnly && !active) || (inactiveOnly && active) {
					continue
				}
				gates = append(gates, listedGate{Entry: e, Active: active})
			}
		}

		if jsonOut {
			return output.JSON(gates)
		}

		if len(gates) == 0 {
			output.Info("No gated declarations")
			return nil
		}
		width := 0
		if output.IsTerminal() {
			width = output.TerminalWidth(0)
		}
		for _, lg := range gates {
			fmt.Fprintln(output.Stdout, output.FormatGate(lg.Entry, lg.Active, width))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "JSON output")
	listCmd.Flags().Bool("active", false, "only declarations that are built")
	listCmd.Flags().Bool("inactive", false, "only declarations that are dropped")
	listCmd.MarkFlagsMutuallyExclusive("active", "inactive")

	rootCmd.AddCommand(listCmd)
}
