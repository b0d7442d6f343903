package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/config"
	"github.com/marcus/featuregate/internal/output"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Show declared features and how each resolved",
	Long: `Shows every declared feature (plus any enabled but undeclared one) with its
resolved state and where that state came from:

  env      FEATUREGATE_FEATURE_<NAME>, FEATUREGATE_FEATURES,
           FEATUREGATE_DISABLE_FEATURES, FEATUREGATE_NO_DEFAULT_FEATURES
  flag     --features, --no-default-features, --all-features
  config   enabled: in .featuregate.yaml
  default  the feature's declared default`,
	GroupID: "query",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")

		states := p.resolver.List()
		if jsonOut {
			return output.JSON(states)
		}
		if len(states) == 0 {
			output.Info("No features declared")
			return nil
		}

		width := 0
		for _, s := range states {
			if len(s.Name) > width {
				width = len(s.Name)
			}
		}
		for _, s := range states {
			line := fmt.Sprintf("%-*s  %s  %s", width, s.Name, output.FormatActive(s.Enabled), output.FormatSource(s.Source))
			if !s.Declared {
				line += "  (undeclared)"
			}
			if s.Description != "" {
				line += "  " + s.Description
			}
			fmt.Fprintln(output.Stdout, line)
		}
		return nil
	},
}

var featuresEnableCmd = &cobra.Command{
	Use:   "enable NAME...",
	Short: "Enable features in the project config",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFeatures(cmd, args, func(root, name string) error {
			return config.SetFeature(root, name, true)
		}, "enabled")
	},
}

var featuresDisableCmd = &cobra.Command{
	Use:   "disable NAME...",
	Short: "Disable features in the project config",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFeatures(cmd, args, func(root, name string) error {
			return config.SetFeature(root, name, false)
		}, "disabled")
	},
}

var featuresResetCmd = &cobra.Command{
	Use:   "reset NAME...",
	Short: "Return features to their declared default",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFeatures(cmd, args, config.UnsetFeature, "reset")
	},
}

// setFeatures applies fn to each named feature, warning about names the
// config does not declare
func setFeatures(cmd *cobra.Command, names []string, fn func(root, name string) error, verb string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("feature name is required")
		}
		if !p.resolver.IsKnownFeature(name) {
			output.Warning("feature %q is not declared", name)
		}
		if err := fn(p.root, name); err != nil {
			return err
		}
		output.Success("%s %s", verb, name)
	}
	return nil
}

func init() {
	featuresCmd.Flags().Bool("json", false, "JSON output")

	featuresCmd.AddCommand(featuresEnableCmd, featuresDisableCmd, featuresResetCmd)
	rootCmd.AddCommand(featuresCmd)
}
