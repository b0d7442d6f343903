package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/output"
	ver "github.com/marcus/featuregate/internal/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version and check for updates",
	GroupID: "system",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		if short {
			fmt.Fprint(output.Stdout, version)
			return
		}

		fmt.Fprintf(output.Stdout, "featuregate version %s\n", version)

		check, _ := cmd.Flags().GetBool("check")
		if !check || ver.IsDevelopmentVersion(version) {
			return
		}

		// Network errors are not worth reporting here.
		result := ver.CheckCached(cmd.Context(), version)
		if result.Error != nil || !result.HasUpdate {
			return
		}
		fmt.Fprintf(output.Stdout, "\nUpdate available: %s → %s\n", version, result.LatestVersion)
		if c := ver.UpdateCommand(result.LatestVersion); c != "" {
			fmt.Fprintf(output.Stdout, "Run: %s\n", c)
		}
	},
}

func init() {
	versionCmd.Flags().Bool("check", true, "check for updates")
	versionCmd.Flags().Bool("short", false, "output only the version string")

	rootCmd.AddCommand(versionCmd)
}
