package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/output"
	"github.com/marcus/featuregate/internal/source"
	"github.com/marcus/featuregate/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep a filtered copy of a tree up to date",
	Long: `Filters dir (default: the working directory) into the output directory,
then watches it and re-filters files as they change. Files whose content
did not change are skipped; deleted files are removed from the output.

Stops on interrupt.`,
	Example: `  featuregate watch -o build/ --features nightly`,
	GroupID: "core",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		opts, err := p.filterOptions()
		if err != nil {
			return err
		}

		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = p.cfg.Output
		}
		if outDir == "" {
			return fmt.Errorf("watch needs an output directory (-o or output: in config)")
		}
		debounce, _ := cmd.Flags().GetDuration("debounce")

		root := "."
		if len(args) == 1 {
			root = trimEllipsis(args)[0]
		}
		root = resolvePath(root)
		if info, err := os.Stat(root); err != nil {
			return err
		} else if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", displayPath(root))
		}

		g := p.gate()
		w, err := watch.New(watch.Config{
			Root:     root,
			Out:      resolvePath(outDir),
			Exclude:  p.cfg.Exclude,
			Debounce: debounce,
			Logger:   p.logger,
		}, func(path string, src []byte) ([]byte, error) {
			res, err := source.Build(g, displayPath(path), src, opts)
			if err != nil {
				return nil, err
			}
			return res.Src, nil
		})
		if err != nil {
			return err
		}
		defer w.Close()

		w.OnSync = func(s watch.Stats) {
			for _, err := range s.Errors {
				fmt.Fprintln(output.Stderr, output.FormatDiagnostic(err))
			}
			switch {
			case s.Initial:
				output.Success("filtered %d file(s) into %s", s.Written, displayPath(outDir))
			case s.Written+s.Removed > 0:
				output.Success("%s: %d updated, %d removed", time.Now().Format("15:04:05"), s.Written, s.Removed)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringP("out", "o", "", "output directory")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before changes are synced")

	rootCmd.AddCommand(watchCmd)
}

