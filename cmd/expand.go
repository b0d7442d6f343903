package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/output"
	"github.com/marcus/featuregate/internal/source"
)

var expandCmd = &cobra.Command{
	Use:   "expand [paths...]",
	Short: "Rewrite gate directives into //gate:if annotations",
	Long: `Runs the declaration gate over Go files. Each //gate:feature or //gate:cfg
directive is replaced by a //gate:if annotation carrying the canonical
condition; with --docs a //gate:requires annotation follows it.

A file with a bad directive is reported and left untouched.`,
	Example: `  featuregate expand ./internal/...
  featuregate expand -w .
  featuregate expand --diff --docs widget.go`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}

		write, _ := cmd.Flags().GetBool("write")
		showDiff, _ := cmd.Flags().GetBool("diff")

		files, err := p.files(trimEllipsis(args))
		if err != nil {
			return err
		}

		g := p.gate()
		failed := 0
		for _, path := range files {
			name := displayPath(path)
			src, err := os.ReadFile(path)
			if err != nil {
				output.Error("%v", err)
				failed++
				continue
			}

			out, results, err := source.Expand(g, name, src)
			if err != nil {
				output.Error("%v", err)
				failed++
				continue
			}
			if len(results) == 0 {
				continue
			}

			switch {
			case showDiff:
				if err := printDiff(name, src, out); err != nil {
					return err
				}
			case write:
				if err := writeInPlace(path, out); err != nil {
					return err
				}
				output.Success("expanded %d gate(s) in %s", len(results), name)
			default:
				printSource(name, out, len(files) > 1)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d file(s) failed", failed)
		}
		return nil
	},
}

// trimEllipsis accepts package-style "dir/..." arguments; directories are
// always walked recursively
func trimEllipsis(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "..." {
			out[i] = "."
			continue
		}
		out[i] = strings.TrimSuffix(a, "/...")
	}
	return out
}

func printDiff(name string, before, after []byte) error {
	diff, err := output.UnifiedDiff(name, before, after)
	if err != nil {
		return err
	}
	if output.IsTerminal() {
		diff = output.ColorDiff(diff)
	}
	fmt.Fprint(output.Stdout, diff)
	return nil
}

func printSource(name string, src []byte, header bool) {
	if header {
		fmt.Fprintf(output.Stdout, "// ==> %s <==\n", name)
	}
	if output.IsTerminal() {
		fmt.Fprint(output.Stdout, output.HighlightGo(src))
		return
	}
	output.Stdout.Write(src)
}

// writeInPlace replaces path keeping its permissions
func writeInPlace(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, info.Mode().Perm())
}

func init() {
	expandCmd.Flags().BoolP("write", "w", false, "write result to the source files instead of stdout")
	expandCmd.Flags().Bool("diff", false, "print a unified diff instead of the rewritten source")

	rootCmd.AddCommand(expandCmd)
}
