package cmd

import (
	"errors"
	"fmt"
	"go/scanner"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/gate"
	"github.com/marcus/featuregate/internal/output"
	"github.com/marcus/featuregate/internal/source"
)

// checkReport is the JSON form of check's findings
type checkReport struct {
	Files    int                 `json:"files"`
	Gates    int                 `json:"gates"`
	Errors   []output.Diagnostic `json:"errors"`
	Warnings []string            `json:"warnings"`
}

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Validate every gate directive",
	Long: `Parses every gate directive and //gate:if / //gate:requires annotation and
reports each problem with its position, without stopping at the first one.
Features referenced by conditions but not declared in .featuregate.yaml are
reported as warnings.

Exits non-zero when any error was found.`,
	GroupID: "core",
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

		report := checkReport{Files: len(files), Errors: []output.Diagnostic{}, Warnings: []string{}}
		var errs []error
		undeclared := make(map[string][]string)

		g := p.gate()
		for _, path := range files {
			name := displayPath(path)
			src, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			entries, diags, err := source.Inspect(g, name, src)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			errs = append(errs, diags...)
			report.Gates += len(entries)

			for _, e := range entries {
				for _, f := range e.Features() {
					if !p.resolver.IsKnownFeature(f) {
						undeclared[f] = append(undeclared[f], fmt.Sprintf("%s:%d", e.File, e.Line))
					}
				}
			}
		}

		// An empty feature list means the project does not declare features.
		if len(p.cfg.Features) > 0 {
			names := make([]string, 0, len(undeclared))
			for name := range undeclared {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("feature %q is not declared (used at %s)", name, undeclared[name][0]))
			}
		}

		for _, err := range errs {
			report.Errors = append(report.Errors, output.NewDiagnostic(diagnosticCode(err), err))
		}

		if jsonOut {
			if err := output.JSON(report); err != nil {
				return err
			}
		} else {
			for _, err := range errs {
				fmt.Fprintln(output.Stdout, output.FormatDiagnostic(err))
			}
			for _, w := range report.Warnings {
				output.Warning("%s", w)
			}
			if len(errs) == 0 {
				output.Success("%d gate(s) in %d file(s) OK", report.Gates, report.Files)
			}
		}

		if len(errs) > 0 {
			return fmt.Errorf("%d problem(s) found", len(errs))
		}
		return nil
	},
}

func diagnosticCode(err error) string {
	switch {
	case errors.Is(err, gate.ErrMissingConfiguration):
		return output.ErrCodeMissingConfig
	case errors.Is(err, gate.ErrInvalidConfiguration):
		return output.ErrCodeInvalidConfig
	case isSyntaxError(err):
		return output.ErrCodeSyntax
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return output.ErrCodeIO
	}
	return output.ErrCodeInvalidInput
}

func isSyntaxError(err error) bool {
	var list scanner.ErrorList
	return errors.As(err, &list)
}

func init() {
	checkCmd.Flags().Bool("json", false, "JSON output")

	rootCmd.AddCommand(checkCmd)
}
