package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/output"
)

var (
	version     string
	baseDir     string
	workDirFlag string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "featuregate",
	Short: "Per-declaration feature gates for Go source",
	Long: `featuregate - conditional compilation for individual Go declarations.

Attach a gate directive to a top-level declaration:

  //gate:feature "nightly"
  type Widget struct{}

  //gate:cfg any(test, feature = "test")
  func helper() {}

expand rewrites the directives into //gate:if annotations (plus
//gate:requires for documentation builds), filter drops declarations whose
conditions are false for the selected features.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

// nameWithAliases returns "name, alias1, alias2" if aliases exist, else just "name"
func nameWithAliases(cmd *cobra.Command) string {
	if len(cmd.Aliases) > 0 {
		return cmd.Name() + ", " + strings.Join(cmd.Aliases, ", ")
	}
	return cmd.Name()
}

func init() {
	cobra.OnInitialize(initBaseDir)

	// Add custom template function for showing aliases
	cobra.AddTemplateFunc("nameWithAliases", nameWithAliases)

	// Custom usage template that shows aliases inline
	usageTemplate := `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

	// Need to add the 'add' function for padding calculation
	cobra.AddTemplateFunc("add", func(a, b int) int { return a + b })

	rootCmd.SetUsageTemplate(usageTemplate)

	// Define command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "query", Title: "Query Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)

	// Assign built-in commands to system group
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&workDirFlag, "work-dir", "C", "", "run as if started in this directory")
	pf.StringSliceVarP(&globals.features, "features", "F", nil, "enable features (comma separated, repeatable)")
	pf.BoolVar(&globals.noDefaultFeatures, "no-default-features", false, "do not enable features that are on by default")
	pf.BoolVar(&globals.allFeatures, "all-features", false, "treat every feature as enabled")
	pf.Var(&globals.cfg, "cfg", "set a condition atom: name or key=value (repeatable)")
	pf.BoolVar(&globals.docs, "docs", false, "documentation build: emit and render //gate:requires annotations")
	pf.StringVar(&globals.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&globals.logFormat, "log-format", "", "log format: text, json")
}

func initBaseDir() {
	if workDirFlag != "" {
		baseDir = normalizeWorkDir(workDirFlag)
		return
	}
	var err error
	baseDir, err = os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
}

// normalizeWorkDir makes dir absolute and strips a trailing config file or
// state directory, so -C accepts any of them
func normalizeWorkDir(dir string) string {
	dir = filepath.Clean(dir)
	switch filepath.Base(dir) {
	case ".featuregate", ".featuregate.yaml":
		dir = filepath.Dir(dir)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// getBaseDir returns the directory featuregate was started in
func getBaseDir() string {
	return baseDir
}
