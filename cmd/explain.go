package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/gate"
	"github.com/marcus/featuregate/internal/output"
)

// explanation is the JSON form of explain
type explanation struct {
	Input     string   `json:"input"`
	Canonical string   `json:"canonical"`
	Flags     []string `json:"flags"`
	Features  []string `json:"features"`
	Active    bool     `json:"active"`
	Include   string   `json:"include"`
	Doc       string   `json:"doc,omitempty"`
}

var explainCmd = &cobra.Command{
	Use:   "explain EXPR",
	Short: "Parse a condition and show how it evaluates",
	Long: `Parses EXPR as a //gate:cfg condition (or, with --simple, as a
//gate:feature argument such as '"nightly"') and shows its canonical form,
structure, referenced atoms, the annotations the gate would emit and
whether it holds under the selected features.`,
	Example: `  featuregate explain 'any(test, feature = "test")'
  featuregate explain --simple '"nightly"' --features nightly`,
	GroupID: "query",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		simple, _ := cmd.Flags().GetBool("simple")
		jsonOut, _ := cmd.Flags().GetBool("json")

		decl := gate.Declaration{Name: "example", Kind: "func", Source: []byte("func example() {}\n")}
		g := p.gate()
		var gated *gate.GatedDeclaration
		if simple {
			gated, err = g.Simple(args[0], decl)
		} else {
			gated, err = g.General(args[0], decl)
		}
		if err != nil {
			return err
		}

		env, err := p.env()
		if err != nil {
			return err
		}
		cond := gated.Condition()
		ex := explanation{
			Input:     args[0],
			Canonical: cond.String(),
			Flags:     nonNil(cond.Flags()),
			Features:  nonNil(cond.Features()),
			Active:    cond.Eval(env),
			Include:   gated.Include.String(),
		}
		if gated.Doc != nil {
			ex.Doc = gated.Doc.String()
		}

		if jsonOut {
			return output.JSON(ex)
		}

		rendered, err := output.RenderMarkdown(explainMarkdown(ex, cond))
		if err != nil {
			return err
		}
		fmt.Fprintln(output.Stdout, rendered)
		return nil
	},
}

func explainMarkdown(ex explanation, cond *condition.Condition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# `%s`\n\n", ex.Canonical)
	b.WriteString("## Structure\n\n")
	writeNode(&b, cond.Root(), 0)

	b.WriteString("\n## Atoms\n\n")
	fmt.Fprintf(&b, "- flags: %s\n", codeList(ex.Flags))
	fmt.Fprintf(&b, "- features: %s\n", codeList(ex.Features))

	b.WriteString("\n## Emitted\n\n```go\n")
	b.WriteString(ex.Include + "\n")
	if ex.Doc != "" {
		b.WriteString(ex.Doc + "\n")
	}
	b.WriteString("func example() {}\n```\n")

	state := "**inactive**: the declaration is dropped"
	if ex.Active {
		state = "**active**: the declaration is built"
	}
	fmt.Fprintf(&b, "\n## Evaluation\n\n%s\n", state)
	return b.String()
}

// writeNode renders the condition tree as a nested markdown list
func writeNode(b *strings.Builder, n condition.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch node := n.(type) {
	case *condition.ListExpr:
		fmt.Fprintf(b, "%s- `%s` (%s)\n", indent, node.Op, listMeaning(node))
		for _, arg := range node.Args {
			writeNode(b, arg, depth+1)
		}
	case *condition.NotExpr:
		fmt.Fprintf(b, "%s- `not`\n", indent)
		writeNode(b, node.Expr, depth+1)
	case *condition.KeyValue:
		fmt.Fprintf(b, "%s- `%s` key/value test\n", indent, node.String())
	case *condition.Flag:
		fmt.Fprintf(b, "%s- `%s` flag\n", indent, node.Name)
	}
}

func listMeaning(l *condition.ListExpr) string {
	switch {
	case l.Op == condition.OpAny && len(l.Args) == 0:
		return "empty, always false"
	case l.Op == condition.OpAll && len(l.Args) == 0:
		return "empty, always true"
	case l.Op == condition.OpAny:
		return "true if any holds"
	}
	return "true if all hold"
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	explainCmd.Flags().Bool("simple", false, "parse EXPR as a //gate:feature argument")
	explainCmd.Flags().Bool("json", false, "JSON output")

	rootCmd.AddCommand(explainCmd)
}
