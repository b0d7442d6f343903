package source

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/gate"
)

// FilterOptions control how annotations are consumed
type FilterOptions struct {
	// Env is the active feature set. Nil means nothing is enabled.
	Env *condition.Env
	// Docs renders //gate:requires annotations as "Requires:" doc banners
	// instead of removing them.
	Docs bool
	// PruneImports removes imports left unused by dropped declarations.
	PruneImports bool

	Logger *slog.Logger
}

func (o FilterOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// FilterResult is the filtered source and what happened to each gated
// declaration
type FilterResult struct {
	Src     []byte
	Kept    []string
	Dropped []string
}

// Changed reports whether filtering removed anything
func (r *FilterResult) Changed() bool {
	return len(r.Dropped) > 0
}

// Filter consumes //gate:if and //gate:requires annotations: declarations
// whose inclusion conditions are not all true are dropped, the annotations
// of kept declarations are removed (or, for documentation builds, turned
// into doc banners). Input directives must have been expanded first.
func Filter(name string, src []byte, opts FilterOptions) (*FilterResult, error) {
	f, err := parseFile(name, src)
	if err != nil {
		return nil, err
	}
	if errs := f.checkDirectives(); len(errs) > 0 {
		return nil, errs[0]
	}

	res := &FilterResult{}
	var edits []edit
	for _, gd := range f.gated {
		if inputs := gd.inputs(); len(inputs) > 0 {
			return nil, f.errorAt(inputs[0].pos, &gate.ConfigError{
				Kind:    gate.InvalidConfiguration,
				Message: "unexpanded gate directive //" + inputs[0].name,
			})
		}

		ifs, err := f.conditions(gd.outputs(gate.DirectiveIf))
		if err != nil {
			return nil, err
		}
		reqs, err := f.conditions(gd.outputs(gate.DirectiveRequires))
		if err != nil {
			return nil, err
		}

		include := true
		for _, c := range ifs {
			if !c.Eval(opts.Env) {
				include = false
				break
			}
		}

		if !include {
			opts.logger().Debug("filter: drop", "file", name, "decl", gd.name)
			res.Dropped = append(res.Dropped, gd.name)
			start, end := f.dropRegion(gd)
			edits = append(edits, edit{start: start, end: end})
			continue
		}

		opts.logger().Debug("filter: keep", "file", name, "decl", gd.name)
		res.Kept = append(res.Kept, gd.name)
		for _, d := range gd.directives {
			edits = append(edits, edit{start: d.lineStart, end: d.lineEnd})
		}
		if opts.Docs && len(reqs) > 0 {
			edits = append(edits, edit{start: gd.declStart, end: gd.declStart, text: banner(reqs, gd.hasDocText)})
		}
	}

	if len(edits) == 0 {
		res.Src = src
		return res, nil
	}

	out := applyEdits(src, edits)
	if res.Changed() && opts.PruneImports {
		pruned, err := imports.Process(name, out, &imports.Options{
			Comments:  true,
			TabIndent: true,
			TabWidth:  8,
		})
		if err != nil {
			return nil, fmt.Errorf("prune imports in %s: %w", name, err)
		}
		out = pruned
	}
	res.Src = out
	return res, nil
}

// dropRegion is the region removed for a dropped declaration. When blank
// lines separate it from both neighbours one of them goes with it.
func (f *file) dropRegion(gd *gatedDecl) (int, int) {
	before := gd.start == 0 || f.blankLineBefore(gd.start) >= 0
	if !before {
		return gd.start, gd.end
	}
	if end := f.blankLineAfter(gd.end); end >= 0 {
		return gd.start, end
	}
	if gd.end == len(f.src) {
		if start := f.blankLineBefore(gd.start); start >= 0 {
			return start, gd.end
		}
	}
	return gd.start, gd.end
}

// blankLineAfter returns the end of the blank line starting at off, or -1
func (f *file) blankLineAfter(off int) int {
	if off >= len(f.src) {
		return -1
	}
	end := f.lineEnd(off)
	if strings.TrimSpace(string(f.src[off:end])) != "" {
		return -1
	}
	return end
}

// blankLineBefore returns the start of the blank line ending at off, or -1
func (f *file) blankLineBefore(off int) int {
	if off == 0 {
		return -1
	}
	start := f.lineStart(off - 1)
	if strings.TrimSpace(string(f.src[start:off])) != "" {
		return -1
	}
	return start
}

func (f *file) conditions(dirs []directive) ([]*condition.Condition, error) {
	conds := make([]*condition.Condition, 0, len(dirs))
	for _, d := range dirs {
		c, err := parseAnnotation(d)
		if err != nil {
			return nil, f.errorAt(d.pos, err)
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func parseAnnotation(d directive) (*condition.Condition, error) {
	if d.arg == "" {
		return nil, &gate.ConfigError{Kind: gate.MissingConfiguration, Message: "no condition specified"}
	}
	c, err := condition.Parse(d.arg)
	if err != nil {
		return nil, &gate.ConfigError{Kind: gate.InvalidConfiguration, Message: "invalid condition expression", Err: err}
	}
	return c, nil
}

// banner renders the documentation requirement lines placed at the end of
// the doc comment
func banner(reqs []*condition.Condition, afterText bool) []byte {
	var b strings.Builder
	if afterText {
		b.WriteString("//\n")
	}
	for _, c := range reqs {
		b.WriteString("// Requires: ")
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Build expands src through g, then filters the result
func Build(g *gate.Gate, name string, src []byte, opts FilterOptions) (*FilterResult, error) {
	expanded, _, err := Expand(g, name, src)
	if err != nil {
		return nil, err
	}
	return Filter(name, expanded, opts)
}
