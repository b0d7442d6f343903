package source

import (
	"github.com/marcus/featuregate/internal/gate"
)

// Result is one gate input directive and what it expanded to
type Result struct {
	Site  Site
	Gated *gate.GatedDeclaration
}

// Scan returns one Site per gate input directive attached to a top-level
// declaration, without applying the gate.
func Scan(name string, src []byte) ([]Site, error) {
	f, err := parseFile(name, src)
	if err != nil {
		return nil, err
	}
	if errs := f.checkDirectives(); len(errs) > 0 {
		return nil, errs[0]
	}

	var sites []Site
	for _, gd := range f.gated {
		inputs := gd.inputs()
		if len(inputs) == 0 {
			continue
		}
		decl := f.declaration(gd, inputs)
		for _, d := range inputs {
			sites = append(sites, Site{Directive: d.name, Arg: d.arg, Pos: d.pos, Decl: decl})
		}
	}
	return sites, nil
}

// Expand rewrites every gate input directive in src through g. Bytes
// outside gated declarations are left untouched, and a file without input
// directives is returned as is. Any gate error aborts the whole file.
//
// Several directives on one declaration expand in source order: the first
// directive's annotations come first.
func Expand(g *gate.Gate, name string, src []byte) ([]byte, []Result, error) {
	f, err := parseFile(name, src)
	if err != nil {
		return nil, nil, err
	}
	if errs := f.checkDirectives(); len(errs) > 0 {
		return nil, nil, errs[0]
	}

	var edits []edit
	var results []Result
	for _, gd := range f.gated {
		inputs := gd.inputs()
		if len(inputs) == 0 {
			continue
		}

		decl := f.declaration(gd, inputs)
		gated := make([]*gate.GatedDeclaration, len(inputs))
		cur := decl
		// Innermost first, so each outer directive wraps the inner result.
		for i := len(inputs) - 1; i >= 0; i-- {
			d := inputs[i]
			out, err := g.Apply(d.name, d.arg, cur)
			if err != nil {
				return nil, nil, f.errorAt(d.pos, err)
			}
			gated[i] = out
			cur = gate.Declaration{Name: decl.Name, Kind: decl.Kind, Source: out.Bytes()}
		}

		edits = append(edits, edit{start: gd.start, end: gd.end, text: cur.Source})
		for i, d := range inputs {
			results = append(results, Result{
				Site:  Site{Directive: d.name, Arg: d.arg, Pos: d.pos, Decl: decl},
				Gated: gated[i],
			})
		}
	}

	if len(edits) == 0 {
		return src, nil, nil
	}
	return applyEdits(src, edits), results, nil
}
