package source

import (
	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/gate"
)

// Entry is one gate directive found in a file
type Entry struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Decl      string `json:"decl"`
	Kind      string `json:"kind"`
	Directive string `json:"directive"`
	Condition string `json:"condition"`

	cond *condition.Condition
}

// Cond returns the parsed condition
func (e *Entry) Cond() *condition.Condition {
	return e.cond
}

// Features returns the feature names the entry's condition references
func (e *Entry) Features() []string {
	if e.cond == nil {
		return nil
	}
	return e.cond.Features()
}

// Inspect reports every gate directive in src without rewriting anything.
// Unlike Expand and Filter it does not stop at the first bad directive:
// each one becomes a diagnostic and the rest of the file is still read.
// The error return is reserved for files that are not valid Go.
func Inspect(g *gate.Gate, name string, src []byte) ([]Entry, []error, error) {
	f, err := parseFile(name, src)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		g = &gate.Gate{}
	}

	diags := f.checkDirectives()
	var entries []Entry
	for _, gd := range f.gated {
		decl := gate.Declaration{Name: gd.name, Kind: gd.kind}
		for _, d := range gd.directives {
			var cond *condition.Condition
			switch {
			case gate.IsInput(d.name):
				out, err := g.Apply(d.name, d.arg, decl)
				if err != nil {
					diags = append(diags, f.errorAt(d.pos, err))
					continue
				}
				cond = out.Condition()
			case gate.IsOutput(d.name):
				c, err := parseAnnotation(d)
				if err != nil {
					diags = append(diags, f.errorAt(d.pos, err))
					continue
				}
				cond = c
			default:
				// already reported by checkDirectives
				continue
			}

			entries = append(entries, Entry{
				File:      name,
				Line:      d.pos.Line,
				Column:    d.pos.Column,
				Decl:      gd.name,
				Kind:      gd.kind,
				Directive: d.name,
				Condition: cond.String(),
				cond:      cond,
			})
		}
	}
	return entries, diags, nil
}
