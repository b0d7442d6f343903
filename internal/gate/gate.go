// Package gate rewrites a declaration so that it is only built when a
// feature condition holds, and optionally marks it for documentation
// tooling with the same condition.
package gate

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/marcus/featuregate/internal/condition"
)

// Input directives recognized on declarations
const (
	DirectiveFeature = "gate:feature" // //gate:feature "name"
	DirectiveCfg     = "gate:cfg"     // //gate:cfg <condition>
)

// Output directives emitted by the gate
const (
	DirectiveIf       = "gate:if"       // build inclusion
	DirectiveRequires = "gate:requires" // documentation
)

// Declaration is an opaque top-level declaration. Source is reproduced
// byte for byte.
type Declaration struct {
	Name   string
	Kind   string // func, type, var, const, import
	Source []byte
}

// Annotation is a directive carrying a condition
type Annotation struct {
	Directive string
	Condition *condition.Condition
}

// String renders the annotation as a Go directive comment
func (a Annotation) String() string {
	return "//" + a.Directive + " " + a.Condition.String()
}

// GatedDeclaration is a declaration prefixed with its annotations
type GatedDeclaration struct {
	Include Annotation
	Doc     *Annotation // nil unless the documentation build is active
	Decl    Declaration
}

// Condition returns the inclusion condition
func (g *GatedDeclaration) Condition() *condition.Condition {
	return g.Include.Condition
}

// Bytes renders the annotations followed by the unchanged declaration
func (g *GatedDeclaration) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(g.Include.String())
	buf.WriteByte('\n')
	if g.Doc != nil {
		buf.WriteString(g.Doc.String())
		buf.WriteByte('\n')
	}
	buf.Write(g.Decl.Source)
	return buf.Bytes()
}

// Gate splices annotations in front of declarations. The zero value is
// ready to use and does not emit documentation annotations.
type Gate struct {
	// Docs enables documentation annotations. It is a separate channel
	// from the feature set the condition is evaluated against.
	Docs bool

	Logger *slog.Logger
}

// New creates a gate
func New(docs bool, logger *slog.Logger) *Gate {
	return &Gate{Docs: docs, Logger: logger}
}

// Simple gates decl on a single feature given as a string literal,
// e.g. "nightly". The condition is feature = "nightly".
func (g *Gate) Simple(arg string, decl Declaration) (*GatedDeclaration, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, missing("no feature specified")
	}

	tokens, err := condition.NewLexer(arg).Tokenize()
	if err != nil {
		return nil, invalid("not a valid feature name", err)
	}
	if len(tokens) != 2 || tokens[0].Type != condition.TokenString || tokens[0].Value == "" {
		return nil, invalid("not a valid feature name", nil)
	}

	return g.emit(condition.Feature(tokens[0].Value), decl), nil
}

// General gates decl on a full condition expression, e.g.
// any(test, feature = "test").
func (g *Gate) General(expr string, decl Declaration) (*GatedDeclaration, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, missing("no condition specified")
	}

	cond, err := condition.Parse(expr)
	if err != nil {
		return nil, invalid("invalid condition expression", err)
	}

	return g.emit(cond, decl), nil
}

// Apply dispatches on the input directive name
func (g *Gate) Apply(directive, arg string, decl Declaration) (*GatedDeclaration, error) {
	switch directive {
	case DirectiveFeature:
		return g.Simple(arg, decl)
	case DirectiveCfg:
		return g.General(arg, decl)
	default:
		return nil, invalid("unknown gate directive //"+directive, nil)
	}
}

func (g *Gate) emit(cond *condition.Condition, decl Declaration) *GatedDeclaration {
	out := &GatedDeclaration{
		Include: Annotation{Directive: DirectiveIf, Condition: cond},
		Decl:    decl,
	}
	if g.Docs {
		out.Doc = &Annotation{Directive: DirectiveRequires, Condition: cond}
	}
	g.logger().Debug("gate: expanded", "decl", decl.Name, "kind", decl.Kind, "condition", cond.String(), "docs", g.Docs)
	return out
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// IsInput reports whether name is a directive the gate consumes
func IsInput(name string) bool {
	return name == DirectiveFeature || name == DirectiveCfg
}

// IsOutput reports whether name is a directive the gate emits
func IsOutput(name string) bool {
	return name == DirectiveIf || name == DirectiveRequires
}
