// Package source applies gates to Go source files. Gate directives are Go
// directive comments attached to top-level declarations:
//
//	//gate:feature "nightly"
//	type Widget struct{}
//
//	//gate:cfg any(test, feature = "test")
//	func helper() {}
//
// Expand rewrites them through the gate into //gate:if (and, for
// documentation builds, //gate:requires) annotations. Filter consumes those
// annotations the way a build tool would.
package source

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/marcus/featuregate/internal/gate"
)

const directivePrefix = "//gate:"

// Error is a gate error at a source position
type Error struct {
	Pos token.Position
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Site is one gate input directive attached to one declaration
type Site struct {
	Directive string
	Arg       string
	Pos       token.Position
	Decl      gate.Declaration
}

// directive is a single //gate: comment line
type directive struct {
	name      string
	arg       string
	pos       token.Position
	lineStart int // offset of the first byte of the line
	lineEnd   int // offset just past the line's newline
}

// gatedDecl is a top-level declaration carrying at least one directive
type gatedDecl struct {
	decl       ast.Decl
	name       string
	kind       string
	start      int // line start of the doc comment (or the decl)
	declStart  int // line start of the declaration keyword
	end        int // just past the newline ending the declaration
	hasDocText bool // doc comment has lines other than gate directives
	sharedLine bool // another declaration starts or ends on one of its lines
	pos        token.Position
	directives []directive
}

func (g *gatedDecl) inputs() []directive {
	var out []directive
	for _, d := range g.directives {
		if gate.IsInput(d.name) {
			out = append(out, d)
		}
	}
	return out
}

func (g *gatedDecl) outputs(name string) []directive {
	var out []directive
	for _, d := range g.directives {
		if d.name == name {
			out = append(out, d)
		}
	}
	return out
}

// file is a parsed source file with its gated declarations
type file struct {
	name     string
	src      []byte
	fset     *token.FileSet
	ast      *ast.File
	gated    []*gatedDecl
	floating []directive // directives not attached to a declaration
}

func parseFile(name string, src []byte) (*file, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	pf := &file{name: name, src: src, fset: fset, ast: f}
	attached := make(map[*ast.CommentGroup]bool)

	for i, d := range f.Decls {
		doc := declDoc(d)
		if doc == nil {
			continue
		}
		attached[doc] = true

		var dirs []directive
		hasDocText := false
		for _, c := range doc.List {
			if dir, ok := pf.directive(c); ok {
				dirs = append(dirs, dir)
			} else {
				hasDocText = true
			}
		}
		if len(dirs) == 0 {
			continue
		}

		name, kind := declName(d)
		pf.gated = append(pf.gated, &gatedDecl{
			decl:       d,
			name:       name,
			kind:       kind,
			start:      pf.lineStart(pf.offset(doc.Pos())),
			declStart:  pf.lineStart(pf.offset(d.Pos())),
			end:        pf.lineEnd(pf.offset(d.End())),
			hasDocText: hasDocText,
			sharedLine: pf.sharesLine(f.Decls, i),
			pos:        fset.Position(d.Pos()),
			directives: dirs,
		})
	}

	for _, cg := range f.Comments {
		if attached[cg] {
			continue
		}
		for _, c := range cg.List {
			if dir, ok := pf.directive(c); ok {
				pf.floating = append(pf.floating, dir)
			}
		}
	}

	return pf, nil
}

func (f *file) directive(c *ast.Comment) (directive, bool) {
	if !strings.HasPrefix(c.Text, directivePrefix) {
		return directive{}, false
	}
	text := strings.TrimPrefix(c.Text, "//")
	name, arg := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		name, arg = text[:i], text[i+1:]
	}
	off := f.offset(c.Pos())
	return directive{
		name:      name,
		arg:       strings.TrimSpace(arg),
		pos:       f.fset.Position(c.Pos()),
		lineStart: f.lineStart(off),
		lineEnd:   f.lineEnd(f.offset(c.End())),
	}, true
}

// sharesLine reports whether decls[i] has a neighbouring declaration on its
// first or last line. Gated regions span whole lines.
func (f *file) sharesLine(decls []ast.Decl, i int) bool {
	line := func(p token.Pos) int { return f.fset.Position(p).Line }
	if i > 0 && line(decls[i-1].End()) == line(decls[i].Pos()) {
		return true
	}
	return i+1 < len(decls) && line(decls[i+1].Pos()) == line(decls[i].End())
}

func (f *file) offset(p token.Pos) int {
	return f.fset.File(p).Offset(p)
}

func (f *file) lineStart(off int) int {
	for off > 0 && f.src[off-1] != '\n' {
		off--
	}
	return off
}

func (f *file) lineEnd(off int) int {
	for off < len(f.src) && f.src[off] != '\n' {
		off++
	}
	if off < len(f.src) {
		off++
	}
	return off
}

// declaration returns the opaque declaration for g: its region with the
// given directive lines cut out.
func (f *file) declaration(g *gatedDecl, cut []directive) gate.Declaration {
	var src []byte
	pos := g.start
	for _, d := range cut {
		src = append(src, f.src[pos:d.lineStart]...)
		pos = d.lineEnd
	}
	src = append(src, f.src[pos:g.end]...)
	return gate.Declaration{Name: g.name, Kind: g.kind, Source: src}
}

func (f *file) errorAt(pos token.Position, err error) *Error {
	return &Error{Pos: pos, Err: err}
}

// checkDirectives rejects floating and unknown directives and gated
// declarations sharing a line with another declaration
func (f *file) checkDirectives() []error {
	var errs []error
	for _, d := range f.floating {
		errs = append(errs, f.errorAt(d.pos, &gate.ConfigError{
			Kind:    gate.InvalidConfiguration,
			Message: "gate directive is not attached to a declaration",
		}))
	}
	for _, g := range f.gated {
		if g.sharedLine {
			errs = append(errs, f.errorAt(g.pos, &gate.ConfigError{
				Kind:    gate.InvalidConfiguration,
				Message: "gated declaration shares its line with another declaration",
			}))
		}
		for _, d := range g.directives {
			if !gate.IsInput(d.name) && !gate.IsOutput(d.name) {
				errs = append(errs, f.errorAt(d.pos, &gate.ConfigError{
					Kind:    gate.InvalidConfiguration,
					Message: "unknown gate directive //" + d.name,
				}))
			}
		}
	}
	return errs
}

// edit replaces src[start:end] with text
type edit struct {
	start, end int
	text       []byte
}

func applyEdits(src []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].start < edits[j].start
	})
	out := make([]byte, 0, len(src))
	pos := 0
	for _, e := range edits {
		out = append(out, src[pos:e.start]...)
		out = append(out, e.text...)
		pos = e.end
	}
	return append(out, src[pos:]...)
}

func declDoc(d ast.Decl) *ast.CommentGroup {
	switch decl := d.(type) {
	case *ast.FuncDecl:
		return decl.Doc
	case *ast.GenDecl:
		return decl.Doc
	}
	return nil
}

func declName(d ast.Decl) (string, string) {
	switch decl := d.(type) {
	case *ast.FuncDecl:
		name := decl.Name.Name
		if decl.Recv != nil && len(decl.Recv.List) > 0 {
			if recv := receiverName(decl.Recv.List[0].Type); recv != "" {
				name = recv + "." + name
			}
		}
		return name, "func"
	case *ast.GenDecl:
		var names []string
		for _, spec := range decl.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				names = append(names, s.Name.Name)
			case *ast.ValueSpec:
				for _, n := range s.Names {
					names = append(names, n.Name)
				}
			case *ast.ImportSpec:
				names = append(names, strings.Trim(s.Path.Value, "\"`"))
			}
		}
		return strings.Join(names, ", "), decl.Tok.String()
	}
	return "", ""
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}
