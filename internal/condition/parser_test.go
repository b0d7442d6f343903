package condition

import (
	"errors"
	"strings"
	"testing"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"test", []TokenType{TokenIdent, TokenEOF}},
		{`feature = "nightly"`, []TokenType{TokenIdent, TokenEq, TokenString, TokenEOF}},
		{`any(test, feature = "test")`, []TokenType{TokenIdent, TokenLParen, TokenIdent, TokenComma, TokenIdent, TokenEq, TokenString, TokenRParen, TokenEOF}},
		{"not(unix)", []TokenType{TokenIdent, TokenLParen, TokenIdent, TokenRParen, TokenEOF}},
		{`"a\"b"`, []TokenType{TokenString, TokenEOF}},
		{"  \n  ", []TokenType{TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := NewLexer(tt.input).Tokenize()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.expected), len(tokens), tokens)
			}

			for i, tok := range tokens {
				if tok.Type != tt.expected[i] {
					t.Errorf("token %d: expected %v, got %v", i, tt.expected[i], tok.Type)
				}
			}
		})
	}
}

func TestLexerStringValue(t *testing.T) {
	tokens, err := NewLexer(`"tab\there \"q\""`).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[0].Value != "tab\there \"q\"" {
		t.Errorf("value: got %q", tokens[0].Value)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []string{
		`"unterminated`,
		`feature = "bad \q escape"`,
		"a && b",
		"feature = \"multi\nline\"",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := NewLexer(input).Tokenize()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParser(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		// Atoms
		{"test", false},
		{`feature = "nightly"`, false},
		{`target_os = "linux"`, false},

		// Combinators
		{`any(test, feature = "test")`, false},
		{`all(unix, not(feature = "legacy"))`, false},
		{"not(test)", false},
		{"any()", false},
		{"all()", false},
		{"any(a, b,)", false},
		{`any(all(a, b), not(any(c, feature = "d")))`, false},

		// Combinator names without parens are plain flags
		{"any", false},
		{"not", false},

		// Errors
		{"", true},
		{"feature = nightly", true},   // unquoted value
		{`feature = `, true},          // missing value
		{"any(test", true},            // unclosed paren
		{"not()", true},               // not needs one predicate
		{"not(a, b)", true},           // not takes exactly one
		{"cfg(test)", true},           // unknown predicate
		{"any(,)", true},              // empty slot
		{"a b", true},                 // trailing token
		{`"nightly"`, true},           // bare string is not a predicate
		{"any(a b)", true},            // missing comma
		{`feature = "x" = "y"`, true}, // chained assignment
		{"any(test))", true},          // extra paren
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cond, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil (parsed %s)", cond)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if cond == nil {
				t.Errorf("expected condition, got nil")
			}
		})
	}
}

func TestParserAST(t *testing.T) {
	tests := []struct {
		input    string
		checkAST func(t *testing.T, n Node)
	}{
		{
			input: "test",
			checkAST: func(t *testing.T, n Node) {
				f, ok := n.(*Flag)
				if !ok {
					t.Fatalf("expected Flag, got %T", n)
				}
				if f.Name != "test" {
					t.Errorf("name: expected 'test', got %q", f.Name)
				}
			},
		},
		{
			input: `feature = "nightly"`,
			checkAST: func(t *testing.T, n Node) {
				kv, ok := n.(*KeyValue)
				if !ok {
					t.Fatalf("expected KeyValue, got %T", n)
				}
				if kv.Key != "feature" || kv.Value != "nightly" {
					t.Errorf("expected feature/nightly, got %s/%s", kv.Key, kv.Value)
				}
			},
		},
		{
			input: `any(test, feature = "test")`,
			checkAST: func(t *testing.T, n Node) {
				l, ok := n.(*ListExpr)
				if !ok {
					t.Fatalf("expected ListExpr, got %T", n)
				}
				if l.Op != OpAny {
					t.Errorf("op: expected 'any', got %q", l.Op)
				}
				if len(l.Args) != 2 {
					t.Fatalf("args: expected 2, got %d", len(l.Args))
				}
				if _, ok := l.Args[0].(*Flag); !ok {
					t.Errorf("arg 0: expected Flag, got %T", l.Args[0])
				}
				if _, ok := l.Args[1].(*KeyValue); !ok {
					t.Errorf("arg 1: expected KeyValue, got %T", l.Args[1])
				}
			},
		},
		{
			input: "not(unix)",
			checkAST: func(t *testing.T, n Node) {
				ne, ok := n.(*NotExpr)
				if !ok {
					t.Fatalf("expected NotExpr, got %T", n)
				}
				if f, ok := ne.Expr.(*Flag); !ok || f.Name != "unix" {
					t.Errorf("expected not(unix), got %s", ne.String())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cond, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			tt.checkAST(t, cond.Root())
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("any(test,\n  cfg(x))")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if perr.Line != 2 || perr.Column != 3 {
		t.Errorf("position: expected 2:3, got %d:%d", perr.Line, perr.Column)
	}
	if !strings.Contains(perr.Error(), "unknown predicate cfg") {
		t.Errorf("message: got %q", perr.Error())
	}
}

func TestMaxDepth(t *testing.T) {
	deep := strings.Repeat("not(", MaxDepth+1) + "a" + strings.Repeat(")", MaxDepth+1)
	if _, err := Parse(deep); err == nil {
		t.Error("expected nesting depth error")
	}

	ok := strings.Repeat("not(", MaxDepth) + "a" + strings.Repeat(")", MaxDepth)
	if _, err := Parse(ok); err != nil {
		t.Errorf("unexpected error at max depth: %v", err)
	}
}

func TestCanonicalString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"test", "test"},
		{`feature="nightly"`, `feature = "nightly"`},
		{`any( test ,feature = "test" , )`, `any(test, feature = "test")`},
		{"all()", "all()"},
		{`not(  any(a,b))`, "not(any(a, b))"},
		{`feature = "quote\"d"`, `feature = "quote\"d"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cond, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := cond.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
			if cond.Raw() != strings.TrimSpace(tt.input) {
				t.Errorf("Raw() = %q, want %q", cond.Raw(), tt.input)
			}
		})
	}
}

func TestRoundTripStable(t *testing.T) {
	inputs := []string{
		`any(test, feature = "test")`,
		`all(unix, not(feature = "legacy"), any())`,
		`feature = "ünïcode-name"`,
		`feature = "line\nbreak"`,
		"any",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first := MustParse(input)
			second, err := Parse(first.String())
			if err != nil {
				t.Fatalf("reparse of %q failed: %v", first.String(), err)
			}
			if !first.Equal(second) {
				t.Errorf("round trip changed structure: %s vs %s", first, second)
			}
			if first.String() != second.String() {
				t.Errorf("canonical form not stable: %q vs %q", first.String(), second.String())
			}
		})
	}
}

func TestAnyTestFeatureStructure(t *testing.T) {
	got := MustParse(`any(test, feature = "test")`)
	want := &ListExpr{Op: OpAny, Args: []Node{
		&Flag{Name: "test"},
		&KeyValue{Key: FeatureKey, Value: "test"},
	}}
	if !nodesEqual(got.Root(), want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestEqual(t *testing.T) {
	a := MustParse(`any(test, feature = "x")`)
	tests := []struct {
		other string
		equal bool
	}{
		{`any(test,feature="x")`, true},
		{`any(feature = "x", test)`, false},
		{`all(test, feature = "x")`, false},
		{`any(test, feature = "y")`, false},
		{`any(test)`, false},
	}
	for _, tt := range tests {
		if got := a.Equal(MustParse(tt.other)); got != tt.equal {
			t.Errorf("Equal(%s) = %v, want %v", tt.other, got, tt.equal)
		}
	}

	var nilCond *Condition
	if !nilCond.Equal(nil) {
		t.Error("nil conditions should be equal")
	}
	if a.Equal(nil) {
		t.Error("condition should not equal nil")
	}
}

func TestFeature(t *testing.T) {
	c := Feature("nightly")
	if !c.Equal(MustParse(`feature = "nightly"`)) {
		t.Errorf("Feature(nightly) = %s", c)
	}
}

func TestReferencedNames(t *testing.T) {
	c := MustParse(`all(unix, any(feature = "a", feature = "b", not(feature = "a")), test, unix)`)

	flags := c.Flags()
	if strings.Join(flags, ",") != "unix,test" {
		t.Errorf("Flags() = %v", flags)
	}
	feats := c.Features()
	if strings.Join(feats, ",") != "a,b" {
		t.Errorf("Features() = %v", feats)
	}
	if vals := c.Values("target_os"); len(vals) != 0 {
		t.Errorf("Values(target_os) = %v", vals)
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParse("any(")
}
