// Package condition implements the feature condition language: a lexer,
// parser, AST and evaluator for expressions such as
//
//	any(test, feature = "nightly")
//	all(unix, not(feature = "legacy"))
package condition

import (
	"fmt"
	"strings"
)

// MaxDepth limits nesting to prevent stack overflow
const MaxDepth = 50

// Parser parses condition strings into an AST
type Parser struct {
	tokens []Token
	pos    int
	depth  int // Current nesting depth
}

// ParseError represents a parsing error with position information
type ParseError struct {
	Message  string
	Pos      int
	Line     int
	Column   int
	Token    Token
	Expected string
}

func (e *ParseError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("parse error at line %d, column %d: %s (expected %s, got %s)",
			e.Line, e.Column, e.Message, e.Expected, e.Token.String())
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Parse parses a condition expression. Empty input is an error.
func Parse(input string) (*Condition, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &ParseError{Message: "empty condition", Line: 1, Column: 1, Token: Token{Type: TokenEOF}}
	}

	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens}
	root, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}

	// Ensure we consumed all tokens
	if !p.isAtEnd() {
		tok := p.current()
		return nil, p.errorAt(tok, "unexpected token after expression", "end of condition")
	}

	return &Condition{root: root, raw: input}, nil
}

// MustParse is like Parse but panics on error. For static conditions.
func MustParse(input string) *Condition {
	c, err := Parse(input)
	if err != nil {
		panic(fmt.Sprintf("condition.MustParse(%q): %v", input, err))
	}
	return c
}

func (p *Parser) parsePredicate() (Node, error) {
	tok := p.current()
	if tok.Type != TokenIdent {
		return nil, p.errorAt(tok, "unexpected token", "flag, key = \"value\", any(...), all(...) or not(...)")
	}
	p.advance()
	name := tok.Value

	if p.check(TokenLParen) {
		return p.parseCall(tok)
	}

	if p.match(TokenEq) {
		val := p.current()
		if val.Type != TokenString {
			return nil, p.errorAt(val, fmt.Sprintf("value for %s must be a string literal", name), "string")
		}
		p.advance()
		return &KeyValue{Key: name, Value: val.Value}, nil
	}

	return &Flag{Name: name}, nil
}

func (p *Parser) parseCall(name Token) (Node, error) {
	switch name.Value {
	case OpAny, OpAll, OpNot:
	default:
		return nil, p.errorAt(name, fmt.Sprintf("unknown predicate %s", name.Value), "any, all or not")
	}

	p.advance() // consume '('
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, p.errorAt(name, fmt.Sprintf("condition exceeds maximum nesting depth of %d", MaxDepth), "")
	}

	var args []Node
	for !p.check(TokenRParen) {
		arg, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if !p.match(TokenComma) {
			break
		}
	}

	if !p.match(TokenRParen) {
		return nil, p.errorAt(p.current(), fmt.Sprintf("missing closing parenthesis in %s(...)", name.Value), ")")
	}

	if name.Value == OpNot {
		if len(args) != 1 {
			return nil, p.errorAt(name, fmt.Sprintf("not() takes exactly one predicate, got %d", len(args)), "")
		}
		return &NotExpr{Expr: args[0]}, nil
	}
	return &ListExpr{Op: name.Value, Args: args}, nil
}

// Helper methods

func (p *Parser) errorAt(tok Token, msg, expected string) *ParseError {
	return &ParseError{
		Message:  msg,
		Pos:      tok.Pos,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok,
		Expected: expected,
	}
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.current()
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) check(typ TokenType) bool {
	return p.current().Type == typ
}

func (p *Parser) match(typ TokenType) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) isAtEnd() bool {
	return p.current().Type == TokenEOF
}
