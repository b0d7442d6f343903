package condition

import (
	"fmt"
	"strconv"
	"unicode"
)

// TokenType represents the type of a lexer token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdent  // flag names, keys, combinators
	TokenString // "quoted" values

	// Delimiters
	TokenEq     // =
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,
)

var tokenNames = map[TokenType]string{
	TokenEOF:    "EOF",
	TokenError:  "ERROR",
	TokenIdent:  "IDENT",
	TokenString: "STRING",
	TokenEq:     "=",
	TokenLParen: "(",
	TokenRParen: ")",
	TokenComma:  ",",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexer token
type Token struct {
	Type   TokenType
	Value  string // unquoted for strings
	Pos    int    // position in input
	Line   int
	Column int
}

func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Lexer tokenizes condition expressions
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
	tokens []Token
}

// NewLexer creates a new lexer for the given input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		line:   1,
		column: 1,
	}
}

// Tokenize returns all tokens from the input
func (l *Lexer) Tokenize() ([]Token, error) {
	l.tokens = nil
	for {
		tok := l.nextToken()
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenError {
			return l.tokens, &ParseError{
				Message: tok.Value,
				Pos:     tok.Pos,
				Line:    tok.Line,
				Column:  tok.Column,
				Token:   tok,
			}
		}
	}
	return l.tokens, nil
}

func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos, Line: l.line, Column: l.column}
	}

	startPos := l.pos
	startLine := l.line
	startCol := l.column
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.advance()
		return Token{Type: TokenLParen, Value: "(", Pos: startPos, Line: startLine, Column: startCol}
	case ')':
		l.advance()
		return Token{Type: TokenRParen, Value: ")", Pos: startPos, Line: startLine, Column: startCol}
	case ',':
		l.advance()
		return Token{Type: TokenComma, Value: ",", Pos: startPos, Line: startLine, Column: startCol}
	case '=':
		l.advance()
		return Token{Type: TokenEq, Value: "=", Pos: startPos, Line: startLine, Column: startCol}
	case '"':
		return l.scanString()
	}

	if isIdentStart(ch) {
		return l.scanIdent()
	}

	l.advance()
	return Token{
		Type:   TokenError,
		Value:  fmt.Sprintf("unexpected character: %q", ch),
		Pos:    startPos,
		Line:   startLine,
		Column: startCol,
	}
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.advance()
	}
}

// scanString scans a double-quoted literal. Escapes follow Go string
// literal rules so that strconv.Quote output always lexes back.
func (l *Lexer) scanString() Token {
	startPos := l.pos
	startLine := l.line
	startCol := l.column
	l.advance() // skip opening quote

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\n' {
			break
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.advance()
			l.advance()
			continue
		}
		if ch == '"' {
			l.advance() // skip closing quote
			raw := l.input[startPos:l.pos]
			value, err := strconv.Unquote(raw)
			if err != nil {
				return Token{
					Type:   TokenError,
					Value:  fmt.Sprintf("invalid string literal %s", raw),
					Pos:    startPos,
					Line:   startLine,
					Column: startCol,
				}
			}
			return Token{Type: TokenString, Value: value, Pos: startPos, Line: startLine, Column: startCol}
		}
		l.advance()
	}

	return Token{
		Type:   TokenError,
		Value:  "unterminated string",
		Pos:    startPos,
		Line:   startLine,
		Column: startCol,
	}
}

func (l *Lexer) scanIdent() Token {
	startPos := l.pos
	startLine := l.line
	startCol := l.column

	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.advance()
	}

	return Token{
		Type:   TokenIdent,
		Value:  l.input[startPos:l.pos],
		Pos:    startPos,
		Line:   startLine,
		Column: startCol,
	}
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
