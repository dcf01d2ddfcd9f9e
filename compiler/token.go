package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the sabri lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenEOL
	TokenBlock // indented sub-stream, see Token.Block

	// Literals
	TokenInteger // 42, -7
	TokenFloat   // 3.14, .5
	TokenString  // "hi", 'hi', r"raw"
	TokenBool    // true, false

	TokenIdentifier // foo, even?, x@2
	TokenKeyword    // if, else, while, break, continue, return
	TokenOperator   // + - * / % ^ == != < > <= >= and or !
	TokenSymbol     // := = -> ( ) ,

	// Produced by the whitespace matcher and dropped before the token
	// reaches the block tree.
	TokenWhitespace
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenEOL:        "EOL",
	TokenBlock:      "BLOCK",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenBool:       "BOOL",
	TokenIdentifier: "IDENTIFIER",
	TokenKeyword:    "KEYWORD",
	TokenOperator:   "OPERATOR",
	TokenSymbol:     "SYMBOL",
	TokenWhitespace: "WHITESPACE",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token. Tokens are never modified after the
// lexer hands them out.
type Token struct {
	Type    TokenType
	Literal string   // the text after escape processing
	Pos     Position // start position

	// Block holds the flattened, EOF-terminated sub-stream of a TokenBlock.
	Block []Token
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenEOL:
		return "EOL"
	case TokenBlock:
		return fmt.Sprintf("BLOCK(%d tokens)", len(t.Block))
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Is reports whether the token has the given type and literal.
func (t Token) Is(typ TokenType, literal string) bool {
	return t.Type == typ && t.Literal == literal
}

// endsOperand reports whether a token can end an operand. A '-' directly
// after such a token is the binary operator, never a negative literal.
func (t Token) endsOperand() bool {
	switch t.Type {
	case TokenInteger, TokenFloat, TokenString, TokenBool, TokenIdentifier:
		return true
	case TokenSymbol:
		return t.Literal == ")"
	}
	return false
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"true":     TokenBool,
	"false":    TokenBool,
	"and":      TokenOperator,
	"or":       TokenOperator,
	"if":       TokenKeyword,
	"else":     TokenKeyword,
	"while":    TokenKeyword,
	"break":    TokenKeyword,
	"continue": TokenKeyword,
	"return":   TokenKeyword,
}

// ReservedWords returns the reserved words in sorted order.
func ReservedWords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// operatorConstants and symbolConstants feed the constant matchers.
var operatorConstants = []string{
	"==", "!=", "<=", ">=", "<", ">", "+", "-", "*", "/", "%", "^", "!",
}

var symbolConstants = []string{
	":=", "->", "=", "(", ")", ",",
}

// IsIdentStart returns true if r can begin an identifier.
func IsIdentStart(r rune) bool {
	return r == '_' || isLetter(r)
}

// IsIdentChar returns true if r can continue an identifier.
func IsIdentChar(r rune) bool {
	switch r {
	case '_', '?', '@':
		return true
	}
	return isLetter(r) || isDigit(r)
}
