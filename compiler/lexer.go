package compiler

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: longest-match tokenizer for a single source line
// ---------------------------------------------------------------------------

// scanner is a cursor over one line of source. It is copied by value so
// every matcher can probe the input without disturbing the others.
type scanner struct {
	input  string // text of the line, without the newline
	pos    int    // current byte position in input
	line   int    // 1-based line number
	offset int    // byte offset of the line start in the whole source
	prev   Token  // last significant token emitted on this line
}

func (s *scanner) end() bool {
	return s.pos >= len(s.input)
}

func (s *scanner) peek() rune {
	if s.end() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.pos:])
	return r
}

func (s *scanner) peekN(n int) rune {
	p := s.pos
	for i := 0; i < n; i++ {
		if p >= len(s.input) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(s.input[p:])
		p += size
	}
	if p >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[p:])
	return r
}

func (s *scanner) next() rune {
	if s.end() {
		return 0
	}
	r, size := utf8.DecodeRuneInString(s.input[s.pos:])
	s.pos += size
	return r
}

func (s *scanner) positionAt(pos int) Position {
	return Position{
		Offset: s.offset + pos,
		Line:   s.line,
		Column: utf8.RuneCountInString(s.input[:pos]) + 1,
	}
}

// Matcher recognizes one class of token at the scanner's position.
//
// A matcher that does not recognize the input returns ok == false and may
// leave the scanner anywhere; its copy is discarded. A matcher that
// recognizes the start of its token but finds it malformed returns an error,
// which aborts lexing.
type Matcher interface {
	Match(s *scanner) (tok Token, ok bool, err error)
}

// Lexer tokenizes source lines with an ordered set of matchers. At each
// position every matcher is tried and the longest match wins; ties go to the
// earlier matcher.
type Lexer struct {
	matchers []Matcher
}

// NewLexer creates a lexer with the standard matcher set.
func NewLexer() *Lexer {
	return &Lexer{
		matchers: []Matcher{
			whitespaceMatcher{},
			commentMatcher{},
			numberMatcher{},
			stringMatcher{},
			newConstantMatcher(TokenOperator, operatorConstants),
			newConstantMatcher(TokenSymbol, symbolConstants),
			identifierMatcher{},
		},
	}
}

// LexLine tokenizes one line. Whitespace and comments are dropped.
func (l *Lexer) LexLine(text string, line, offset int) ([]Token, error) {
	s := &scanner{input: text, line: line, offset: offset}
	var tokens []Token

	for !s.end() {
		var (
			best     Token
			bestScan scanner
			found    bool
		)
		for _, m := range l.matchers {
			probe := *s
			tok, ok, err := m.Match(&probe)
			if err != nil {
				return nil, err
			}
			if !ok || probe.pos <= s.pos {
				continue
			}
			if !found || probe.pos > bestScan.pos {
				best, bestScan, found = tok, probe, true
			}
		}
		if !found {
			r := s.peek()
			return nil, lexErrorf(s.positionAt(s.pos), "unexpected character: %q", r)
		}
		*s = bestScan
		if best.Type == TokenWhitespace {
			continue
		}
		tokens = append(tokens, best)
		s.prev = best
	}
	return tokens, nil
}

// Tokenize runs the whole front end on source: per-line indentation, the
// block tree, and flattening. The result is EOF-terminated.
func Tokenize(source string) ([]Token, error) {
	tree := NewBlockTree(source, 0)
	root, err := tree.Tree(tree.Indents())
	if err != nil {
		return nil, err
	}
	return Flatten(root), nil
}

// ---------------------------------------------------------------------------
// Matchers
// ---------------------------------------------------------------------------

type whitespaceMatcher struct{}

func (whitespaceMatcher) Match(s *scanner) (Token, bool, error) {
	start := s.pos
	for !s.end() && unicode.IsSpace(s.peek()) {
		s.next()
	}
	if s.pos == start {
		return Token{}, false, nil
	}
	return Token{Type: TokenWhitespace, Pos: s.positionAt(start)}, true, nil
}

// commentMatcher swallows a '~' comment up to the end of the line.
type commentMatcher struct{}

func (commentMatcher) Match(s *scanner) (Token, bool, error) {
	if s.peek() != '~' {
		return Token{}, false, nil
	}
	start := s.pos
	s.pos = len(s.input)
	return Token{Type: TokenWhitespace, Pos: s.positionAt(start)}, true, nil
}

// numberMatcher reads integer and float literals. A leading '-' is part of
// the literal only when the previous token cannot end an operand.
type numberMatcher struct{}

func (numberMatcher) Match(s *scanner) (Token, bool, error) {
	start := s.pos
	pos := s.positionAt(start)

	var sb strings.Builder
	if s.peek() == '-' {
		if s.prev.endsOperand() {
			return Token{}, false, nil
		}
		if r := s.peekN(1); !isDigit(r) && !(r == '.' && isDigit(s.peekN(2))) {
			return Token{}, false, nil
		}
		sb.WriteRune(s.next())
	}

	switch {
	case isDigit(s.peek()):
	case s.peek() == '.' && isDigit(s.peekN(1)):
		sb.WriteRune('0')
	default:
		return Token{}, false, nil
	}

	isFloat := false
	for !s.end() {
		r := s.peek()
		switch {
		case isDigit(r):
			sb.WriteRune(s.next())
		case r == '.':
			if isFloat {
				return Token{}, false, lexErrorf(s.positionAt(s.pos), "illegal decimal point in number literal")
			}
			isFloat = true
			sb.WriteRune(s.next())
		case IsIdentStart(r):
			return Token{}, false, lexErrorf(pos, "malformed number literal: %q", s.input[start:s.pos]+string(r))
		default:
			goto done
		}
	}
done:
	literal := sb.String()
	if isFloat {
		if strings.HasSuffix(literal, ".") {
			return Token{}, false, lexErrorf(pos, "malformed number literal: %q", literal)
		}
		if _, err := strconv.ParseFloat(literal, 64); err != nil {
			return Token{}, false, lexErrorf(pos, "malformed number literal: %q", literal)
		}
		return Token{Type: TokenFloat, Literal: literal, Pos: pos}, true, nil
	}
	if _, err := strconv.ParseInt(literal, 10, 64); err != nil {
		return Token{}, false, lexErrorf(pos, "integer literal out of range: %s", literal)
	}
	return Token{Type: TokenInteger, Literal: literal, Pos: pos}, true, nil
}

// stringMatcher reads "..." and '...' literals with backslash escapes, and
// r"..." raw literals that are copied verbatim up to the closing quote.
type stringMatcher struct{}

func (stringMatcher) Match(s *scanner) (Token, bool, error) {
	pos := s.positionAt(s.pos)

	raw := false
	delim := s.peek()
	if delim == 'r' && (s.peekN(1) == '"' || s.peekN(1) == '\'') {
		raw = true
		s.next()
		delim = s.peek()
	}
	if delim != '"' && delim != '\'' {
		return Token{}, false, nil
	}
	s.next() // opening quote

	var sb strings.Builder
	for {
		if s.end() {
			return Token{}, false, lexErrorf(pos, "unterminated string literal")
		}
		r := s.next()
		if r == delim {
			break
		}
		if raw || r != '\\' {
			sb.WriteRune(r)
			continue
		}
		if s.end() {
			return Token{}, false, lexErrorf(pos, "unterminated string literal")
		}
		switch esc := s.next(); esc {
		case '\\', '"', '\'':
			sb.WriteRune(esc)
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		default:
			return Token{}, false, lexErrorf(s.positionAt(s.pos), "invalid escape sequence: \\%c", esc)
		}
	}
	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}, true, nil
}

// constantMatcher matches a fixed set of strings, longest first.
type constantMatcher struct {
	typ       TokenType
	constants []string
}

func newConstantMatcher(typ TokenType, constants []string) constantMatcher {
	sorted := append([]string(nil), constants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	return constantMatcher{typ: typ, constants: sorted}
}

func (m constantMatcher) Match(s *scanner) (Token, bool, error) {
	rest := s.input[s.pos:]
	for _, c := range m.constants {
		if strings.HasPrefix(rest, c) {
			pos := s.positionAt(s.pos)
			s.pos += len(c)
			return Token{Type: m.typ, Literal: c, Pos: pos}, true, nil
		}
	}
	return Token{}, false, nil
}

// identifierMatcher reads identifiers and classifies reserved words.
type identifierMatcher struct{}

func (identifierMatcher) Match(s *scanner) (Token, bool, error) {
	if !IsIdentStart(s.peek()) {
		return Token{}, false, nil
	}
	start := s.pos
	for !s.end() && IsIdentChar(s.peek()) {
		s.next()
	}
	literal := s.input[start:s.pos]
	typ := TokenIdentifier
	if reserved, ok := reservedWords[literal]; ok {
		typ = reserved
	}
	return Token{Type: typ, Literal: literal, Pos: s.positionAt(start)}, true, nil
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
