package compiler

import (
	"errors"
	"fmt"
)

// LexError reports malformed input found while scanning.
type LexError struct {
	Pos Position
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Msg)
}

func lexErrorf(pos Position, format string, args ...interface{}) *LexError {
	return &LexError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// ParseError reports a malformed construct, or a construct the compiler
// cannot translate (undeclared identifier, bad assignment target, operand
// out of range).
type ParseError struct {
	Pos Position
	Msg string

	// Incomplete is set when the input ended where more was required, such
	// as the body of a function literal. An interactive reader can keep
	// collecting lines.
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Pos, e.Msg)
}

func parseErrorf(pos Position, format string, args ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsIncomplete reports whether err means the input stopped short.
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Incomplete
}

// ErrorPosition extracts the source position from a lex or parse error.
func ErrorPosition(err error) (Position, bool) {
	var le *LexError
	if errors.As(err, &le) {
		return le.Pos, true
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Pos, true
	}
	return Position{}, false
}
