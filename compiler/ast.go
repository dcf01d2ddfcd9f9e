package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for sabri
// ---------------------------------------------------------------------------

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Block is an ordered sequence of statements. Its value is the value of the
// last statement, or null when empty.
type Block struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) expr()      {}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Identifier represents a variable reference.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// Call represents callee(args...). Prefix operators parse as a call of the
// operator's global binding with one argument.
type Call struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// BinaryOp represents left op right.
type BinaryOp struct {
	SpanVal Span
	Left    Expr
	Op      Operand
	Right   Expr
}

func (n *BinaryOp) Span() Span { return n.SpanVal }
func (n *BinaryOp) node()      {}
func (n *BinaryOp) expr()      {}

// FuncLit represents a function literal: a, b -> followed by a block.
type FuncLit struct {
	SpanVal Span
	Params  []string
	Body    *Block
}

func (n *FuncLit) Span() Span { return n.SpanVal }
func (n *FuncLit) node()      {}
func (n *FuncLit) expr()      {}

// EndOfInput marks the end of the token stream where an expression was
// expected.
type EndOfInput struct {
	SpanVal Span
}

func (n *EndOfInput) Span() Span { return n.SpanVal }
func (n *EndOfInput) node()      {}
func (n *EndOfInput) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ExprStmt represents an expression used as a statement.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Definition represents name := [value]. A missing value defines null.
type Definition struct {
	SpanVal Span
	Name    string
	Value   Expr // may be nil
}

func (n *Definition) Span() Span { return n.SpanVal }
func (n *Definition) node()      {}
func (n *Definition) stmt()      {}

// Assignment represents target = value. Only identifier targets compile.
type Assignment struct {
	SpanVal Span
	Target  Expr
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) stmt()      {}

// If represents a conditional with an optional else block.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    *Block // may be nil
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// While represents a pre-tested loop.
type While struct {
	SpanVal Span
	Cond    Expr
	Body    *Block
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) stmt()      {}

// Break leaves the innermost loop.
type Break struct {
	SpanVal Span
}

func (n *Break) Span() Span { return n.SpanVal }
func (n *Break) node()      {}
func (n *Break) stmt()      {}

// Continue restarts the innermost loop.
type Continue struct {
	SpanVal Span
}

func (n *Continue) Span() Span { return n.SpanVal }
func (n *Continue) node()      {}
func (n *Continue) stmt()      {}

// Return leaves the innermost function with a value (null if omitted).
type Return struct {
	SpanVal Span
	Value   Expr // may be nil
}

func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}
func (n *Return) stmt()      {}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// Operand is a binary operator.
type Operand int

const (
	OpMul Operand = iota
	OpDiv
	OpMod
	OpPow
	OpAdd
	OpSub
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
)

var operandInfo = [...]struct {
	symbol string
	prec   int
}{
	OpMul: {"*", 1},
	OpDiv: {"/", 1},
	OpMod: {"%", 1},
	OpPow: {"^", 1},
	OpAdd: {"+", 2},
	OpSub: {"-", 2},
	OpEq:  {"==", 3},
	OpNe:  {"!=", 3},
	OpLt:  {"<", 4},
	OpGt:  {">", 4},
	OpLe:  {"<=", 4},
	OpGe:  {">=", 4},
	OpAnd: {"and", 4},
	OpOr:  {"or", 4},
}

// String returns the operator's source symbol, which is also the name of
// its global binding.
func (o Operand) String() string {
	if int(o) < len(operandInfo) {
		return operandInfo[o].symbol
	}
	return fmt.Sprintf("Operand(%d)", int(o))
}

// Precedence returns the operator's tier. Lower tiers bind tighter.
func (o Operand) Precedence() int {
	return operandInfo[o].prec
}

// LookupOperand maps an operator symbol to its Operand.
func LookupOperand(symbol string) (Operand, bool) {
	for i, info := range operandInfo {
		if info.symbol == symbol {
			return Operand(i), true
		}
	}
	return 0, false
}
