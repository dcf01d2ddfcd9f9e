package compiler

import (
	"fmt"
	"sort"

	"github.com/chazu/sabri/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: whole-program checks that report every problem
// ---------------------------------------------------------------------------

// Severity grades a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one problem found by the analyzer.
type Diagnostic struct {
	Severity Severity
	Span     Span
	Msg      string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Span.Start, d.Severity, d.Msg)
}

// binding is a name visible to the analyzer.
type binding struct {
	def  Span
	used bool
	kind string // "global", "param" or "variable"
}

// scopeFrame is one level of the analyzer's scope chain.
type scopeFrame struct {
	names map[string]*binding
	order []string
}

func newScopeFrame() *scopeFrame {
	return &scopeFrame{names: make(map[string]*binding)}
}

// SemanticAnalyzer walks an AST with the same scoping rules as the code
// generator, but keeps going after a problem so that every one is
// reported. The code generator stops at the first.
type SemanticAnalyzer struct {
	diags []Diagnostic

	scopes    []*scopeFrame
	builtins  map[string]bool
	loopDepth int
	funcDepth int
}

// NewSemanticAnalyzer creates an analyzer whose global scope already holds
// globals. Only the VM's builtins among them are protected from
// redefinition warnings; other globals are earlier session definitions.
func NewSemanticAnalyzer(globals []string) *SemanticAnalyzer {
	s := &SemanticAnalyzer{builtins: make(map[string]bool)}
	for _, name := range vm.BuiltinNames() {
		s.builtins[name] = true
	}
	top := newScopeFrame()
	for _, name := range globals {
		top.names[name] = &binding{kind: "global", used: true}
	}
	s.scopes = []*scopeFrame{top}
	return s
}

// Diagnostics returns what has been found so far, in source order.
func (s *SemanticAnalyzer) Diagnostics() []Diagnostic {
	out := append([]Diagnostic(nil), s.diags...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.Start.Offset < out[j].Span.Start.Offset
	})
	return out
}

func (s *SemanticAnalyzer) errorAt(n Node, format string, args ...interface{}) {
	s.diags = append(s.diags, Diagnostic{SeverityError, n.Span(), fmt.Sprintf(format, args...)})
}

func (s *SemanticAnalyzer) warnAt(n Node, format string, args ...interface{}) {
	s.diags = append(s.diags, Diagnostic{SeverityWarning, n.Span(), fmt.Sprintf(format, args...)})
}

func (s *SemanticAnalyzer) current() *scopeFrame {
	return s.scopes[len(s.scopes)-1]
}

func (s *SemanticAnalyzer) push() {
	s.scopes = append(s.scopes, newScopeFrame())
}

// pop closes the innermost scope and warns about locals never read.
func (s *SemanticAnalyzer) pop() {
	frame := s.current()
	s.scopes = s.scopes[:len(s.scopes)-1]
	for _, name := range frame.order {
		b := frame.names[name]
		if !b.used && name != "_" {
			s.diags = append(s.diags, Diagnostic{
				Severity: SeverityWarning,
				Span:     b.def,
				Msg:      fmt.Sprintf("%s %q is never used", b.kind, name),
			})
		}
	}
}

func (s *SemanticAnalyzer) define(n Node, name, kind string) {
	frame := s.current()
	// Top-level definitions are visible to later units, so they count as used.
	used := len(s.scopes) == 1
	if used && s.builtins[name] {
		s.warnAt(n, "definition of %q hides the builtin", name)
	}
	if _, ok := frame.names[name]; ok {
		return
	}
	frame.names[name] = &binding{def: n.Span(), kind: kind, used: used}
	frame.order = append(frame.order, name)
}

func (s *SemanticAnalyzer) lookup(name string) *binding {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if b, ok := s.scopes[i].names[name]; ok {
			return b
		}
	}
	return nil
}

func (s *SemanticAnalyzer) reference(n Node, name string) {
	if b := s.lookup(name); b != nil {
		b.used = true
		return
	}
	s.errorAt(n, "undeclared identifier %q", name)
}

// AnalyzeProgram checks a top-level block.
func (s *SemanticAnalyzer) AnalyzeProgram(program *Block) {
	s.analyzeStatements(program.Statements)
}

func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
	s.checkUnreachableCode(stmts)
}

// analyzeBlock checks a nested block in a scope of its own.
func (s *SemanticAnalyzer) analyzeBlock(b *Block) {
	if b == nil {
		return
	}
	s.push()
	s.analyzeStatements(b.Statements)
	s.pop()
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *ExprStmt:
		s.analyzeExpr(st.Expr)
	case *Definition:
		s.define(st, st.Name, "variable")
		if st.Value != nil {
			s.analyzeExpr(st.Value)
		}
	case *Assignment:
		s.analyzeExpr(st.Value)
		s.checkAssignmentTarget(st)
	case *If:
		s.analyzeExpr(st.Cond)
		s.analyzeBlock(st.Then)
		s.analyzeBlock(st.Else)
	case *While:
		s.analyzeExpr(st.Cond)
		if b, ok := st.Cond.(*BoolLiteral); ok && !b.Value {
			s.warnAt(st.Body, "loop body never runs")
		}
		s.loopDepth++
		s.analyzeBlock(st.Body)
		s.loopDepth--
	case *Break:
		if s.loopDepth == 0 {
			s.errorAt(st, "break outside loop")
		}
	case *Continue:
		if s.loopDepth == 0 {
			s.errorAt(st, "continue outside loop")
		}
	case *Return:
		if s.funcDepth == 0 {
			s.errorAt(st, "return outside function")
		}
		if st.Value != nil {
			s.analyzeExpr(st.Value)
		}
	}
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Identifier:
		s.reference(e, e.Name)
	case *Call:
		s.analyzeExpr(e.Callee)
		for _, arg := range e.Args {
			s.analyzeExpr(arg)
		}
	case *BinaryOp:
		s.reference(e, e.Op.String())
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *Block:
		s.analyzeBlock(e)
	case *FuncLit:
		s.analyzeFuncLit(e)
	// Literals need no checking
	case *IntLiteral, *FloatLiteral, *StringLiteral, *BoolLiteral, *EndOfInput:
	}
}

// analyzeFuncLit checks a function body. Loops outside the function are
// not visible to break and continue inside it.
func (s *SemanticAnalyzer) analyzeFuncLit(fn *FuncLit) {
	savedLoops := s.loopDepth
	s.loopDepth = 0
	s.funcDepth++

	s.push()
	for _, p := range fn.Params {
		s.define(fn, p, "param")
	}
	s.analyzeStatements(fn.Body.Statements)
	s.pop()

	s.funcDepth--
	s.loopDepth = savedLoops
}

func (s *SemanticAnalyzer) checkAssignmentTarget(a *Assignment) {
	target, ok := a.Target.(*Identifier)
	if !ok {
		s.errorAt(a.Target, "invalid assignment target")
		return
	}
	b := s.lookup(target.Name)
	if b == nil {
		s.errorAt(target, "undeclared identifier %q", target.Name)
		return
	}
	if b.kind == "global" && s.builtins[target.Name] {
		s.warnAt(target, "assignment to builtin %q", target.Name)
	}
}

// checkUnreachableCode warns about the first statement after a jump.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		switch stmt.(type) {
		case *Return, *Break, *Continue:
			if i < len(stmts)-1 {
				s.warnAt(stmts[i+1], "unreachable code")
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Integration with the front end
// ---------------------------------------------------------------------------

// Analyze parses source and runs semantic analysis against globals. A lex
// or parse failure is returned as the only diagnostic.
func Analyze(source string, globals []string) []Diagnostic {
	program, err := Parse(source)
	if err != nil {
		pos, _ := ErrorPosition(err)
		msg := err.Error()
		switch e := err.(type) {
		case *LexError:
			msg = e.Msg
		case *ParseError:
			msg = e.Msg
		}
		return []Diagnostic{{Severity: SeverityError, Span: Span{Start: pos, End: pos}, Msg: msg}}
	}
	analyzer := NewSemanticAnalyzer(globals)
	analyzer.AnalyzeProgram(program)
	return analyzer.Diagnostics()
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
