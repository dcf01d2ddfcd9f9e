package compiler

import (
	"fmt"

	"github.com/chazu/sabri/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile AST to bytecode
// ---------------------------------------------------------------------------

// blockKind selects how a block manages its scope.
type blockKind int

const (
	blockTop    blockKind = iota // definitions go to the global table
	blockFunc                    // scope pre-opened by the function's NEWENV
	blockNested                  // scope opened on the first definition
)

// blockState tracks the block being compiled.
type blockState struct {
	kind   blockKind
	opened bool    // a nested block has opened its scope
	newenv vm.Addr // the NEWENV to back-patch when the scope closes
	parent *blockState
}

// Compiler is the compilation context threaded through every node. It
// appends code to prog and keeps the symbol table chain in step with the
// environment frames the emitted code will create.
type Compiler struct {
	prog    *vm.Program
	globals *SymbolTable
	scope   *SymbolTable
	block   *blockState

	// level counts run-time frames opened since the top level.
	level int

	// temps counts values pushed by enclosing expressions of the current
	// function that an operator or call has not yet consumed. A jump out
	// of a block expression must drop them.
	temps int

	loops fixupStack
	funcs fixupStack

	err error
}

// NewCompiler creates a compiler emitting into prog with globals as the
// outermost scope.
func NewCompiler(prog *vm.Program, globals *SymbolTable) *Compiler {
	return &Compiler{prog: prog, globals: globals, scope: globals}
}

// CompileProgram compiles a top-level block followed by HALT and returns the
// entry address. The program's value is left on the value stack.
func (c *Compiler) CompileProgram(program *Block) (vm.Addr, error) {
	entry := c.prog.Len()
	c.compileBlock(program, blockTop)
	c.emit(program, vm.OpHALT, 0, 0)
	if c.err != nil {
		return vm.InvalidAddr, c.err
	}
	return entry, nil
}

// Errors are sticky: the first one is kept and later emits are skipped.

func (c *Compiler) fail(n Node, format string, args ...interface{}) {
	if c.err == nil {
		c.err = parseErrorf(n.Span().Start, format, args...)
	}
}

func (c *Compiler) emit(n Node, op vm.Opcode, a, b int) vm.Addr {
	if c.err != nil {
		return vm.InvalidAddr
	}
	if a < 0 || b < 0 {
		c.fail(n, "%s: negative operand", op)
		return vm.InvalidAddr
	}
	addr, err := c.prog.Emit(op, uint32(a), uint32(b))
	if err != nil {
		c.fail(n, "%v", err)
	}
	return addr
}

func (c *Compiler) patch(n Node, addr, target vm.Addr) {
	if c.err != nil {
		return
	}
	if err := c.prog.Patch(addr, target); err != nil {
		c.fail(n, "%v", err)
	}
}

func (c *Compiler) pushLiteral(n Node, v vm.Value) {
	if c.err != nil {
		return
	}
	idx, err := c.prog.AddLiteral(v)
	if err != nil {
		c.fail(n, "%v", err)
		return
	}
	c.emit(n, vm.OpPUSHLIT, int(idx), 0)
}

func (c *Compiler) pushNull(n Node) {
	c.emit(n, vm.OpPUSHLIT, 0, 0)
}

// popEnv emits popenv n when n > 0.
func (c *Compiler) popEnv(n Node, count int) {
	if count > 0 {
		c.emit(n, vm.OpPOPENV, count, 0)
	}
}

// popVal emits popval n when n > 0.
func (c *Compiler) popVal(n Node, count int) {
	if count > 0 {
		c.emit(n, vm.OpPOPVAL, count, 0)
	}
}

// operand compiles e as a temporary that a later instruction consumes.
func (c *Compiler) operand(e Expr) {
	c.compileExpr(e)
	c.temps++
}

// ---------------------------------------------------------------------------
// Blocks and scopes
// ---------------------------------------------------------------------------

// compileBlock compiles statements so that exactly one value, the last
// statement's, remains. An empty block yields null.
func (c *Compiler) compileBlock(b *Block, kind blockKind) {
	state := &blockState{kind: kind, parent: c.block}
	c.block = state
	defer func() { c.block = state.parent }()

	if len(b.Statements) == 0 {
		c.pushNull(b)
		return
	}
	for i, stmt := range b.Statements {
		c.compileStmt(stmt)
		if i < len(b.Statements)-1 {
			c.emit(stmt, vm.OpPOPVAL, 1, 0)
		}
	}

	if state.opened {
		if c.err == nil {
			if err := c.prog.FixNewEnv(state.newenv, 0, c.scope.Len()); err != nil {
				c.fail(b, "%v", err)
			}
		}
		c.emit(b, vm.OpPOPENV, 1, 0)
		c.scope = c.scope.Parent()
		c.level--
	}
}

// defineName binds name in the current block's scope, opening the scope of
// a nested block first if needed, and returns the slot.
func (c *Compiler) defineName(n Node, name string) int {
	if c.block.kind == blockNested && !c.block.opened {
		c.block.opened = true
		c.block.newenv = c.emit(n, vm.OpNEWENV, 0, 0)
		c.prog.Comment(c.block.newenv, "scope")
		c.scope = NewSymbolTable(c.scope)
		c.level++
	}
	slot := c.scope.Add(name)
	if slot > vm.Max12 {
		c.fail(n, "too many variables in scope (%d)", slot+1)
	}
	return slot
}

// resolve looks up name and fails if it is not declared.
func (c *Compiler) resolve(n Node, name string) (slot, depth int, ok bool) {
	slot, depth, ok = c.scope.Lookup(name)
	if !ok {
		c.fail(n, "undeclared identifier %q", name)
		return 0, 0, false
	}
	if depth > vm.Max12 {
		c.fail(n, "scope nesting too deep for %q", name)
		return 0, 0, false
	}
	return slot, depth, true
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStmt(stmt Stmt) {
	if c.err != nil {
		return
	}
	switch s := stmt.(type) {
	case *ExprStmt:
		c.compileExpr(s.Expr)
	case *Definition:
		c.compileDefinition(s)
	case *Assignment:
		c.compileAssignment(s)
	case *If:
		c.compileIf(s)
	case *While:
		c.compileWhile(s)
	case *Break:
		c.compileBreak(s)
	case *Continue:
		c.compileContinue(s)
	case *Return:
		c.compileReturn(s)
	default:
		c.fail(stmt, "unsupported statement %T", stmt)
	}
}

// compileDefinition binds the name before compiling the value, so a
// function may refer to itself.
func (c *Compiler) compileDefinition(s *Definition) {
	slot := c.defineName(s, s.Name)
	if fn, ok := s.Value.(*FuncLit); ok {
		c.compileFuncLit(fn, s.Name)
	} else if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.pushNull(s)
	}
	addr := c.emit(s, vm.OpSETVAR, slot, 0)
	c.prog.Comment(addr, s.Name+" :=")
}

func (c *Compiler) compileAssignment(s *Assignment) {
	target, ok := s.Target.(*Identifier)
	if !ok {
		c.fail(s.Target, "invalid assignment target")
		return
	}
	slot, depth, ok := c.resolve(target, target.Name)
	if !ok {
		return
	}
	c.compileExpr(s.Value)
	addr := c.emit(s, vm.OpSETVAR, slot, depth)
	c.prog.Comment(addr, target.Name+" =")
}

// compileIf emits:
//
//	cond; test; jf ELSE; then; popval 1; jmp END
//	ELSE: else; popval 1
//	END:  pushlit 0
func (c *Compiler) compileIf(s *If) {
	c.compileExpr(s.Cond)
	c.emit(s, vm.OpTEST, 0, 0)
	jf := c.emit(s, vm.OpJF, int(vm.InvalidAddr), 0)

	c.compileBlock(s.Then, blockNested)
	c.emit(s, vm.OpPOPVAL, 1, 0)

	if s.Else != nil {
		jmp := c.emit(s, vm.OpJMP, int(vm.InvalidAddr), 0)
		c.patch(s, jf, c.prog.Len())
		c.compileBlock(s.Else, blockNested)
		c.emit(s, vm.OpPOPVAL, 1, 0)
		c.patch(s, jmp, c.prog.Len())
	} else {
		c.patch(s, jf, c.prog.Len())
	}
	c.pushNull(s)
}

// compileWhile emits:
//
//	START: cond; test; jf END
//	       body; popval 1; jmp START
//	END:   pushlit 0
//
// The jf and every break inside the body join the loop's fixup context.
func (c *Compiler) compileWhile(s *While) {
	start := c.prog.Len()
	loop := c.loops.push(c.level, c.temps, start)

	c.compileExpr(s.Cond)
	c.emit(s, vm.OpTEST, 0, 0)
	loop.add(c.emit(s, vm.OpJF, int(vm.InvalidAddr), 0))

	c.compileBlock(s.Body, blockNested)
	c.emit(s, vm.OpPOPVAL, 1, 0)
	c.emit(s, vm.OpJMP, int(start), 0)

	c.loops.pop()
	if c.err == nil {
		if err := loop.resolve(c.prog, c.prog.Len()); err != nil {
			c.fail(s, "%v", err)
		}
	}
	c.pushNull(s)
}

func (c *Compiler) compileBreak(s *Break) {
	loop := c.loops.top()
	if loop == nil {
		c.fail(s, "break outside loop")
		return
	}
	c.popVal(s, c.temps-loop.temps)
	c.popEnv(s, c.level-loop.level)
	loop.add(c.emit(s, vm.OpJMP, int(vm.InvalidAddr), 0))
}

func (c *Compiler) compileContinue(s *Continue) {
	loop := c.loops.top()
	if loop == nil {
		c.fail(s, "continue outside loop")
		return
	}
	c.popVal(s, c.temps-loop.temps)
	c.popEnv(s, c.level-loop.level)
	c.emit(s, vm.OpJMP, int(loop.start), 0)
}

// compileReturn drops pending temporaries, leaves the value on the stack,
// closes every frame the function opened (its own included) and jumps to
// the function's RET.
func (c *Compiler) compileReturn(s *Return) {
	fn := c.funcs.top()
	if fn == nil {
		c.fail(s, "return outside function")
		return
	}
	saved := c.temps
	c.popVal(s, c.temps-fn.temps)
	c.temps = fn.temps
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.pushNull(s)
	}
	c.temps = saved
	c.popEnv(s, c.level-fn.level)
	fn.add(c.emit(s, vm.OpJMP, int(vm.InvalidAddr), 0))
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(expr Expr) {
	if c.err != nil {
		return
	}
	switch e := expr.(type) {
	case *IntLiteral:
		c.pushLiteral(e, vm.Number(float64(e.Value)))
	case *FloatLiteral:
		c.pushLiteral(e, vm.Number(e.Value))
	case *StringLiteral:
		c.pushLiteral(e, vm.Str(e.Value))
	case *BoolLiteral:
		c.pushLiteral(e, vm.Bool(e.Value))
	case *Identifier:
		if slot, depth, ok := c.resolve(e, e.Name); ok {
			addr := c.emit(e, vm.OpGETVAR, slot, depth)
			c.prog.Comment(addr, e.Name)
		}
	case *Call:
		c.compileCall(e)
	case *BinaryOp:
		c.compileBinaryOp(e)
	case *Block:
		c.compileBlock(e, blockNested)
	case *FuncLit:
		c.compileFuncLit(e, "")
	case *EndOfInput:
		c.pushNull(e)
	default:
		c.fail(expr, "unsupported expression %T", expr)
	}
}

func (c *Compiler) compileCall(e *Call) {
	if len(e.Args) > vm.Max12 {
		c.fail(e, "too many arguments (%d)", len(e.Args))
		return
	}
	c.operand(e.Callee)
	for _, a := range e.Args {
		c.operand(a)
	}
	c.temps -= 1 + len(e.Args)
	c.emit(e, vm.OpCALL, len(e.Args), 0)
}

var arithmeticOps = map[Operand]vm.Opcode{
	OpAdd: vm.OpADD,
	OpSub: vm.OpSUB,
	OpMul: vm.OpMUL,
	OpDiv: vm.OpDIV,
}

// compileBinaryOp emits a dedicated instruction for + - * / and a call of
// the operator's binding for everything else.
func (c *Compiler) compileBinaryOp(e *BinaryOp) {
	if op, ok := arithmeticOps[e.Op]; ok {
		c.operand(e.Left)
		c.compileExpr(e.Right)
		c.temps--
		c.emit(e, op, 0, 0)
		return
	}
	name := e.Op.String()
	slot, depth, ok := c.resolve(e, name)
	if !ok {
		return
	}
	addr := c.emit(e, vm.OpGETVAR, slot, depth)
	c.prog.Comment(addr, name)
	c.temps++
	c.operand(e.Left)
	c.compileExpr(e.Right)
	c.temps -= 2
	c.emit(e, vm.OpCALL, 2, 0)
}

// compileFuncLit emits:
//
//	closure BODY; jmp AFTER
//	BODY: newenv params,total; body; popenv 1
//	RET:  ret
//	AFTER:
//
// The function gets its own fixup context for returns and hides the
// enclosing loops.
func (c *Compiler) compileFuncLit(e *FuncLit, name string) {
	if len(e.Params) > vm.Max12 {
		c.fail(e, "too many parameters (%d)", len(e.Params))
		return
	}
	c.emit(e, vm.OpCLOSURE, int(c.prog.Len()+2), 0)
	jmp := c.emit(e, vm.OpJMP, int(vm.InvalidAddr), 0)

	body := c.emit(e, vm.OpNEWENV, len(e.Params), len(e.Params))
	if name == "" {
		name = fmt.Sprintf("fn_%x", uint32(body))
	}
	c.prog.Label(body, name)

	savedLoops, savedScope, savedLevel, savedTemps := c.loops, c.scope, c.level, c.temps
	c.loops = nil
	c.temps = 0
	fn := c.funcs.push(c.level, 0, body)
	c.scope = NewSymbolTable(c.scope)
	for _, p := range e.Params {
		c.scope.Add(p)
	}
	c.level++

	c.compileBlock(e.Body, blockFunc)
	total := c.scope.Len()
	c.emit(e, vm.OpPOPENV, 1, 0)
	ret := c.emit(e, vm.OpRET, 0, 0)

	c.funcs.pop()
	c.loops, c.scope, c.level, c.temps = savedLoops, savedScope, savedLevel, savedTemps

	if c.err != nil {
		return
	}
	if err := c.prog.FixNewEnv(body, len(e.Params), total); err != nil {
		c.fail(e, "%v", err)
		return
	}
	if err := fn.resolve(c.prog, ret); err != nil {
		c.fail(e, "%v", err)
		return
	}
	c.patch(e, jmp, c.prog.Len())
}
