package compiler

import (
	"github.com/chazu/sabri/vm"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sabri.compiler")

// ---------------------------------------------------------------------------
// Backend: the compiler as a vm.CompilerBackend
// ---------------------------------------------------------------------------

// Backend compiles successive source units into one growing Program. It
// owns the global symbol table, which survives across units.
type Backend struct {
	globals *SymbolTable
}

// NewBackend creates a backend whose global table starts with globals, in
// slot order.
func NewBackend(globals []string) *Backend {
	table := NewSymbolTable(nil)
	for _, name := range globals {
		table.Add(name)
	}
	return &Backend{globals: table}
}

// Factory adapts NewBackend to vm.CompileFunc.
func Factory(globals []string) vm.CompilerBackend {
	return NewBackend(globals)
}

// Compile lexes, parses and compiles source, appending to prog. On failure
// prog and the global table are rolled back.
func (b *Backend) Compile(source string, prog *vm.Program) (vm.Addr, error) {
	codeLen, litLen, globalLen := prog.Len(), len(prog.Literals), b.globals.Len()

	program, err := Parse(source)
	if err != nil {
		return vm.InvalidAddr, err
	}
	entry, err := NewCompiler(prog, b.globals).CompileProgram(program)
	if err != nil {
		prog.Truncate(codeLen, litLen)
		b.globals.Truncate(globalLen)
		log.Debugf("compile failed: %v", err)
		return vm.InvalidAddr, err
	}
	return entry, nil
}

// Check compiles source into a scratch program against a copy of the global
// table and reports the first error, leaving the backend untouched.
func (b *Backend) Check(source string) error {
	program, err := Parse(source)
	if err != nil {
		return err
	}
	scratch := NewBackend(b.globals.Names())
	_, err = NewCompiler(vm.NewProgram(), scratch.globals).CompileProgram(program)
	return err
}

// GlobalNames returns the global names in slot order.
func (b *Backend) GlobalNames() []string {
	return b.globals.Names()
}

// Name returns the name of this compiler backend.
func (b *Backend) Name() string {
	return "sabri"
}

// CompileSource compiles a standalone source text into a fresh program with
// the VM builtins as globals.
func CompileSource(source string) (*vm.Program, vm.Addr, error) {
	prog := vm.NewProgram()
	entry, err := NewBackend(vm.BuiltinNames()).Compile(source, prog)
	if err != nil {
		return nil, vm.InvalidAddr, err
	}
	return prog, entry, nil
}
