package vm

// ---------------------------------------------------------------------------
// CompilerBackend: interface for compilation backends
// ---------------------------------------------------------------------------

// CompilerBackend compiles source text into a Program. The backend owns the
// global symbol table, which must stay in step with the VM's global frame:
// slot i of the frame holds the global named GlobalNames()[i].
type CompilerBackend interface {
	// Compile appends the code for source to prog and returns its entry
	// address. On failure prog and the global table are left as they were.
	Compile(source string, prog *Program) (Addr, error)

	// GlobalNames returns the global names in slot order.
	GlobalNames() []string

	// Name returns the name of this compiler backend.
	Name() string
}

// CompileFunc creates a backend whose global table starts with globals.
// It is used to inject the compiler package without an import cycle.
type CompileFunc func(globals []string) CompilerBackend

// UseCompiler installs a backend created by newBackend, seeded with the VM's
// current globals.
func (vm *VM) UseCompiler(newBackend CompileFunc) {
	vm.compileFunc = newBackend
	vm.compilerBackend = newBackend(vm.GlobalNames())
}

// CompilerBackend returns the installed backend, or nil.
func (vm *VM) CompilerBackend() CompilerBackend {
	return vm.compilerBackend
}
