package vm

import "io"

// ---------------------------------------------------------------------------
// Builtin globals
// ---------------------------------------------------------------------------

// Builtin describes a global installed in every VM.
type Builtin struct {
	Name string
	Doc  string
}

// builtinDocs lists the builtins in slot order. The order is part of the
// image format: images record global names and are checked against it.
var builtinDocs = []Builtin{
	{"null", "The null value."},
	{"true", "Boolean true."},
	{"false", "Boolean false."},
	{"puts", "puts(args...) writes the arguments separated by spaces."},
	{"putsl", "putsl(args...) writes the arguments separated by spaces, then a newline."},
	{"putsf", "putsf(format, args...) writes format with %d %x %f %s %% expanded."},
	{"!", "!(x) is true when x is null, false or zero."},
	{"==", "a == b compares structurally; functions compare by identity."},
	{"!=", "a != b is the negation of ==."},
	{"<", "a < b orders two numbers or two strings."},
	{"<=", "a <= b orders two numbers or two strings."},
	{">", "a > b orders two numbers or two strings."},
	{">=", "a >= b orders two numbers or two strings."},
	{"+", "+(a, b) adds two numbers."},
	{"-", "-(a, b) subtracts; -(a) negates."},
	{"*", "*(a, b) multiplies two numbers."},
	{"/", "/(a, b) divides two numbers."},
	{"^", "a ^ b raises a to the power b."},
	{"%", "a % b is the floating remainder, truncated toward zero."},
	{"and", "a and b is true when both are truthy. Both sides are evaluated."},
	{"or", "a or b is true when either is truthy. Both sides are evaluated."},
	{"dump_env", "dump_env() writes the caller's environment chain."},
	{"type", "type(x) returns the kind of x as a string."},
	{"str", "str(x) converts x to its display string."},
}

// Builtins returns the builtin globals in slot order.
func Builtins() []Builtin {
	return append([]Builtin(nil), builtinDocs...)
}

// BuiltinNames returns the builtin global names in slot order.
func BuiltinNames() []string {
	names := make([]string, len(builtinDocs))
	for i, b := range builtinDocs {
		names[i] = b.Name
	}
	return names
}

func (vm *VM) builtinValue(name string) Value {
	out := func() io.Writer { return vm.output() }
	native := func(fn NativeFunc) Value {
		return &Native{Name: name, Fn: fn}
	}

	switch name {
	case "null":
		return Null{}
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "puts":
		return native(primPuts(out))
	case "putsl":
		return native(primPutsl(out))
	case "putsf":
		return native(primPutsf(out))
	case "!":
		return native(primNot)
	case "==":
		return native(primEq)
	case "!=":
		return native(primNe)
	case "<":
		return native(primLt)
	case "<=":
		return native(primLe)
	case ">":
		return native(primGt)
	case ">=":
		return native(primGe)
	case "+":
		return native(primAdd)
	case "-":
		return native(primSub)
	case "*":
		return native(primMul)
	case "/":
		return native(primDiv)
	case "^":
		return native(primPow)
	case "%":
		return native(primMod)
	case "and":
		return native(primAnd)
	case "or":
		return native(primOr)
	case "dump_env":
		return native(primDumpEnv(out))
	case "type":
		return native(primType)
	case "str":
		return native(primStr)
	}
	return Null{}
}

func (vm *VM) installBuiltins() {
	values := make([]Value, len(builtinDocs))
	for i, b := range builtinDocs {
		values[i] = vm.builtinValue(b.Name)
	}
	vm.Globals = NewEnv(nil, len(values), values)
	vm.globalNames = BuiltinNames()
	vm.builtins = len(values)
}
