package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/sabri/vm"
)

func analyze(source string) []Diagnostic {
	return Analyze(source, vm.BuiltinNames())
}

func findDiag(diags []Diagnostic, sev Severity, fragment string) bool {
	for _, d := range diags {
		if d.Severity == sev && strings.Contains(d.Msg, fragment) {
			return true
		}
	}
	return false
}

func TestSemanticAnalyzerClean(t *testing.T) {
	sources := []string{
		"x := 1\nputsl(x + 1)",
		"fact := n ->\n  if n <= 1\n    return 1\n  n * fact(n - 1)\nfact(5)",
		"i := 0\nwhile i < 3\n  i = i + 1",
		"make := ->\n  n := 0\n  ->\n    n = n + 1\n    n",
	}
	for _, src := range sources {
		if diags := analyze(src); len(diags) != 0 {
			t.Errorf("Analyze(%q) = %v, want no diagnostics", src, diags)
		}
	}
}

func TestSemanticAnalyzerReportsEveryError(t *testing.T) {
	diags := analyze("a + 1\nb = 2\nbreak\nreturn 3")
	for _, want := range []string{
		`undeclared identifier "a"`,
		`undeclared identifier "b"`,
		"break outside loop",
		"return outside function",
	} {
		if !findDiag(diags, SeverityError, want) {
			t.Errorf("diagnostics %v missing error %q", diags, want)
		}
	}
	if !HasErrors(diags) {
		t.Errorf("HasErrors(%v) = false", diags)
	}

	// Diagnostics come back in source order.
	for i := 1; i < len(diags); i++ {
		if diags[i].Span.Start.Offset < diags[i-1].Span.Start.Offset {
			t.Errorf("diagnostics out of order: %v", diags)
		}
	}
}

func TestSemanticAnalyzerScopes(t *testing.T) {
	tests := []struct {
		desc   string
		source string
		sev    Severity
		msg    string
	}{
		{"block local leaks", "if true\n  y := 1\n  y\ny", SeverityError, `undeclared identifier "y"`},
		{"use before definition", "z\nz := 1", SeverityError, `undeclared identifier "z"`},
		{"loop hidden by function", "while true\n  f := ->\n    continue\n  f()", SeverityError, "continue outside loop"},
		{"unused local", "f := ->\n  tmp := 1\n  2\nf()", SeverityWarning, `variable "tmp" is never used`},
		{"unused param", "f := x ->\n  1\nf(0)", SeverityWarning, `param "x" is never used`},
		{"unreachable", "f := ->\n  return 1\n  2\nf()", SeverityWarning, "unreachable code"},
		{"hides builtin", "puts := 1", SeverityWarning, `definition of "puts" hides the builtin`},
		{"assign builtin", "str = 1", SeverityWarning, `assignment to builtin "str"`},
		{"dead loop", "while false\n  1", SeverityWarning, "loop body never runs"},
		{"bad target", "f() = 1", SeverityError, "invalid assignment target"},
	}

	for _, tc := range tests {
		diags := analyze(tc.source)
		if !findDiag(diags, tc.sev, tc.msg) {
			t.Errorf("%s: Analyze(%q) = %v, want %s %q", tc.desc, tc.source, diags, tc.sev, tc.msg)
		}
	}
}

func TestSemanticAnalyzerSessionGlobals(t *testing.T) {
	globals := append(vm.BuiltinNames(), "total", "step")

	diags := Analyze("total := total + step\nstep = 2", globals)
	if len(diags) != 0 {
		t.Errorf("redefining session globals: Analyze = %v, want no diagnostics", diags)
	}

	diags = Analyze("putsl := total", globals)
	if !findDiag(diags, SeverityWarning, `definition of "putsl" hides the builtin`) {
		t.Errorf("Analyze = %v, want the builtin warning", diags)
	}
}

func TestSemanticAnalyzerSyntaxError(t *testing.T) {
	diags := analyze("x := (1 +")
	if len(diags) != 1 || diags[0].Severity != SeverityError {
		t.Fatalf("Analyze = %v, want one error", diags)
	}
	if diags[0].Span.Start.Line != 1 {
		t.Errorf("error at line %d, want 1", diags[0].Span.Start.Line)
	}
}

func TestSemanticAnalyzerAgreesWithCompiler(t *testing.T) {
	sources := []string{
		"y + 1",
		"x := 1\nif x\n  q := 2\nq",
		"f := ->\n  break\n",
		"n := 0\nwhile n < 3\n  n = n + 1",
	}
	for _, src := range sources {
		_, _, compileErr := CompileSource(src)
		hasErr := HasErrors(analyze(src))
		if (compileErr != nil) != hasErr {
			t.Errorf("%q: compile error %v, analyzer errors %v", src, compileErr, hasErr)
		}
	}
}
