package integration_test

import (
	"context"
	_ "embed"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/vm"
)

// ---------------------------------------------------------------------------
// Program cases
// ---------------------------------------------------------------------------

//go:embed testdata/programs.yaml
var programsYAML []byte

// step is one evaluation and what it should produce. Empty fields are not
// checked.
type step struct {
	Source   string `yaml:"source"`
	Output   string `yaml:"output"`
	Result   string `yaml:"result"`
	Error    string `yaml:"error"`
	MaxSteps int64  `yaml:"max_steps"`
}

// programCase is a standalone program, or a sequence of steps sharing one
// VM when Steps is set.
type programCase struct {
	Name  string `yaml:"name"`
	step  `yaml:",inline"`
	Steps []step `yaml:"steps"`
}

func loadCases(t *testing.T) []programCase {
	t.Helper()
	var cases []programCase
	if err := yaml.Unmarshal(programsYAML, &cases); err != nil {
		t.Fatalf("parsing programs.yaml: %v", err)
	}
	if len(cases) == 0 {
		t.Fatal("programs.yaml has no cases")
	}
	return cases
}

func newVM(out *strings.Builder, maxSteps int64) *vm.VM {
	v := vm.NewVM()
	v.Out = out
	v.MaxSteps = maxSteps
	v.UseCompiler(compiler.Factory)
	return v
}

// ---------------------------------------------------------------------------
// Outcome checks
// ---------------------------------------------------------------------------

func check(t *testing.T, want step, out string, result vm.Value, err error) {
	t.Helper()
	if diff := cmp.Diff(want.Output, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if want.Error != "" {
		if err == nil {
			t.Errorf("succeeded with %s, want error containing %q", vm.Repr(result), want.Error)
		} else if !strings.Contains(err.Error(), want.Error) {
			t.Errorf("error = %v, want it to contain %q", err, want.Error)
		}
		return
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want.Result != "" {
		if got := vm.Repr(result); got != want.Result {
			t.Errorf("result = %s, want %s", got, want.Result)
		}
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPrograms(t *testing.T) {
	for _, tc := range loadCases(t) {
		if len(tc.Steps) > 0 {
			continue
		}
		t.Run(tc.Name, func(t *testing.T) {
			var out strings.Builder
			v := newVM(&out, tc.MaxSteps)
			result, err := v.Eval(context.Background(), tc.Source)
			check(t, tc.step, out.String(), result, err)
		})
	}
}

// TestProgramImages runs every program that compiles from a decoded image
// in a fresh VM and expects the same outcome as evaluating its source.
func TestProgramImages(t *testing.T) {
	for _, tc := range loadCases(t) {
		if len(tc.Steps) > 0 {
			continue
		}
		t.Run(tc.Name, func(t *testing.T) {
			var discard strings.Builder
			builder := newVM(&discard, 0)
			entry, err := builder.Compile(tc.Source)
			if err != nil {
				t.Skipf("does not compile: %v", err)
			}
			img, err := builder.Image(entry)
			if err != nil {
				t.Fatalf("Image: %v", err)
			}
			data, err := vm.EncodeImage(img)
			if err != nil {
				t.Fatalf("EncodeImage: %v", err)
			}
			decoded, err := vm.DecodeImage(data)
			if err != nil {
				t.Fatalf("DecodeImage: %v", err)
			}

			var out strings.Builder
			v := newVM(&out, tc.MaxSteps)
			result, err := v.RunImage(context.Background(), decoded)
			check(t, tc.step, out.String(), result, err)
		})
	}
}

func TestSessions(t *testing.T) {
	for _, tc := range loadCases(t) {
		if len(tc.Steps) == 0 {
			continue
		}
		t.Run(tc.Name, func(t *testing.T) {
			var out strings.Builder
			v := newVM(&out, 0)
			for i, s := range tc.Steps {
				out.Reset()
				v.MaxSteps = s.MaxSteps
				result, err := v.Eval(context.Background(), s.Source)
				t.Run(s.Source, func(t *testing.T) {
					check(t, s, out.String(), result, err)
				})
				if t.Failed() {
					t.Fatalf("step %d failed", i+1)
				}
			}
		})
	}
}

// TestDisassemblyStable checks that every compiling program disassembles
// without error and that an image keeps the listing intact.
func TestDisassemblyStable(t *testing.T) {
	for _, tc := range loadCases(t) {
		if len(tc.Steps) > 0 {
			continue
		}
		var discard strings.Builder
		v := newVM(&discard, 0)
		entry, err := v.Compile(tc.Source)
		if err != nil {
			continue
		}
		img, err := v.Image(entry)
		if err != nil {
			t.Fatalf("%s: Image: %v", tc.Name, err)
		}
		prog, err := img.Program()
		if err != nil {
			t.Fatalf("%s: Program: %v", tc.Name, err)
		}
		if diff := cmp.Diff(v.Program.DisassembleString(), prog.DisassembleString()); diff != "" {
			t.Errorf("%s: listing changed through the image (-source +image):\n%s", tc.Name, diff)
		}
	}
}
