package vm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProgramLiteralPool(t *testing.T) {
	p := NewProgram()
	if len(p.Literals) != 1 || p.Literals[0] != (Null{}) {
		t.Fatalf("new program literals = %v, want [null]", p.Literals)
	}

	idx := func(v Value) uint32 {
		t.Helper()
		i, err := p.AddLiteral(v)
		if err != nil {
			t.Fatalf("AddLiteral(%v): %v", v, err)
		}
		return i
	}

	if got := idx(Null{}); got != 0 {
		t.Errorf("AddLiteral(null) = %d, want 0", got)
	}
	one := idx(Number(1))
	if got := idx(Number(1)); got != one {
		t.Errorf("AddLiteral(1) again = %d, want %d", got, one)
	}
	if got := idx(Bool(true)); got == one {
		t.Errorf("true shares a slot with 1")
	}
	if got := idx(Str("1")); got == one {
		t.Errorf(`"1" shares a slot with 1`)
	}

	if _, err := p.AddLiteral(&Closure{}); err == nil {
		t.Errorf("AddLiteral(closure) succeeded")
	}
}

func TestProgramPatch(t *testing.T) {
	p := NewProgram()
	jmp, _ := p.Emit(OpJMP, uint32(InvalidAddr), 0)
	lit, _ := p.Emit(OpPUSHLIT, 0, 0)

	if err := p.Patch(jmp, 7); err != nil {
		t.Fatalf("Patch(jmp): %v", err)
	}
	if p.Code[jmp].A != 7 {
		t.Errorf("patched target = %d, want 7", p.Code[jmp].A)
	}
	if err := p.Patch(lit, 7); err == nil {
		t.Errorf("Patch(pushlit) succeeded")
	}
	if err := p.Patch(99, 7); err == nil {
		t.Errorf("Patch(out of range) succeeded")
	}
	if err := p.Patch(jmp, Max26+1); err == nil {
		t.Errorf("Patch(too far) succeeded")
	}
}

func TestProgramEmitRejectsWideOperands(t *testing.T) {
	p := NewProgram()
	if _, err := p.Emit(OpGETVAR, Max12+1, 0); err == nil {
		t.Errorf("Emit(getvar 4096,0) succeeded")
	}
	if p.Len() != 0 {
		t.Errorf("failed Emit appended an instruction")
	}
}

func TestProgramFixNewEnv(t *testing.T) {
	p := NewProgram()
	addr, _ := p.Emit(OpNEWENV, 0, 0)
	if err := p.FixNewEnv(addr, 1, 3); err != nil {
		t.Fatal(err)
	}
	if got, want := p.Code[addr], (Instruction{Op: OpNEWENV, A: 1, B: 3}); got != want {
		t.Errorf("FixNewEnv = %+v, want %+v", got, want)
	}
	halt, _ := p.Emit(OpHALT, 0, 0)
	if err := p.FixNewEnv(halt, 0, 0); err == nil {
		t.Errorf("FixNewEnv on halt succeeded")
	}
}

func TestProgramTruncate(t *testing.T) {
	p := NewProgram()
	p.Emit(OpPUSHLIT, 0, 0)
	p.Label(0, "keep")
	p.AddLiteral(Number(5))

	p.Emit(OpPUSHLIT, 1, 0)
	p.Label(1, "drop")
	p.Comment(1, "drop")
	p.AddLiteral(Number(6))

	p.Truncate(1, 2)

	if p.Len() != 1 || len(p.Literals) != 2 {
		t.Errorf("after Truncate: %d instructions, %d literals; want 1, 2", p.Len(), len(p.Literals))
	}
	if diff := cmp.Diff(map[Addr]string{0: "keep"}, p.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if len(p.Comments) != 0 {
		t.Errorf("comments = %v, want none", p.Comments)
	}
}

func TestProgramComment(t *testing.T) {
	p := NewProgram()
	p.Emit(OpGETVAR, 0, 0)
	p.Comment(0, "x")
	p.Comment(0, "again")
	if got := p.Comments[0]; got != "x; again" {
		t.Errorf("comment = %q, want %q", got, "x; again")
	}
}

func TestDisassemble(t *testing.T) {
	p := NewProgram()
	p.AddLiteral(Number(42))
	p.AddLiteral(Str("hi"))
	p.Emit(OpPUSHLIT, 1, 0)
	p.Emit(OpGETVAR, 3, 1)
	p.Emit(OpJMP, 0, 0)
	p.Code = append(p.Code, Instruction{Op: 0x30, A: 5})
	p.Emit(OpHALT, 0, 0)
	p.Label(0, "main")
	p.Comment(0, "answer")

	want := strings.Join([]string{
		"; sabri bytecode",
		"; 5 instructions, 3 literals",
		".main:",
		fmt.Sprintf("%-44s ; answer", "00000000:   1c000001   pushlit  1"),
		"00000001:   08003001   getvar   3,1",
		"00000002:   80000000   jmp      00000000",
		"00000003:   c0000005   ???      0x5",
		"00000004:   ffffffff   halt",
		"; literals",
		"[    0 ] null",
		"[    1 ] 42",
		`[    2 ] "hi"`,
		"",
	}, "\n")

	if diff := cmp.Diff(want, p.DisassembleString()); diff != "" {
		t.Errorf("Disassemble mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramWordsRoundTrip(t *testing.T) {
	p := NewProgram()
	p.Emit(OpCLOSURE, 2, 0)
	p.Emit(OpJMP, 5, 0)
	p.Emit(OpNEWENV, 1, 1)
	p.Emit(OpGETVAR, 0, 0)
	p.Emit(OpRET, 0, 0)
	p.Emit(OpHALT, 0, 0)

	decoded := ProgramFromWords(p.Words())
	if diff := cmp.Diff(p.Code, decoded.Code); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
