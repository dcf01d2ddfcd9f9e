package main

import (
	"strings"
	"testing"
)

func TestREPL(t *testing.T) {
	workdir(t, nil)
	input := strings.Join([]string{
		"x := 2",
		"sq := n ->",
		"  n * n",
		"",
		"sq(x)",
		`putsl("side effect")`,
		":env",
		":quit",
		"never evaluated",
	}, "\n")

	stdout, stderr, code := runCLI(t, input, "-no-history")
	if code != 0 {
		t.Fatalf("exit %d, stderr %q", code, stderr)
	}
	for _, want := range []string{
		"=> 2\n",
		"=> <closure @",
		"=> 4\n",
		"side effect\n=> null\n",
		"x = 2\nsq = <closure @",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "never") || stderr != "" {
		t.Errorf("unexpected output after :quit; stderr %q", stderr)
	}
}

func TestREPLPrompts(t *testing.T) {
	workdir(t, map[string]string{
		"sabri.toml": "[repl]\nprompt = \"> \"\ncontinuation = \". \"\nno-history = true\n",
	})
	stdout, _, _ := runCLI(t, "f := ->\n  1\n\n")
	if !strings.Contains(stdout, "> . . => <closure") {
		t.Errorf("prompts not taken from the manifest:\n%s", stdout)
	}
}

func TestREPLErrorsKeepSession(t *testing.T) {
	workdir(t, nil)
	input := "n := 10\nn +\n\nnope\n:frob\nn\n"

	stdout, stderr, code := runCLI(t, input, "-no-history")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	for _, want := range []string{"expected operand", `undeclared identifier "nope"`, "unknown command :frob"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if strings.Count(stdout, "=> 10\n") != 2 {
		t.Errorf("n lost after errors:\n%s", stdout)
	}
}

func TestREPLResume(t *testing.T) {
	workdir(t, nil)
	input := strings.Join([]string{
		"i := 0",
		"while i < 3",
		"  i = i + 1",
		"",
		":resume", ":resume", ":resume", ":resume", ":resume", ":resume",
		"i",
	}, "\n")

	stdout, stderr, _ := runCLI(t, input, "-no-history", "-max-steps", "20")
	if !strings.Contains(stderr, "step limit reached after 20 instructions; :resume to continue") {
		t.Errorf("stderr missing step limit notice:\n%s", stderr)
	}
	if !strings.Contains(stderr, "nothing to resume") {
		t.Errorf("extra :resume not reported:\n%s", stderr)
	}
	if !strings.Contains(stdout, "=> 3\n") {
		t.Errorf("loop did not finish after resuming:\n%s", stdout)
	}
}

func TestREPLDump(t *testing.T) {
	workdir(t, nil)
	stdout, _, _ := runCLI(t, "total := 7\n:dump\n", "-no-history")
	if !strings.Contains(stdout, "; total :=") {
		t.Errorf(":dump listing missing the definition:\n%s", stdout)
	}
}

func TestREPLHistory(t *testing.T) {
	workdir(t, map[string]string{"sabri.toml": "[repl]\nhistory = \"hist.db\"\n"})

	stdout, stderr, code := runCLI(t, "1 + 1\nboom\n:history\n")
	if code != 0 {
		t.Fatalf("exit %d, stderr %q", code, stderr)
	}
	if !strings.Contains(stdout, "   1  1 + 1\n   2  boom\n") {
		t.Errorf(":history output:\n%s", stdout)
	}

	stdout, stderr, code = runCLI(t, "", "history", "-n", "5")
	if code != 0 {
		t.Fatalf("history exit %d, stderr %q", code, stderr)
	}
	if !strings.Contains(stdout, "1 + 1\n      => 2\n") || !strings.Contains(stdout, "boom\n      !! ") {
		t.Errorf("history output:\n%s", stdout)
	}
}

func TestREPLHistoryDisabled(t *testing.T) {
	workdir(t, nil)
	_, stderr, _ := runCLI(t, ":history\n", "-no-history")
	if !strings.Contains(stderr, "history is disabled") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestNeedsMore(t *testing.T) {
	tests := []struct {
		src, last string
		want      bool
	}{
		{"", "", false},
		{"1 + 2", "1 + 2", false},
		{"f := x ->", "f := x ->", true},
		{"f := ->  ", "f := ->  ", true},
		{"if x", "if x", true},
		{"while true", "while true", true},
		{"(1 +", "(1 +", true},
		{"f := x ->\n  x", "  x", true},
		{"f := x ->\n  x\nf(1)", "f(1)", false},
		{"1 2", "1 2", false},
	}
	for _, tc := range tests {
		if got := needsMore(tc.src, tc.last); got != tc.want {
			t.Errorf("needsMore(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}
