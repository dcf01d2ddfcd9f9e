package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/history"
	"github.com/chazu/sabri/vm"
)

const replHelp = `REPL commands:
  :quit          Exit the REPL
  :dump          Print the bytecode listing of everything compiled so far
  :env           Show the globals defined in this session
  :history [N]   Show the last N inputs (default 20)
  :resume        Continue a run stopped at the step limit
  :help          Show this help

Input continues on the next line after a line ending in "->", an indented
line, or an unfinished construct. A blank line ends it.
`

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// scanReader reads lines from a non-terminal input.
type scanReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (r *scanReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) AppendHistory(string) {}
func (r *scanReader) Close() error         { return nil }

type repl struct {
	vm     *vm.VM
	in     lineReader
	out    io.Writer
	errOut io.Writer

	prompt       string
	continuation string

	store   *history.Store
	session string

	// suspended is set while a run is stopped at the step limit.
	suspended bool
}

func runREPL(v *vm.VM, opts *options, stdin io.Reader, stdout, stderr io.Writer) int {
	var in lineReader
	if f, ok := stdin.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		ln := liner.NewLiner()
		ln.SetCtrlCAborts(true)
		in = ln
	} else {
		in = &scanReader{sc: bufio.NewScanner(stdin), out: stdout}
	}
	defer in.Close()

	r := &repl{
		vm:           v,
		in:           in,
		out:          stdout,
		errOut:       stderr,
		prompt:       opts.manifest.REPL.Prompt,
		continuation: opts.manifest.REPL.Continuation,
		store:        openHistory(opts),
		session:      history.NewSessionID(),
	}
	if r.store != nil {
		defer r.store.Close()
		r.loadHistory()
	}

	fmt.Fprintf(stdout, "sabri %s. Type :help for commands, :quit or Ctrl+D to exit.\n", version)
	return r.loop()
}

func (r *repl) loadHistory() {
	sources, err := r.store.Sources(context.Background(), 500)
	if err != nil {
		log.Warningf("reading history: %v", err)
		return
	}
	for _, src := range sources {
		r.in.AppendHistory(src)
	}
}

func (r *repl) loop() int {
	for {
		src, err := r.read()
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out)
			return 0
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case err != nil:
			fmt.Fprintf(r.errOut, "Error: %v\n", err)
			return 1
		}

		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		r.in.AppendHistory(src)

		if strings.HasPrefix(trimmed, ":") {
			if r.command(trimmed) {
				return 0
			}
			continue
		}
		r.eval(src)
	}
}

// read collects one input, prompting for continuation lines as needed.
func (r *repl) read() (string, error) {
	var b strings.Builder
	prompt := r.prompt
	for {
		line, err := r.in.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		if b.Len() > 0 && strings.TrimSpace(line) == "" {
			return b.String(), nil
		}
		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, nil
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if !needsMore(b.String(), line) {
			return b.String(), nil
		}
		prompt = r.continuation
	}
}

// needsMore reports whether src should continue on another line.
func needsMore(src, last string) bool {
	if strings.TrimSpace(src) == "" {
		return false
	}
	if strings.HasSuffix(strings.TrimRight(last, " \t"), "->") {
		return true
	}
	if strings.Contains(src, "\n") && strings.TrimLeft(last, " \t") != last {
		return true
	}
	_, err := compiler.Parse(src)
	return compiler.IsIncomplete(err)
}

func (r *repl) eval(src string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := r.vm.Eval(ctx, src)
	r.report(src, result, err)
}

func (r *repl) resume() {
	if !r.suspended {
		fmt.Fprintln(r.errOut, "nothing to resume")
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := r.vm.Resume(ctx)
	r.report("", result, err)
}

// report prints the outcome of a run and records it.
func (r *repl) report(src string, result vm.Value, err error) {
	for _, w := range r.vm.Warnings() {
		fmt.Fprintf(r.errOut, "warning: %s\n", w)
	}

	r.suspended = errors.Is(err, vm.ErrStepLimit)
	entry := history.Entry{Session: r.session, Source: src}
	switch {
	case r.suspended:
		fmt.Fprintf(r.errOut, "%v; :resume to continue\n", err)
		entry.Error = err.Error()
	case err != nil:
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		entry.Error = err.Error()
	default:
		entry.Result = vm.Repr(result)
		fmt.Fprintf(r.out, "=> %s\n", entry.Result)
	}

	if r.store != nil && src != "" {
		if _, err := r.store.Record(context.Background(), entry); err != nil {
			log.Warningf("recording history: %v", err)
		}
	}
}

// command runs a REPL command and reports whether to exit.
func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprint(r.out, replHelp)
	case ":dump":
		r.vm.Program.Disassemble(r.out)
	case ":env":
		r.showEnv()
	case ":history":
		r.showHistory(fields[1:])
	case ":resume":
		r.resume()
	default:
		fmt.Fprintf(r.errOut, "unknown command %s; :help lists commands\n", fields[0])
	}
	return false
}

func (r *repl) showEnv() {
	names := r.vm.GlobalNames()
	builtins := len(vm.BuiltinNames())
	if len(names) == builtins {
		fmt.Fprintln(r.out, "no globals defined")
		return
	}
	for _, name := range names[builtins:] {
		value, _ := r.vm.LookupGlobal(name)
		fmt.Fprintf(r.out, "%s = %s\n", name, vm.Repr(value))
	}
}

func (r *repl) showHistory(args []string) {
	if r.store == nil {
		fmt.Fprintln(r.errOut, "history is disabled")
		return
	}
	n := 20
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			fmt.Fprintf(r.errOut, "invalid count %q\n", args[0])
			return
		}
		n = parsed
	}
	sources, err := r.store.Sources(context.Background(), n)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	for i, src := range sources {
		fmt.Fprintf(r.out, "%4d  %s\n", i+1, strings.ReplaceAll(src, "\n", "\n      "))
	}
}
