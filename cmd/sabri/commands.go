package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/history"
	"github.com/chazu/sabri/vm"
)

// cmdBuild compiles a source file to an image.
//
//	sabri build prog.sb              # prog.sbc
//	sabri build prog.sb -o out.sbc
func cmdBuild(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "Output image path (default: source with .sbc extension)")
	if err := fs.Parse(reorderFlags(args)); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: sabri build <file.sb> [-o out.sbc]")
		return 2
	}
	path := fs.Arg(0)
	if *output == "" {
		*output = strings.TrimSuffix(path, filepath.Ext(path)) + ".sbc"
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	v := vm.NewVM()
	v.UseCompiler(compiler.Factory)
	entry, err := v.Compile(string(source))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return 1
	}
	img, err := v.Image(entry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := vm.WriteImageFile(*output, img); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (%d instructions, %d literals)\n", *output, len(img.Code), len(img.Literals))
	return 0
}

// cmdDisasm prints the listing of a source file or an image.
func cmdDisasm(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: sabri disasm <file.sb|file.sbc>")
		return 2
	}
	prog, err := loadProgram(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := prog.Disassemble(stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadProgram(path string) (*vm.Program, error) {
	if filepath.Ext(path) == ".sbc" {
		img, err := vm.ReadImageFile(path)
		if err != nil {
			return nil, err
		}
		return img.Program()
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, _, err := compiler.CompileSource(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// cmdCheck analyzes source files and prints every diagnostic. It fails if
// any file has an error; warnings alone pass.
func cmdCheck(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: sabri check <file.sb ...>")
		return 2
	}
	status := 0
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			status = 1
			continue
		}
		diags := compiler.Analyze(string(source), vm.BuiltinNames())
		for _, d := range diags {
			fmt.Fprintf(stdout, "%s:%s\n", path, d)
		}
		if compiler.HasErrors(diags) {
			status = 1
		}
	}
	return status
}

// cmdHistory prints recent evaluations, oldest first.
func cmdHistory(opts *options, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 20, "Number of entries")
	session := fs.String("session", "", "Only show this session")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := history.Open(opts.manifest.HistoryPath())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	var entries []history.Entry
	if *session != "" {
		entries, err = store.Session(ctx, *session)
		if len(entries) > *n {
			entries = entries[len(entries)-*n:]
		}
	} else {
		entries, err = store.Recent(ctx, *n)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	for _, e := range entries {
		outcome := "=> " + e.Result
		if e.Failed() {
			outcome = "!! " + e.Error
		}
		fmt.Fprintf(stdout, "%s  %s\n      %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			strings.ReplaceAll(e.Source, "\n", "\n      "),
			outcome)
	}
	return 0
}

// reorderFlags moves flags ahead of positional arguments so that
// "build prog.sb -o out.sbc" parses like "build -o out.sbc prog.sb".
func reorderFlags(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, arg)
	}
	return append(flags, positional...)
}
