// sabri CLI - runs sabri programs and images, and hosts the REPL, the
// evaluation server and the language server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/history"
	"github.com/chazu/sabri/manifest"
	"github.com/chazu/sabri/server"
	"github.com/chazu/sabri/vm"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("sabri.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options is the manifest overlaid with command-line flags.
type options struct {
	manifest *manifest.Manifest

	verbosity   int
	interactive bool
	dump        bool
	budget      int
	maxSteps    int64
	serve       bool
	httpAddr    string
	grpcAddr    string
	lsp         bool
	noHistory   bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := &options{manifest: m}
	fs := flag.NewFlagSet("sabri", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.verbosity, "v", m.Log.Verbosity, "Log verbosity (-1 to 5)")
	fs.BoolVar(&opts.interactive, "i", false, "Start the REPL after running files")
	fs.BoolVar(&opts.dump, "dump", m.VM.Dump, "Write the disassembly to stderr before running")
	fs.IntVar(&opts.budget, "budget", m.VM.Budget, "Instructions per execution burst")
	fs.Int64Var(&opts.maxSteps, "max-steps", m.VM.MaxSteps, "Stop a run after this many instructions (0 = unlimited)")
	fs.BoolVar(&opts.serve, "serve", false, "Start the evaluation server (Connect + gRPC)")
	fs.StringVar(&opts.httpAddr, "http", m.Server.HTTPAddr, "Connect listen address (used with -serve)")
	fs.StringVar(&opts.grpcAddr, "grpc", m.Server.GRPCAddr, "gRPC listen address (used with -serve, empty disables)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&opts.noHistory, "no-history", m.REPL.NoHistory, "Do not read or record evaluation history")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sabri [options] [file.sb | file.sbc ...]\n")
		fmt.Fprintf(stderr, "       sabri [options] <command> [arguments]\n\n")
		fmt.Fprintf(stderr, "Runs sabri files in one session. Without files, starts the REPL.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nCommands:\n")
		fmt.Fprintf(stderr, "  build <file.sb> [-o out.sbc]   Compile to an image\n")
		fmt.Fprintf(stderr, "  disasm <file.sb|file.sbc>      Print the bytecode listing\n")
		fmt.Fprintf(stderr, "  check <file.sb ...>            Report every error and warning\n")
		fmt.Fprintf(stderr, "  history [-n N] [-session ID]   Show recent evaluations\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  sabri                  # Start REPL\n")
		fmt.Fprintf(stderr, "  sabri fact.sb          # Run a program\n")
		fmt.Fprintf(stderr, "  sabri -i lib.sb        # Run, then continue in the REPL\n")
		fmt.Fprintf(stderr, "  sabri -serve           # Serve on %s (Connect) and %s (gRPC)\n", m.Server.HTTPAddr, m.Server.GRPCAddr)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	commonlog.Configure(opts.verbosity, m.LogFile())

	rest := fs.Args()
	if len(rest) > 0 {
		switch rest[0] {
		case "build":
			return cmdBuild(rest[1:], stdout, stderr)
		case "disasm":
			return cmdDisasm(rest[1:], stdout, stderr)
		case "check":
			return cmdCheck(rest[1:], stdout, stderr)
		case "history":
			return cmdHistory(opts, rest[1:], stdout, stderr)
		case "version":
			fmt.Fprintf(stdout, "sabri %s\n", version)
			return 0
		}
	}

	switch {
	case opts.lsp:
		if err := server.NewLSP(version).Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	case opts.serve:
		return serve(opts, stderr)
	}

	paths := rest
	if len(paths) == 0 && m.EntryPath() != "" && !opts.interactive {
		paths = []string{m.EntryPath()}
	}

	v := newVM(opts, stdout)
	for _, path := range paths {
		if err := runFile(context.Background(), v, path, opts, stderr); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if opts.interactive || len(paths) == 0 {
		return runREPL(v, opts, stdin, stdout, stderr)
	}
	return 0
}

// loadManifest finds sabri.toml above the working directory, falling back
// to defaults.
func loadManifest() (*manifest.Manifest, error) {
	wd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

func newVM(opts *options, stdout io.Writer) *vm.VM {
	v := vm.NewVM()
	v.Out = stdout
	v.Budget = opts.budget
	v.MaxSteps = opts.maxSteps
	v.UseCompiler(compiler.Factory)
	return v
}

// runFile runs a source file or a compiled image in v.
func runFile(ctx context.Context, v *vm.VM, path string, opts *options, stderr io.Writer) error {
	if filepath.Ext(path) == ".sbc" {
		img, err := vm.ReadImageFile(path)
		if err != nil {
			return err
		}
		if opts.dump {
			prog, err := img.Program()
			if err != nil {
				return err
			}
			prog.Disassemble(stderr)
		}
		_, err = v.RunImage(ctx, img)
		return reportWarnings(v, path, err, stderr)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	entry, err := v.Compile(string(source))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("compiled %s: entry %08x, %d instructions", path, uint32(entry), v.Program.Len())
	if opts.dump {
		v.Program.Disassemble(stderr)
	}
	_, err = v.Run(ctx, entry)
	return reportWarnings(v, path, err, stderr)
}

func reportWarnings(v *vm.VM, path string, err error, stderr io.Writer) error {
	for _, w := range v.Warnings() {
		fmt.Fprintf(stderr, "%s: warning: %s\n", path, w)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// openHistory opens the history store unless disabled. Failure to open is
// logged, not fatal.
func openHistory(opts *options) *history.Store {
	if opts.noHistory {
		return nil
	}
	store, err := history.Open(opts.manifest.HistoryPath())
	if err != nil {
		log.Warningf("history disabled: %v", err)
		return nil
	}
	return store
}

func serve(opts *options, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serverOpts []server.Option
	if store := openHistory(opts); store != nil {
		defer store.Close()
		serverOpts = append(serverOpts, server.WithHistory(store))
	}
	if opts.maxSteps > 0 {
		serverOpts = append(serverOpts, server.WithMaxSteps(opts.maxSteps))
	}

	srv := server.New(serverOpts...)
	defer srv.Stop()

	fmt.Fprintf(stderr, "sabri server listening\n")
	fmt.Fprintf(stderr, "  Connect (HTTP/JSON): http://%s%s\n", opts.httpAddr, server.Procedure("Evaluate"))
	if opts.grpcAddr != "" {
		fmt.Fprintf(stderr, "  gRPC:                %s\n", opts.grpcAddr)
	}
	if err := srv.ListenAndServe(ctx, opts.httpAddr, opts.grpcAddr); err != nil {
		fmt.Fprintf(stderr, "Server error: %v\n", err)
		return 1
	}
	return 0
}
