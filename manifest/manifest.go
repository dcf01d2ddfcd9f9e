// Package manifest handles sabri.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/sabri/vm"
)

// FileName is the manifest's file name.
const FileName = "sabri.toml"

// Defaults for unset fields.
const (
	DefaultPrompt       = "sabri> "
	DefaultContinuation = "  ...> "
	DefaultHTTPAddr     = ":4567"
	DefaultGRPCAddr     = ":4568"
)

//go:embed schema.cue
var schemaSource string

// Manifest represents a sabri.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	VM      VMConfig     `toml:"vm"`
	REPL    REPLConfig   `toml:"repl"`
	Server  ServerConfig `toml:"server"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the sabri.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// VMConfig configures execution limits.
type VMConfig struct {
	Budget   int   `toml:"budget"`
	MaxSteps int64 `toml:"max-steps"`
	Dump     bool  `toml:"dump"`
}

// REPLConfig configures the interactive loop.
type REPLConfig struct {
	Prompt       string `toml:"prompt"`
	Continuation string `toml:"continuation"`
	History      string `toml:"history"`
	NoHistory    bool   `toml:"no-history"`
}

// ServerConfig configures the evaluation server listeners.
type ServerConfig struct {
	HTTPAddr string `toml:"http-addr"`
	GRPCAddr string `toml:"grpc-addr"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns a manifest with every default applied, for use when no
// sabri.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	if wd, err := os.Getwd(); err == nil {
		m.Dir = wd
	}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.VM.Budget == 0 {
		m.VM.Budget = vm.DefaultBudget
	}
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = DefaultPrompt
	}
	if m.REPL.Continuation == "" {
		m.REPL.Continuation = DefaultContinuation
	}
	if m.Server.HTTPAddr == "" {
		m.Server.HTTPAddr = DefaultHTTPAddr
	}
	if m.Server.GRPCAddr == "" {
		m.Server.GRPCAddr = DefaultGRPCAddr
	}
}

// Load parses a sabri.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. name is used in errors.
func Parse(data []byte, name string) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	m.applyDefaults()
	return &m, nil
}

// validate checks the decoded document against the #Manifest schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return err
	}
	return def.Unify(doc).Validate(cue.Concrete(true))
}

// FindAndLoad walks up from startDir to find a sabri.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the project entry file, or "" if
// none is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	return m.resolve(m.Project.Entry)
}

// HistoryPath returns the history database path. Unset, it is
// ~/.sabri/history.db.
func (m *Manifest) HistoryPath() string {
	if m.REPL.History != "" {
		return m.resolve(m.REPL.History)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(m.Dir, ".sabri", "history.db")
	}
	return filepath.Join(home, ".sabri", "history.db")
}

// LogFile returns the configured log file path, or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.resolve(m.Log.File)
	return &path
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}
