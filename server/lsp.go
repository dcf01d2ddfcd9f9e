package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "sabri-lsp"

// LspServer provides diagnostics, completion, hover and go-to-definition
// for sabri source files. Documents are analyzed as standalone programs
// against the builtin globals.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("sabri LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(text, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return definitions(uri, text, word), nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(uri, text, word), nil
}

// complete returns builtins, reserved words and names defined in text that
// start with prefix, sorted by label.
func complete(text, prefix string) []protocol.CompletionItem {
	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		item := protocol.CompletionItem{Label: label, Kind: &kind}
		if detail != "" {
			item.Detail = &detail
		}
		items = append(items, item)
	}

	for _, site := range definitionSites(text) {
		kind := protocol.CompletionItemKindVariable
		if site.fn != nil {
			kind = protocol.CompletionItemKindFunction
		}
		add(site.name, kind, site.signature())
	}
	for _, name := range paramNames(text) {
		add(name, protocol.CompletionItemKindVariable, "parameter")
	}
	for _, b := range vm.Builtins() {
		if r, _ := utf8.DecodeRuneInString(b.Name); compiler.IsIdentStart(r) {
			add(b.Name, protocol.CompletionItemKindFunction, b.Doc)
		}
	}
	for _, word := range compiler.ReservedWords() {
		add(word, protocol.CompletionItemKindKeyword, "")
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// hover describes word: a definition in text wins over a builtin of the
// same name.
func hover(text, word string) *protocol.Hover {
	var value string
	if sites := definitionSites(text); len(sites) > 0 {
		for _, site := range sites {
			if site.name == word {
				value = fmt.Sprintf("```sabri\n%s\n```\nDefined on line %d.", site.signature(), site.pos.Line)
				break
			}
		}
	}
	if value == "" {
		for _, b := range vm.Builtins() {
			if b.Name == word {
				value = fmt.Sprintf("**%s** (builtin)\n\n%s", b.Name, b.Doc)
				break
			}
		}
	}
	if value == "" {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: value},
	}
}

// definitions returns every `word :=` site in text.
func definitions(uri protocol.DocumentUri, text, word string) []protocol.Location {
	var locs []protocol.Location
	for _, site := range definitionSites(text) {
		if site.name == word {
			locs = append(locs, protocol.Location{URI: uri, Range: nameRange(site.pos, word)})
		}
	}
	return locs
}

// references returns every use and definition of word in text.
func references(uri protocol.DocumentUri, text, word string) []protocol.Location {
	program, err := compiler.Parse(text)
	if err != nil {
		return nil
	}
	var locs []protocol.Location
	compiler.Inspect(program, func(n compiler.Node) bool {
		switch n := n.(type) {
		case *compiler.Identifier:
			if n.Name == word {
				locs = append(locs, protocol.Location{URI: uri, Range: nameRange(n.SpanVal.Start, word)})
			}
		case *compiler.Definition:
			if n.Name == word {
				locs = append(locs, protocol.Location{URI: uri, Range: nameRange(n.SpanVal.Start, word)})
			}
		}
		return true
	})
	return locs
}

// definitionSite is a `name :=` statement.
type definitionSite struct {
	name string
	pos  compiler.Position
	fn   *compiler.FuncLit
}

func (d definitionSite) signature() string {
	if d.fn == nil {
		return d.name
	}
	return fmt.Sprintf("%s(%s)", d.name, strings.Join(d.fn.Params, ", "))
}

// definitionSites lists definitions in source order. Text that does not
// parse has none.
func definitionSites(text string) []definitionSite {
	program, err := compiler.Parse(text)
	if err != nil {
		return nil
	}
	var sites []definitionSite
	compiler.Inspect(program, func(n compiler.Node) bool {
		if def, ok := n.(*compiler.Definition); ok {
			site := definitionSite{name: def.Name, pos: def.SpanVal.Start}
			site.fn, _ = def.Value.(*compiler.FuncLit)
			sites = append(sites, site)
		}
		return true
	})
	return sites
}

func paramNames(text string) []string {
	program, err := compiler.Parse(text)
	if err != nil {
		return nil
	}
	var names []string
	compiler.Inspect(program, func(n compiler.Node) bool {
		if fn, ok := n.(*compiler.FuncLit); ok {
			names = append(names, fn.Params...)
		}
		return true
	})
	return names
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(text),
	})
}

// diagnostics converts analyzer output to LSP diagnostics.
func diagnostics(text string) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	for _, d := range compiler.Analyze(text, vm.BuiltinNames()) {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == compiler.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		r := protocol.Range{Start: lspPosition(d.Span.Start), End: lspPosition(d.Span.End)}
		if r.End.Line < r.Start.Line || (r.End.Line == r.Start.Line && r.End.Character <= r.Start.Character) {
			r.End = protocol.Position{Line: r.Start.Line, Character: r.Start.Character + 1}
		}
		out = append(out, protocol.Diagnostic{
			Range:    r,
			Severity: &severity,
			Source:   &source,
			Message:  d.Msg,
		})
	}
	return out
}

// lspPosition converts a 1-based source position to a 0-based LSP one.
func lspPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func nameRange(start compiler.Position, name string) protocol.Range {
	from := lspPosition(start)
	to := from
	to.Character += protocol.UInteger(utf8.RuneCountInString(name))
	return protocol.Range{Start: from, End: to}
}

// --- Text extraction helpers ---

// lineAt returns line pos.Line of text and the cursor column clamped to it.
func lineAt(text string, pos protocol.Position) ([]rune, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil, 0, false
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && compiler.IsIdentChar(line[start-1]) {
		start--
	}
	return string(line[start:col])
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && compiler.IsIdentChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && compiler.IsIdentChar(line[end]) {
		end++
	}
	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}
