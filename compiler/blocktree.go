package compiler

import "strings"

// ---------------------------------------------------------------------------
// Block tree: indentation-delimited nesting
// ---------------------------------------------------------------------------

// ChunkKind distinguishes leaf tokens from nested blocks.
type ChunkKind int

const (
	ChunkToken ChunkKind = iota
	ChunkBlock
)

// Chunk is a node of the indentation tree. A token chunk wraps one token; a
// block chunk holds the chunks of a run of lines indented deeper than the
// line that owns it.
type Chunk struct {
	Kind     ChunkKind
	Token    Token    // for ChunkToken
	Children []Chunk  // for ChunkBlock
	Indent   int      // indentation shared by the block's lines
	Pos      Position // first line of the block
}

// sourceLine is one physical line of input.
type sourceLine struct {
	text   string // without the trailing newline and indentation
	number int
	offset int // byte offset of text in the source
	column int // 1-based column where text starts
}

// BlockTree splits source into lines and nests them by indentation.
type BlockTree struct {
	lines []sourceLine
	base  int
	lexer *Lexer
}

// NewBlockTree prepares source for tree building. base is the indentation
// of the outermost level; lines indented less than base are rejected.
func NewBlockTree(source string, base int) *BlockTree {
	raw := strings.Split(source, "\n")
	if n := len(raw); n > 1 && raw[n-1] == "" {
		raw = raw[:n-1]
	}

	bt := &BlockTree{base: base, lexer: NewLexer()}
	offset := 0
	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		indent := leadingIndent(text)
		bt.lines = append(bt.lines, sourceLine{
			text:   text[indent:],
			number: i + 1,
			offset: offset + indent,
			column: indent + 1,
		})
		offset += len(raw[i]) + 1
	}
	return bt
}

// Indents returns the indentation level of every line. Blank and
// comment-only lines report -1: they carry no indentation.
func (bt *BlockTree) Indents() []int {
	indents := make([]int, len(bt.lines))
	for i, line := range bt.lines {
		body := strings.TrimSpace(line.text)
		if body == "" || strings.HasPrefix(body, "~") {
			indents[i] = -1
			continue
		}
		indents[i] = line.column - 1
	}
	return indents
}

// Tree builds the chunk tree from per-line indentation levels as returned by
// Indents. The result is a block chunk at the base level.
func (bt *BlockTree) Tree(indents []int) (Chunk, error) {
	root := Chunk{Kind: ChunkBlock, Indent: bt.base, Pos: Position{Line: 1, Column: 1}}
	children, err := bt.build(indents, 0, len(indents), bt.base, true)
	if err != nil {
		return Chunk{}, err
	}
	root.Children = children
	return root, nil
}

func (bt *BlockTree) build(indents []int, start, end, level int, outermost bool) ([]Chunk, error) {
	var chunks []Chunk
	i := start
	for i < end {
		line := bt.lines[i]
		indent := indents[i]
		if indent < 0 {
			chunks = append(chunks, eolChunk(line))
			i++
			continue
		}
		if indent != level {
			pos := Position{Offset: line.offset, Line: line.number, Column: line.column}
			if indent > level && outermost && i == bt.firstCode(indents, start, end) {
				return nil, lexErrorf(pos, "unexpected indentation")
			}
			return nil, lexErrorf(pos, "inconsistent indentation")
		}

		tokens, err := bt.lexer.LexLine(line.text, line.number, line.offset)
		if err != nil {
			return nil, err
		}
		for _, tok := range tokens {
			chunks = append(chunks, Chunk{Kind: ChunkToken, Token: tok})
		}
		chunks = append(chunks, eolChunk(line))

		// Collect the run of deeper lines owned by this one. Blank lines at
		// the end of the run stay at this level.
		j := i + 1
		for j < end && (indents[j] < 0 || indents[j] > level) {
			j++
		}
		for j > i+1 && indents[j-1] < 0 {
			j--
		}
		if j > i+1 {
			first := bt.firstCode(indents, i+1, j)
			childLevel := indents[first]
			children, err := bt.build(indents, i+1, j, childLevel, false)
			if err != nil {
				return nil, err
			}
			head := bt.lines[first]
			chunks = append(chunks, Chunk{
				Kind:     ChunkBlock,
				Children: children,
				Indent:   childLevel,
				Pos:      Position{Offset: head.offset, Line: head.number, Column: head.column},
			})
			chunks = append(chunks, eolChunk(bt.lines[j-1]))
		}
		i = j
	}
	return chunks, nil
}

// firstCode returns the index of the first non-blank line in [start, end),
// or end if there is none.
func (bt *BlockTree) firstCode(indents []int, start, end int) int {
	for i := start; i < end; i++ {
		if indents[i] >= 0 {
			return i
		}
	}
	return end
}

func eolChunk(line sourceLine) Chunk {
	pos := Position{
		Offset: line.offset + len(line.text),
		Line:   line.number,
		Column: line.column + len([]rune(line.text)),
	}
	return Chunk{Kind: ChunkToken, Token: Token{Type: TokenEOL, Pos: pos}}
}

// Flatten turns a block chunk into an EOF-terminated token stream. Nested
// blocks become single TokenBlock tokens carrying their own flattened,
// EOF-terminated sub-stream.
func Flatten(block Chunk) []Token {
	tokens := make([]Token, 0, len(block.Children)+1)
	var last Position
	for _, c := range block.Children {
		switch c.Kind {
		case ChunkToken:
			tokens = append(tokens, c.Token)
			last = c.Token.Pos
		case ChunkBlock:
			tokens = append(tokens, Token{Type: TokenBlock, Pos: c.Pos, Block: Flatten(c)})
			last = c.Pos
		}
	}
	return append(tokens, Token{Type: TokenEOF, Pos: last})
}

// BlockDepth returns the deepest nesting of block tokens in tokens.
func BlockDepth(tokens []Token) int {
	depth := 0
	for _, tok := range tokens {
		if tok.Type != TokenBlock {
			continue
		}
		if d := 1 + BlockDepth(tok.Block); d > depth {
			depth = d
		}
	}
	return depth
}

func leadingIndent(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}
