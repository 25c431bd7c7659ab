// Package chunk implements the chunk assembler: it turns normalized text
// plus a boundary list (internal/boundary) into a sequence of overlapping
// chunks sized for embedding. The boundary-ranked splitting and
// smart-overlap extraction generalize a paragraph/line/space fallback
// ladder from a fixed priority order to a format-aware, priority-scored
// boundary list.
package chunk

import (
	"sort"
	"strings"
	"unicode"

	"github.com/screenager/vecstore/internal/boundary"
)

// Strategy controls which boundary kinds the assembler is allowed to split
// on.
type Strategy string

const (
	// Semantic restricts splitting to paragraph/sentence/word boundaries.
	Semantic Strategy = "semantic"
	// Structural restricts splitting to header/section/page/code/list
	// boundaries.
	Structural Strategy = "structural"
	// Hybrid considers every boundary kind (default).
	Hybrid Strategy = "hybrid"
)

var (
	semanticKinds = map[boundary.Kind]bool{
		boundary.Paragraph: true,
		boundary.Sentence:  true,
		boundary.Word:      true,
	}
	structuralKinds = map[boundary.Kind]bool{
		boundary.Header:    true,
		boundary.Section:   true,
		boundary.Page:      true,
		boundary.CodeBlock: true,
		boundary.ListItem:  true,
	}
)

func allowed(strategy Strategy, k boundary.Kind) bool {
	switch strategy {
	case Semantic:
		return semanticKinds[k]
	case Structural:
		return structuralKinds[k]
	default:
		return true
	}
}

// Options configures the chunk assembler.
type Options struct {
	MaxChunkSize int
	MinChunkSize int
	OverlapSize  int

	Strategy Strategy

	PreserveHeaders          bool
	IncludePageNumbers       bool
	RespectDocumentStructure bool
}

// DefaultOptions returns conservative defaults sized for a 768-dim
// embedding model's context window.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: 1000,
		MinChunkSize: 100,
		OverlapSize:  200,
		Strategy:     Hybrid,
	}
}

// Chunk is one assembled chunk of a document.
type Chunk struct {
	Content        string
	ChunkIndex     int
	StartPosition  int
	EndPosition    int
	WordCount      int
	CharacterCount int
	HasOverlap     bool
}

// Assemble splits text into chunks, using boundaries already
// detected for docKind (internal/boundary.Detect).
func Assemble(text string, docKind boundary.DocKind, opts Options) []Chunk {
	if opts.MaxChunkSize <= 0 {
		opts = DefaultOptions()
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	bs := boundary.Detect(text, docKind)
	filtered := bs[:0:0]
	for _, b := range bs {
		if allowed(opts.Strategy, b.Kind) {
			filtered = append(filtered, b)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Position != filtered[j].Position {
			return filtered[i].Position < filtered[j].Position
		}
		return filtered[i].Priority > filtered[j].Priority
	})

	var chunks []Chunk
	buf := ""
	incoming := "" // overlap carried into the current accumulator
	pos := 0
	idx := 0

	// emit stores a chunk whose full accumulated text is full, covering the
	// actual text range [start,end). The incoming overlap is stripped from
	// the stored content so overlap is never duplicated on disk; start is
	// advanced past the stripped prefix to match.
	emit := func(full string, start, end int) {
		content := full
		if incoming != "" && strings.HasPrefix(full, incoming) {
			content = full[len(incoming):]
			start += len(incoming)
		}
		if len(content) < opts.MinChunkSize {
			return
		}
		chunks = append(chunks, Chunk{
			Content:        content,
			ChunkIndex:     idx,
			StartPosition:  start,
			EndPosition:    end,
			WordCount:      countWords(content),
			CharacterCount: len(content),
			HasOverlap:     incoming != "",
		})
		idx++
	}

	bufStart := 0

	for _, b := range filtered {
		if b.Position <= pos {
			continue
		}
		seg := text[pos:b.Position]
		if len(buf)+len(seg) <= opts.MaxChunkSize {
			buf += seg
			pos = b.Position
			continue
		}

		// remaining is how much of seg still fits before hitting
		// max_chunk_size, i.e. the target offset inside seg.
		remaining := opts.MaxChunkSize - len(buf)
		stop := bestStop(seg, remaining, filtered, pos, len(buf), opts)
		full := buf + seg[:stop]
		emit(full, bufStart, pos+stop)

		next := getSmartOverlap(full, opts.OverlapSize)
		incoming = next
		buf = next
		bufStart = pos + stop - len(next)
		pos += stop
	}

	if len(strings.TrimSpace(buf)) > 0 || pos < len(text) {
		full := buf + text[pos:]
		if len(strings.TrimSpace(full)) >= opts.MinChunkSize {
			emit(full, bufStart, len(text))
		}
	}

	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{
			Content:        trimmed,
			ChunkIndex:     0,
			StartPosition:  0,
			EndPosition:    len(text),
			WordCount:      countWords(trimmed),
			CharacterCount: len(trimmed),
			HasOverlap:     false,
		})
	}

	return chunks
}

// bestStop chooses where inside seg (text[segStart:segStart+len(seg)]) to
// stop a chunk. It first ranks every strategy-allowed boundary whose
// absolute position falls inside that range by descending priority, then
// by ascending distance from the target offset (segStart+targetLen), and
// accepts the first whose resulting chunk length (prefixLen, the bytes
// already buffered, plus the candidate's offset into seg) lies within
// [MinChunkSize, MaxChunkSize]. If none qualifies it falls back to the
// text-only ladder: last sentence terminator before targetLen, else last
// space before targetLen, else a hard cut at targetLen.
func bestStop(seg string, targetLen int, bs []boundary.Boundary, segStart, prefixLen int, opts Options) int {
	if targetLen < 0 {
		targetLen = 0
	}
	if targetLen > len(seg) {
		targetLen = len(seg)
	}

	if stop, ok := bestBoundaryStop(seg, targetLen, bs, segStart, prefixLen, opts); ok {
		return stop
	}

	// Fallback 1: last sentence terminator before targetLen.
	if i := lastSentenceEnd(seg[:targetLen]); i > 0 {
		return i
	}
	// Fallback 2: last space before targetLen.
	if i := strings.LastIndexByte(seg[:targetLen], ' '); i > 0 {
		return i + 1
	}
	// Fallback 3: hard cut.
	return targetLen
}

func bestBoundaryStop(seg string, targetLen int, bs []boundary.Boundary, segStart, prefixLen int, opts Options) (int, bool) {
	segEnd := segStart + len(seg)
	target := segStart + targetLen

	type candidate struct {
		pos      int
		priority int
	}
	var cands []candidate
	for _, b := range bs {
		if b.Position <= segStart || b.Position >= segEnd {
			continue
		}
		cands = append(cands, candidate{pos: b.Position, priority: b.Priority})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].priority != cands[j].priority {
			return cands[i].priority > cands[j].priority
		}
		return absInt(cands[i].pos-target) < absInt(cands[j].pos-target)
	})

	for _, c := range cands {
		rel := c.pos - segStart
		total := prefixLen + rel
		if total >= opts.MinChunkSize && total <= opts.MaxChunkSize {
			return rel, true
		}
	}
	return 0, false
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func lastSentenceEnd(s string) int {
	best := -1
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			best = i + 1
		}
	}
	return best
}

// getSmartOverlap extracts the overlap string carried into the next chunk,
//: look at the last 2*overlapSize characters of content,
// preferring to start the overlap right after a sentence terminator, then
// right after a space, then falling back to exactly the last overlapSize
// characters.
func getSmartOverlap(content string, overlapSize int) string {
	if overlapSize <= 0 || len(content) == 0 {
		return ""
	}

	window := 2 * overlapSize
	if window > len(content) {
		window = len(content)
	}
	tail := content[len(content)-window:]

	if i := lastSentenceEnd(tail); i > 0 && len(tail)-i >= overlapSize/2 {
		return strings.TrimLeft(tail[i:], " \t\n")
	}
	if i := strings.LastIndexByte(tail, ' '); i >= 0 && len(tail)-i >= overlapSize/3 {
		return strings.TrimLeft(tail[i+1:], " \t\n")
	}
	if overlapSize > len(content) {
		return content
	}
	return content[len(content)-overlapSize:]
}

func countWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
