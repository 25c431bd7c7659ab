package chunk

import (
	"strings"
	"testing"

	"github.com/screenager/vecstore/internal/boundary"
)

func TestChunkingDeterminism(t *testing.T) {
	text := strings.Repeat("This is a test sentence. ", 50)
	opts := Options{MaxChunkSize: 150, MinChunkSize: 50, OverlapSize: 25, Strategy: Hybrid}

	chunks := Assemble(text, boundary.DocText, opts)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d, want %d", i, c.ChunkIndex, i)
		}
		last := i == len(chunks)-1
		if !last && (len(c.Content) < 50 || len(c.Content) > 150) {
			t.Errorf("chunk %d length %d, want [50,150]", i, len(c.Content))
		}
		if last && (len(c.Content) < 1 || len(c.Content) > 150) {
			t.Errorf("final chunk length %d, want [1,150]", len(c.Content))
		}
	}
}

func TestEmptyInputYieldsNoChunks(t *testing.T) {
	chunks := Assemble("", boundary.DocText, DefaultOptions())
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
	chunks = Assemble("   \n\t  ", boundary.DocText, DefaultOptions())
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace-only input, got %d", len(chunks))
	}
}

func TestInputShorterThanMinYieldsSingleChunk(t *testing.T) {
	text := "too short"
	chunks := Assemble(text, boundary.DocText, Options{MaxChunkSize: 1000, MinChunkSize: 500, OverlapSize: 50})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("Content = %q, want %q", chunks[0].Content, text)
	}
}

func TestZeroOverlapProducesDisjointRanges(t *testing.T) {
	text := strings.Repeat("Sentence number here. ", 40)
	opts := Options{MaxChunkSize: 120, MinChunkSize: 40, OverlapSize: 0, Strategy: Hybrid}
	chunks := Assemble(text, boundary.DocText, opts)

	for i := 1; i < len(chunks); i++ {
		if chunks[i].HasOverlap {
			t.Errorf("chunk %d should not report overlap when OverlapSize=0", i)
		}
		if chunks[i].StartPosition < chunks[i-1].EndPosition {
			t.Errorf("chunk %d starts at %d before chunk %d ends at %d", i, chunks[i].StartPosition, i-1, chunks[i-1].EndPosition)
		}
	}
}

func TestOverlapChunksCarryContextForward(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta epsilon. ", 30)
	opts := Options{MaxChunkSize: 100, MinChunkSize: 30, OverlapSize: 20, Strategy: Hybrid}
	chunks := Assemble(text, boundary.DocText, opts)

	found := false
	for i := 1; i < len(chunks); i++ {
		if chunks[i].HasOverlap {
			found = true
		}
		if chunks[i].Content == "" {
			t.Errorf("chunk %d has empty content", i)
		}
	}
	if len(chunks) > 1 && !found {
		t.Error("expected at least one chunk to report HasOverlap with nonzero OverlapSize")
	}
}

func TestStrategySemanticExcludesHeaders(t *testing.T) {
	text := "# Header One\n\nFirst paragraph body.\n\n# Header Two\n\nSecond paragraph body."
	opts := Options{MaxChunkSize: 40, MinChunkSize: 5, OverlapSize: 0, Strategy: Semantic}
	chunks := Assemble(text, boundary.DocMarkdown, opts)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
}

func TestStructuralStrategyRespectsCodeBlocks(t *testing.T) {
	text := "intro text here\n```go\ncode block contents\n```\nmore text after the block here"
	opts := Options{MaxChunkSize: 30, MinChunkSize: 5, OverlapSize: 0, Strategy: Structural}
	chunks := Assemble(text, boundary.DocMarkdown, opts)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
}

func TestDefaultOptionsUsedWhenMaxIsZero(t *testing.T) {
	chunks := Assemble("hello world", boundary.DocText, Options{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short input with defaults, got %d", len(chunks))
	}
}
