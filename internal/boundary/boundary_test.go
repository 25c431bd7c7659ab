package boundary

import "testing"

func assertSorted(t *testing.T, bs []Boundary, textLen int) {
	t.Helper()
	for i, b := range bs {
		if b.Position < 0 || b.Position > textLen {
			t.Errorf("boundary %d position %d out of range [0,%d]", i, b.Position, textLen)
		}
		if i > 0 && bs[i-1].Position > b.Position {
			t.Errorf("boundaries not sorted ascending at index %d: %d > %d", i, bs[i-1].Position, b.Position)
		}
	}
}

func TestMarkdownHeaderPriority(t *testing.T) {
	text := "# H1\n\nbody\n\n## H2\n\nmore"
	bs := Detect(text, DocMarkdown)
	assertSorted(t, bs, len(text))

	var h1, h2 *Boundary
	for i := range bs {
		if bs[i].Kind == Header {
			if h1 == nil {
				h1 = &bs[i]
			} else if h2 == nil {
				h2 = &bs[i]
			}
		}
	}
	if h1 == nil || h2 == nil {
		t.Fatal("expected two header boundaries")
	}
	if h1.Priority != 9 { // 10 - level(1)
		t.Errorf("H1 priority = %d, want 9", h1.Priority)
	}
	if h2.Priority != 8 { // 10 - level(2)
		t.Errorf("H2 priority = %d, want 8", h2.Priority)
	}
}

func TestMarkdownFencedCodeBlock(t *testing.T) {
	text := "intro\n```go\ncode\n```\noutro"
	bs := Detect(text, DocMarkdown)
	found := false
	for _, b := range bs {
		if b.Kind == CodeBlock {
			found = true
		}
	}
	if !found {
		t.Error("expected a CodeBlock boundary")
	}
}

func TestPDFFormFeedPageBoundary(t *testing.T) {
	prefix := "page one content"
	text := prefix + "\fpage two content"
	bs := Detect(text, DocPDF)
	var pageBoundary *Boundary
	for i := range bs {
		if bs[i].Kind == Page {
			pageBoundary = &bs[i]
		}
	}
	if pageBoundary == nil {
		t.Fatal("expected a Page boundary at the form feed")
	}
	if pageBoundary.Priority != 9 {
		t.Errorf("Page priority = %d, want 9", pageBoundary.Priority)
	}
	if pageBoundary.Position != len(prefix) {
		t.Errorf("Page position = %d, want %d", pageBoundary.Position, len(prefix))
	}
}

func TestTextSentenceAndParagraph(t *testing.T) {
	text := "First sentence. Second sentence.\n\nNew paragraph here."
	bs := Detect(text, DocText)
	assertSorted(t, bs, len(text))

	var hasSentence, hasParagraph bool
	for _, b := range bs {
		if b.Kind == Sentence {
			hasSentence = true
		}
		if b.Kind == Paragraph {
			hasParagraph = true
		}
	}
	if !hasSentence || !hasParagraph {
		t.Errorf("expected both Sentence and Paragraph boundaries, got %+v", bs)
	}
}

func TestEmptyTextYieldsNoBoundaries(t *testing.T) {
	if bs := Detect("", DocText); len(bs) != 0 {
		t.Errorf("expected no boundaries for empty text, got %v", bs)
	}
}

func TestDocxAllCapsHeader(t *testing.T) {
	text := "INTRODUCTION SECTION\n\nSome body text follows here."
	bs := Detect(text, DocDocx)
	var found bool
	for _, b := range bs {
		if b.Kind == Header && b.Context == "INTRODUCTION SECTION" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ALL-CAPS header boundary, got %+v", bs)
	}
}
