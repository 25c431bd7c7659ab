// Package boundary implements a format-aware boundary detector: given
// normalized text and a document kind, it produces a sorted list of
// candidate split points ranked by how natural a stopping point each one
// is. The chunk assembler (internal/chunk) consumes this list.
package boundary

import (
	"regexp"
	"sort"
	"strings"
)

// Kind classifies a Boundary.
type Kind string

const (
	Header    Kind = "Header"
	Section   Kind = "Section"
	Paragraph Kind = "Paragraph"
	Line      Kind = "Line"
	Sentence  Kind = "Sentence"
	Word      Kind = "Word"
	Page      Kind = "Page"
	CodeBlock Kind = "CodeBlock"
	ListItem  Kind = "ListItem"
	Character Kind = "Character"
)

// Boundary is a candidate split point in a document's normalized text.
type Boundary struct {
	Position int
	Kind     Kind
	Priority int
	Context  string // e.g. header text, for Header/Section boundaries
}

// DocKind is the format of the source document, used to pick which
// boundary rules apply.
type DocKind string

const (
	DocMarkdown DocKind = "markdown"
	DocPDF      DocKind = "pdf"
	DocDocx     DocKind = "docx"
	DocText     DocKind = "text"
)

var (
	atxHeaderRe     = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+.*$`)
	fencedCodeRe    = regexp.MustCompile("(?m)^```")
	unorderedListRe = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	orderedListRe   = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	paragraphRe     = regexp.MustCompile(`\n[ \t]*\n`)
	singleNewlineRe = regexp.MustCompile(`\n`)
	sentenceEndRe   = regexp.MustCompile(`[.!?][ \t\n]+`)
	whitespaceRunRe = regexp.MustCompile(`[ \t\n]+`)
	allCapsLineRe   = regexp.MustCompile(`(?m)^[A-Z0-9][A-Z0-9 \t:/\-]{5,98}$`)
)

// Detect returns the sorted boundary list for text under docKind, ranking
// candidates by kind priority (headers and sections outrank paragraph and
// sentence breaks, which outrank raw word boundaries).
func Detect(text string, docKind DocKind) []Boundary {
	var bs []Boundary

	switch docKind {
	case DocMarkdown:
		bs = append(bs, markdownBoundaries(text)...)
	case DocPDF:
		bs = append(bs, pdfBoundaries(text)...)
	case DocDocx:
		bs = append(bs, docxBoundaries(text)...)
	default:
		bs = append(bs, textBoundaries(text)...)
	}

	sort.SliceStable(bs, func(i, j int) bool { return bs[i].Position < bs[j].Position })
	return bs
}

func markdownBoundaries(text string) []Boundary {
	var bs []Boundary

	for _, m := range atxHeaderRe.FindAllStringSubmatchIndex(text, -1) {
		level := m[3] - m[2] // length of the '#' run
		pos := m[0]
		context := strings.TrimSpace(text[m[0]:m[1]])
		bs = append(bs, Boundary{Position: pos, Kind: Header, Priority: 10 - level, Context: context})
	}
	for _, loc := range fencedCodeRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[0], Kind: CodeBlock, Priority: 8})
	}
	for _, loc := range unorderedListRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[0], Kind: ListItem, Priority: 6})
	}
	for _, loc := range orderedListRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[0], Kind: ListItem, Priority: 6})
	}
	for _, loc := range paragraphRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Paragraph, Priority: 5})
	}
	for _, loc := range singleNewlineRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Line, Priority: 3})
	}
	return bs
}

func pdfBoundaries(text string) []Boundary {
	var bs []Boundary
	for i, r := range text {
		if r == '\f' {
			bs = append(bs, Boundary{Position: i, Kind: Page, Priority: 9})
		}
	}
	for _, loc := range allCapsLineRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[0], Kind: Section, Priority: 7, Context: strings.TrimSpace(text[loc[0]:loc[1]])})
	}
	for _, loc := range paragraphRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Paragraph, Priority: 5})
	}
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Sentence, Priority: 4})
	}
	return bs
}

func docxBoundaries(text string) []Boundary {
	var bs []Boundary
	for i, r := range text {
		if r == '\f' {
			bs = append(bs, Boundary{Position: i, Kind: Section, Priority: 8})
		}
	}
	for _, loc := range allCapsLineRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[0], Kind: Header, Priority: 7, Context: strings.TrimSpace(text[loc[0]:loc[1]])})
	}
	for _, loc := range paragraphRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Paragraph, Priority: 5})
	}
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Sentence, Priority: 4})
	}
	return bs
}

func textBoundaries(text string) []Boundary {
	var bs []Boundary
	for _, loc := range paragraphRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Paragraph, Priority: 5})
	}
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Sentence, Priority: 4})
	}
	for _, loc := range whitespaceRunRe.FindAllStringIndex(text, -1) {
		bs = append(bs, Boundary{Position: loc[1], Kind: Word, Priority: 2})
	}
	return bs
}
