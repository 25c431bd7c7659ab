package extract

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/screenager/vecstore/internal/boundary"
	"github.com/screenager/vecstore/internal/verr"
)

// extractPDF implements a minimal PDF text extractor: it decompresses each
// FlateDecode content stream in file order and pulls text out of the
// Tj and TJ text-showing operators, treating one content stream as one page.
// This is a deliberately narrow reading of the PDF object model (no xref
// parsing, no font/CMap-aware glyph mapping, no support for encrypted or
// linearized files) — see DESIGN.md for why this is stdlib-only rather
// than built on a third-party PDF library.
func extractPDF(path string, data []byte) (Result, error) {
	streams := findStreams(data)
	if len(streams) == 0 {
		return Result{}, verr.New("extract.PDF", verr.UnreadableSource, "no content streams found in %s", path)
	}

	var pages []string
	for _, raw := range streams {
		decoded, err := inflateStream(raw)
		if err != nil {
			continue // a single malformed stream does not fail the whole document
		}
		text := textFromContentStream(decoded)
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return Result{}, verr.New("extract.PDF", verr.UnreadableSource, "%s yielded no extractable text", path)
	}

	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteByte('\f')
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i+1, page)
	}

	meta := map[string]any{
		"title":         pdfInfoField(data, "Title"),
		"author":        pdfInfoField(data, "Author"),
		"subject":       pdfInfoField(data, "Subject"),
		"creator":       pdfInfoField(data, "Creator"),
		"producer":      pdfInfoField(data, "Producer"),
		"creation_date": pdfInfoField(data, "CreationDate"),
		"total_pages":   len(pages),
	}
	return Result{Text: b.String(), Metadata: meta, DocKind: boundary.DocPDF}, nil
}

var streamRe = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)

// findStreams returns the raw bytes between each stream/endstream pair, in
// file order.
func findStreams(data []byte) [][]byte {
	matches := streamRe.FindAllSubmatch(data, -1)
	out := make([][]byte, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// inflateStream assumes FlateDecode, the overwhelmingly common content
// stream filter; a stream that isn't zlib-compressed is returned as-is so
// plain (uncompressed) content streams still extract.
func inflateStream(raw []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return raw, nil
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var (
	tjStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	tjArrayRe  = regexp.MustCompile(`\[((?:[^\[\]]|\\.)*)\]\s*TJ`)
	tjArrayStr = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

// textFromContentStream extracts the string operands of Tj and TJ text
// operators, concatenating the strings of a TJ array without a separator
// and ending each operator's text with a newline. All Tj operands are
// emitted before all TJ operands.
func textFromContentStream(content []byte) string {
	var b strings.Builder
	for _, m := range tjStringRe.FindAllSubmatch(content, -1) {
		b.WriteString(unescapePDFString(m[1]))
		b.WriteByte('\n')
	}
	for _, m := range tjArrayRe.FindAllSubmatch(content, -1) {
		for _, s := range tjArrayStr.FindAllSubmatch(m[1], -1) {
			b.WriteString(unescapePDFString(s[1]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func unescapePDFString(s []byte) string {
	repl := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
	return repl.Replace(string(s))
}

func pdfInfoField(data []byte, field string) string {
	re := regexp.MustCompile(`/` + field + `\s*\(((?:[^()\\]|\\.)*)\)`)
	m := re.FindSubmatch(data)
	if m == nil {
		return ""
	}
	return unescapePDFString(m[1])
}

