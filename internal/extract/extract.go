// Package extract implements extractor dispatch: a registry keyed by file
// extension, each entry producing normalized UTF-8 text plus document-level
// metadata, with the same header-scanning regex style a Markdown-aware
// chunker would use, generalized here from chunk boundaries to document
// metadata extraction.
package extract

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/screenager/vecstore/internal/boundary"
	"github.com/screenager/vecstore/internal/verr"
)

// Result is what every extractor returns: normalized text plus
// document-level metadata.
type Result struct {
	Text     string
	Metadata map[string]any
	DocKind  boundary.DocKind
}

// Extractor turns raw file bytes into a Result.
type Extractor func(path string, data []byte) (Result, error)

var registry = map[string]Extractor{
	".txt":  extractText,
	".text": extractText,
	".log":  extractText,
	".csv":  extractText,
	".json": extractText,
	".xml":  extractText,

	".md":       extractMarkdown,
	".markdown": extractMarkdown,
	".mdown":    extractMarkdown,
	".mkd":      extractMarkdown,

	".pdf": extractPDF,

	".docx": extractDocx,
}

// SupportedExtensions lists every extension the registry can dispatch.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	return exts
}

// IsSupported reports whether path's extension has a registered extractor.
func IsSupported(path string) bool {
	_, ok := registry[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract dispatches path to its registered extractor by extension. The
// text and Markdown extractors decode raw bytes through decodeText's
// fallback ladder; the PDF and DOCX extractors read the raw bytes directly.
func Extract(path string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	fn, ok := registry[ext]
	if !ok {
		return Result{}, verr.New("extract.Extract", verr.UnsupportedFormat, "no extractor registered for %q", ext)
	}
	return fn(path, data)
}

// decodeText applies the UTF-8 -> platform-default -> UnreadableSource
// fallback ladder. "Platform default" is modeled as
// Windows-1252, the common fallback for legacy plain-text and log files on
// the platforms vstore targets; a text stream that fails both decodings is
// treated as binary.
func decodeText(op string, data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", verr.Wrap(op, verr.UnreadableSource, err, "decode as UTF-8 or Windows-1252")
	}
	if !utf8.Valid(decoded) {
		return "", verr.New(op, verr.UnreadableSource, "content is not valid text")
	}
	return string(decoded), nil
}

func extractText(path string, data []byte) (Result, error) {
	text, err := decodeText("extract.Text", data)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Metadata: map[string]any{}, DocKind: boundary.DocText}, nil
}
