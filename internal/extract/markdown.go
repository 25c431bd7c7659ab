package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/screenager/vecstore/internal/boundary"
)

var (
	mdHeaderRe    = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+)$`)
	mdFencedRe    = regexp.MustCompile("(?m)^```")
	mdListRe      = regexp.MustCompile(`(?m)^[ \t]*([-*+]|\d+\.)[ \t]+`)
	mdHeadingLine = regexp.MustCompile(`(?m)^(#{1,2})[ \t]+(.+)$`)
)

// extractMarkdown is the Markdown entry in the extractor registry: it
// produces title (first H1/H2, or the filename), has_headers,
// has_code_blocks, has_lists, and a position-sorted header_context list that
// store.AddDocument passes to NearestHeader to tag each chunk with its
// nearest preceding header.
func extractMarkdown(path string, data []byte) (Result, error) {
	text, err := decodeText("extract.Markdown", data)
	if err != nil {
		return Result{}, err
	}

	title := ""
	if m := mdHeadingLine.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[2])
	} else {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	meta := map[string]any{
		"title":           title,
		"has_headers":     mdHeaderRe.MatchString(text),
		"has_code_blocks": mdFencedRe.MatchString(text),
		"has_lists":       mdListRe.MatchString(text),
		"header_context":  headerContexts(text),
	}
	return Result{Text: text, Metadata: meta, DocKind: boundary.DocMarkdown}, nil
}

// headerContexts returns a position-sorted list of (position, header text)
// pairs; callers pick the header whose position is the largest one not
// exceeding a chunk's start_position.
func headerContexts(text string) []map[string]any {
	matches := mdHeaderRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		out = append(out, map[string]any{
			"position": m[0],
			"text":     strings.TrimSpace(text[m[4]:m[5]]),
		})
	}
	return out
}

// NearestHeader returns the text of the last header at or before pos, or
// "" if none precedes it.
func NearestHeader(headerContext []map[string]any, pos int) string {
	best := ""
	for _, h := range headerContext {
		p, _ := h["position"].(int)
		if p <= pos {
			if s, ok := h["text"].(string); ok {
				best = s
			}
		} else {
			break
		}
	}
	return best
}
