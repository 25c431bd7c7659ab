package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/screenager/vecstore/internal/boundary"
	"github.com/screenager/vecstore/internal/verr"
)

// A .docx file is a zip archive of OOXML parts; word/document.xml holds the
// body, docProps/core.xml holds document properties. archive/zip +
// encoding/xml are stdlib — see DESIGN.md for why this stays off a
// third-party OOXML reader.
func extractDocx(path string, data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, verr.Wrap("extract.Docx", verr.UnreadableSource, err, "open %s as zip", path)
	}

	docXML, err := readZipPart(zr, "word/document.xml")
	if err != nil {
		return Result{}, verr.Wrap("extract.Docx", verr.UnreadableSource, err, "read word/document.xml")
	}

	paragraphs, hasTables, err := parseDocumentXML(docXML)
	if err != nil {
		return Result{}, verr.Wrap("extract.Docx", verr.UnreadableSource, err, "parse word/document.xml")
	}

	var b strings.Builder
	hasHeaders := false
	wordCount := 0
	for i, p := range paragraphs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		text := p.text
		if isHeadingStyle(p.style) {
			hasHeaders = true
			text = "# " + text
		}
		b.WriteString(text)
		wordCount += countWords(p.text)
	}

	meta := map[string]any{
		"has_headers": hasHeaders,
		"has_tables":  hasTables,
		"word_count":  wordCount,
	}
	if core, err := readZipPart(zr, "docProps/core.xml"); err == nil {
		for k, v := range coreProperties(core) {
			meta[k] = v
		}
	}

	return Result{Text: b.String(), Metadata: meta, DocKind: boundary.DocDocx}, nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("part %s not found", name)
}

type docxParagraph struct {
	style string
	text  string
}

// wordprocessingml is heavily namespaced; unmarshalling into a generic
// element tree keyed by local name (ignoring the namespace prefix) keeps
// this robust to the xmlns prefix a given Word version happens to emit.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

func parseDocumentXML(data []byte) ([]docxParagraph, bool, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, false, err
	}

	var paragraphs []docxParagraph
	hasTables := false

	var walk func(n xmlNode)
	walk = func(n xmlNode) {
		switch n.XMLName.Local {
		case "tbl":
			hasTables = true
			paragraphs = append(paragraphs, docxParagraph{text: flattenTable(n)})
			return
		case "p":
			paragraphs = append(paragraphs, docxParagraph{style: paragraphStyle(n), text: paragraphText(n)})
			return
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(root)

	return paragraphs, hasTables, nil
}

func paragraphStyle(p xmlNode) string {
	for _, n := range p.Nodes {
		if n.XMLName.Local != "pPr" {
			continue
		}
		for _, c := range n.Nodes {
			if c.XMLName.Local == "pStyle" {
				for _, a := range c.Attrs {
					if a.Name.Local == "val" {
						return a.Value
					}
				}
			}
		}
	}
	return ""
}

func paragraphText(p xmlNode) string {
	var b strings.Builder
	var walk func(n xmlNode)
	walk = func(n xmlNode) {
		if n.XMLName.Local == "t" {
			b.WriteString(n.Text)
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(p)
	return b.String()
}

// flattenTable renders a table as pipe-separated lines
func flattenTable(tbl xmlNode) string {
	var rows []string
	for _, tr := range tbl.Nodes {
		if tr.XMLName.Local != "tr" {
			continue
		}
		var cells []string
		for _, tc := range tr.Nodes {
			if tc.XMLName.Local != "tc" {
				continue
			}
			var cellText strings.Builder
			for _, p := range tc.Nodes {
				if p.XMLName.Local == "p" {
					cellText.WriteString(paragraphText(p))
				}
			}
			cells = append(cells, cellText.String())
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(rows, "\n")
}

func isHeadingStyle(style string) bool {
	return strings.HasPrefix(style, "Heading") || style == "Title"
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

func coreProperties(data []byte) map[string]any {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil
	}
	props := map[string]any{}
	for _, n := range root.Nodes {
		switch n.XMLName.Local {
		case "title", "subject", "creator", "description", "keywords":
			if n.Text != "" {
				props[n.XMLName.Local] = n.Text
			}
		}
	}
	return props
}
