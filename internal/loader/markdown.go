package loader

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithXHTML(),
		),
	)
}

// stripESM removes top-level import and export statements from an MDX
// body. Lines inside fenced code blocks are kept. An export whose braces
// or parentheses open on its first line is skipped until they close.
// maxLine bounds a single line; longer lines fail with bufio.ErrTooLong.
func stripESM(r io.Reader, maxLine int) ([]byte, error) {
	var out bytes.Buffer

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(maxLine, 64*1024)), maxLine)

	fence := ""
	depth := 0
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if depth > 0 {
			depth += nesting(line)
			continue
		}

		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
		} else if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fence = trimmed[:3]
		} else if isESM(line) {
			if d := nesting(line); d > 0 {
				depth = d
			}
			continue
		}

		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

func nesting(line string) int {
	return strings.Count(line, "{") + strings.Count(line, "(") -
		strings.Count(line, "}") - strings.Count(line, ")")
}

func isESM(line string) bool {
	return strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "export ")
}
