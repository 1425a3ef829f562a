package document

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const cellSeparator = " | "

var mdParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// markdownText walks the goldmark AST and keeps only text. GFM tables are
// flattened to "cell | cell" lines.
func markdownText(data []byte) (string, error) {
	doc := mdParser.Parse(text.NewReader(data))

	var b bytes.Buffer
	cellStart := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindText:
			if entering {
				t := n.(*ast.Text)
				b.Write(t.Segment.Value(data))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case ast.KindString:
			if entering {
				b.Write(n.(*ast.String).Value)
			}
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(data))
				}
			}
		case east.KindTableCell:
			if entering {
				cellStart = b.Len()
				break
			}
			cell := strings.TrimSpace(string(b.Bytes()[cellStart:]))
			b.Truncate(cellStart)
			b.WriteString(cell)
			b.WriteString(cellSeparator)
		case east.KindTableRow, east.KindTableHeader:
			if !entering {
				if bytes.HasSuffix(b.Bytes(), []byte(cellSeparator)) {
					b.Truncate(b.Len() - len(cellSeparator))
				}
				b.WriteByte('\n')
			}
		case east.KindTable:
		default:
			if !entering && n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
