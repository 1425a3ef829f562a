package document

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "table": true,
	"tbody": true, "thead": true, "tfoot": true, "tr": true, "ul": true, "ol": true,
	"li": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "pre": true, "blockquote": true, "main": true, "header": true,
	"footer": true,
}

// htmlText extracts readable text from an HTML filing. Table rows become
// "cell | cell" lines so the model still sees the statement layout.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, head").Remove()

	var b strings.Builder
	writeBlock(&b, doc.Find("body"))
	return b.String(), nil
}

func writeBlock(b *strings.Builder, s *goquery.Selection) {
	if goquery.NodeName(s) == "tr" {
		var cells []string
		s.Find("th, td").Each(func(_ int, td *goquery.Selection) {
			if c := squeeze(td.Text()); c != "" {
				cells = append(cells, c)
			}
		})
		writeLine(b, strings.Join(cells, " | "))
		return
	}

	hasBlockChild := false
	s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		hasBlockChild = blockTags[goquery.NodeName(c)]
		return !hasBlockChild
	})
	if !hasBlockChild {
		writeLine(b, squeeze(s.Text()))
		return
	}

	// Mixed content: inline runs between blocks are kept on their own lines.
	var inline strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if blockTags[goquery.NodeName(c)] {
			writeLine(b, squeeze(inline.String()))
			inline.Reset()
			writeBlock(b, c)
			return
		}
		inline.WriteString(" ")
		inline.WriteString(c.Text())
	})
	writeLine(b, squeeze(inline.String()))
}

func writeLine(b *strings.Builder, line string) {
	if line == "" {
		return
	}
	b.WriteString(line)
	b.WriteString("\n")
}

func squeeze(s string) string { return strings.Join(strings.Fields(s), " ") }
