// Package document turns uploaded financial documents into plain text for
// line-item extraction.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for documents we cannot read as text.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned when a document yields no text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// Format is the detected document type.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Document is the extracted text of one upload.
type Document struct {
	Name   string
	Format Format
	Text   string
	Digest string // hex SHA-256 of the raw bytes
}

// Extract detects the format of data and returns its text.
func Extract(name string, data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = pdfText(data)
	case FormatHTML:
		text, err = htmlText(data)
	case FormatMarkdown:
		text, err = markdownText(data)
	default:
		text = string(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s document %q: %w", format, name, err)
	}

	text = collapseBlankLines(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	sum := sha256.Sum256(data)
	return &Document{
		Name:   name,
		Format: format,
		Text:   text,
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

// DetectFormat uses the file extension first and content sniffing second.
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, nil
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".txt", ".json", ".csv", ".tsv":
		return FormatText, nil
	}

	sniffed := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(sniffed, "application/pdf"):
		return FormatPDF, nil
	case strings.HasPrefix(sniffed, "text/html"):
		return FormatHTML, nil
	case strings.HasPrefix(sniffed, "text/plain"):
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, name, sniffed)
}

// collapseBlankLines trims trailing spaces and squeezes runs of empty lines.
func collapseBlankLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
