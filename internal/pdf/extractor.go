// Package pdfutil turns uploaded PDF documents into plain text for TEXT
// captures.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrTooLarge is returned when a document exceeds the read limit.
var ErrTooLarge = errors.New("pdf exceeds size limit")

// ExtractText reads PDF bytes and returns plain text using ledongthuc/pdf.
// Whitespace runs inside a page collapse to single spaces; pages are
// separated by a blank line and empty pages are dropped.
func ExtractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	pages := make([]string, 0, doc.NumPage())
	for n := 1; n <= doc.NumPage(); n++ {
		p := doc.Page(n)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		if text := collapseSpace(content); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// ExtractFromReader reads at most limit bytes before passing along to
// ExtractText. A non-positive limit reads everything.
func ExtractFromReader(r io.Reader, limit int64) (string, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return ExtractText(data)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
