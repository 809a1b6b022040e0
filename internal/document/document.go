// Package document turns uploaded resume files into plain text.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Limits applied to every upload.
const (
	MaxFileSize  = 5 << 20
	MaxTextChars = 20000
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtractFailed     = errors.New("failed to extract text")
	ErrEmptyDocument     = errors.New("document contains no text")
	ErrTooLarge          = errors.New("document exceeds size limit")
)

// SupportedExtensions lists accepted file extensions without the dot.
var SupportedExtensions = []string{"txt", "pdf", "docx"}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	blankRun     = regexp.MustCompile(`\n{3,}`)
)

// Extract returns the text of a file, chosen by its extension. The result is
// trimmed and capped at MaxTextChars characters.
func Extract(filename string, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	ext := Extension(filename)

	var (
		text string
		err  error
	)
	switch ext {
	case "txt":
		text = string(data)
	case "pdf":
		text, err = extractPDF(data)
	case "docx":
		text, err = extractDocx(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExtractFailed, ext, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return Truncate(text, MaxTextChars), nil
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	return joinPages(reader.NumPage(), func(i int) (string, error) {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", nil
		}
		return page.GetPlainText(nil)
	}), nil
}

// joinPages concatenates the text of pages 1..n. A page that cannot be read
// is logged and skipped so the rest of the document still counts.
func joinPages(n int, text func(page int) (string, error)) string {
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		content, err := pageText(i, text)
		if err != nil {
			slog.Warn("skipping unreadable pdf page", slog.Int("page", i), slog.String("error", err.Error()))
			continue
		}
		if content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n")
}

func pageText(i int, text func(page int) (string, error)) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()
	return text(i)
}

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	content = blankRun.ReplaceAllString(content, "\n\n")
	return unescapeXML(content), nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
