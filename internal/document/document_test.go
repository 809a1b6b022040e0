package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	documentXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_Text(t *testing.T) {
	t.Parallel()

	got, err := Extract("Resume.TXT", []byte("  Jane Doe\nGo engineer  \n"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Jane Doe\nGo engineer" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_Docx(t *testing.T) {
	t.Parallel()

	data := buildDocx(t, "Jane Doe", "Senior Go Engineer &amp; SRE")
	got, err := Extract("cv.docx", data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "Jane Doe") || !strings.Contains(got, "Senior Go Engineer & SRE") {
		t.Errorf("Extract = %q", got)
	}
	if strings.Contains(got, "<") {
		t.Errorf("markup left in output: %q", got)
	}
}

func TestExtract_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{"unsupported extension", "resume.rtf", []byte("text"), ErrUnsupportedFormat},
		{"no extension", "resume", []byte("text"), ErrUnsupportedFormat},
		{"blank text", "resume.txt", []byte(" \n\t "), ErrEmptyDocument},
		{"corrupt pdf", "resume.pdf", []byte("%PDF-1.4 garbage"), ErrExtractFailed},
		{"corrupt docx", "resume.docx", []byte("not a zip"), ErrExtractFailed},
		{"too large", "resume.txt", bytes.Repeat([]byte("a"), MaxFileSize+1), ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Extract(tt.filename, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtract_Truncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", MaxTextChars+500)
	got, err := Extract("resume.txt", []byte(long))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if n := utf8.RuneCountInString(got); n != MaxTextChars {
		t.Errorf("length = %d characters, want %d", n, MaxTextChars)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a character")
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"a.PDF":        "pdf",
		"dir/b.docx":   "docx",
		"c.tar.txt":    "txt",
		"noextension":  "",
		"trailingdot.": "",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinPages_SkipsUnreadablePages(t *testing.T) {
	t.Parallel()

	pages := map[int]string{1: "Summary", 3: "Experience"}
	got := joinPages(4, func(i int) (string, error) {
		switch i {
		case 2:
			return "", errors.New("bad content stream")
		case 4:
			panic("broken font")
		}
		return pages[i], nil
	})

	if got != "Summary\nExperience" {
		t.Errorf("joinPages() = %q, want readable pages only", got)
	}
}
