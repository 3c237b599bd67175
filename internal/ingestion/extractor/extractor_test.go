package extractor

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/corvid-labs/corpora-backend/internal/faults"
)

func TestDetectMediaType(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"pdf", []byte("%PDF-1.7 rest"), MediaTypePDF},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"unknown", []byte{0x00, 0x01, 0x02, 0x03}, "application/octet-stream"},
		{"docx", buildDocx(t, "hello"), MediaTypeDOCX},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectMediaType(tc.data); got != tc.want {
				t.Fatalf("DetectMediaType: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestFactoryUnknownTypeIsUnsupportedMedia(t *testing.T) {
	f := NewFactory()
	_, err := f.ForMediaType("image/png")
	if err == nil {
		t.Fatalf("want error for image/png")
	}
	if faults.KindOf(err) != faults.KindUnsupportedMedia {
		t.Fatalf("kind: want=%s got=%s", faults.KindUnsupportedMedia, faults.KindOf(err))
	}
}

func TestFactorySupported(t *testing.T) {
	f := NewFactory()
	if !f.Supported(MediaTypePDF) {
		t.Fatalf("pdf should be supported")
	}
	if !f.Supported(MediaTypeDOCX) {
		t.Fatalf("docx should be supported")
	}
	if f.Supported("text/html") {
		t.Fatalf("html should not be supported")
	}
}

func TestDocxExtractSinglePage(t *testing.T) {
	f := NewFactory()
	ex, err := f.ForMediaType(MediaTypeDOCX)
	if err != nil {
		t.Fatalf("ForMediaType: %v", err)
	}

	res, err := ex.Extract(buildDocx(t, "alpha beta"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.PageCount != 1 {
		t.Fatalf("page count: want=1 got=%d", res.PageCount)
	}
	if res.Pages[0].Text != "alpha beta" {
		t.Fatalf("page text: want=%q got=%q", "alpha beta", res.Pages[0].Text)
	}
	if res.Author == nil || *res.Author != "test author" {
		t.Fatalf("author: got=%v", res.Author)
	}
}

func TestDocxExtractSplitsOnPageBreak(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>first page</w:t></w:r></w:p>
    <w:p><w:r><w:br w:type="page"/><w:t>second page</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildDocxRaw(t, doc)

	ex := &docxExtractor{}
	res, err := ex.Extract(data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.PageCount != 2 {
		t.Fatalf("page count: want=2 got=%d", res.PageCount)
	}
	if res.Pages[0].Text != "first page" {
		t.Fatalf("page 1: got=%q", res.Pages[0].Text)
	}
	if res.Pages[1].Text != "second page" {
		t.Fatalf("page 2: got=%q", res.Pages[1].Text)
	}
}

func TestDocxExtractRejectsCorruptZip(t *testing.T) {
	ex := &docxExtractor{}
	_, err := ex.Extract([]byte("PK\x03\x04 not actually a zip"))
	if err == nil {
		t.Fatalf("want error for corrupt container")
	}
	var f *faults.Fault
	if !errors.As(err, &f) {
		t.Fatalf("error type: got=%T", err)
	}
	if f.Kind != faults.KindPermanent {
		t.Fatalf("kind: want=%s got=%s", faults.KindPermanent, f.Kind)
	}
}

func buildDocx(t *testing.T, text string) []byte {
	t.Helper()
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body>
</w:document>`
	return buildDocxRaw(t, doc)
}

func buildDocxRaw(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := map[string]string{
		"word/document.xml": documentXML,
		"docProps/core.xml": `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
  <dc:creator>test author</dc:creator>
  <dcterms:created>2024-03-01T10:00:00Z</dcterms:created>
</cp:coreProperties>`,
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
