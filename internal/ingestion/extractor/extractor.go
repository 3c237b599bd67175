package extractor

import (
	"strings"
	"time"

	"github.com/corvid-labs/corpora-backend/internal/faults"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type Page struct {
	Number int
	Text   string
}

type Result struct {
	Pages        []Page
	Author       *string
	CreationDate *time.Time
	PageCount    int
}

// TextExtractor turns raw document bytes into per-page text plus whatever
// metadata the format carries.
type TextExtractor interface {
	Extract(data []byte) (*Result, error)
}

// DetectMediaType sniffs the true type from magic bytes; the filename and
// client-supplied content type are never trusted. A zip container is only
// DOCX when it holds word/ parts.
func DetectMediaType(data []byte) string {
	switch {
	case isPDF(data):
		return MediaTypePDF
	case isZip(data):
		if kind := detectOpenXMLKind(data); kind == "docx" {
			return MediaTypeDOCX
		}
		return "application/zip"
	case isPNG(data):
		return "image/png"
	case isJPEG(data):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Factory maps a detected MIME type to an extractor constructor.
type Factory struct {
	constructors map[string]func() TextExtractor
}

func NewFactory() *Factory {
	return &Factory{
		constructors: map[string]func() TextExtractor{
			MediaTypePDF:  func() TextExtractor { return &pdfExtractor{} },
			MediaTypeDOCX: func() TextExtractor { return &docxExtractor{} },
		},
	}
}

func (f *Factory) Supported(mediaType string) bool {
	_, ok := f.constructors[strings.ToLower(strings.TrimSpace(mediaType))]
	return ok
}

func (f *Factory) ForMediaType(mediaType string) (TextExtractor, error) {
	ctor, ok := f.constructors[strings.ToLower(strings.TrimSpace(mediaType))]
	if !ok {
		return nil, faults.UnsupportedMedia("extractor_factory", "unsupported media type: "+mediaType)
	}
	return ctor(), nil
}

func isPDF(b []byte) bool {
	// PDF starts with "%PDF-"
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	// ZIP local file header: PK\x03\x04
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func isPNG(b []byte) bool {
	return len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 'P' && b[2] == 'N' && b[3] == 'G' &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A
}

func isJPEG(b []byte) bool {
	return len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF
}
