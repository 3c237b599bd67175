package extractor

import (
	"bytes"
	"strings"
	"time"

	pdf "github.com/ledongthuc/pdf"

	"github.com/corvid-labs/corpora-backend/internal/faults"
)

type pdfExtractor struct{}

func (e *pdfExtractor) Extract(data []byte) (*Result, error) {
	const op = "extract_pdf"

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, faults.Permanent(op, "pdf reader failed", err)
	}

	total := r.NumPage()
	if total <= 0 {
		return nil, faults.Permanent(op, "pdf has no pages", nil)
	}

	result := &Result{PageCount: total}
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		text := ""
		if !page.V.IsNull() {
			plain, err := page.GetPlainText(nil)
			if err != nil {
				// A single damaged page is tolerable; the page stays empty.
				plain = ""
			}
			text = collapseWhitespace(plain)
		}
		result.Pages = append(result.Pages, Page{Number: i, Text: text})
	}

	info := r.Trailer().Key("Info")
	if !info.IsNull() {
		if author := strings.TrimSpace(info.Key("Author").Text()); author != "" {
			result.Author = &author
		}
		if created := parsePDFDate(info.Key("CreationDate").RawString()); created != nil {
			result.CreationDate = created
		}
	}

	return result, nil
}

// parsePDFDate decodes the "D:YYYYMMDDHHmmSS" family of PDF date strings.
func parsePDFDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "D:")
	if raw == "" {
		return nil
	}
	// Drop timezone suffix (Z, +hh'mm', -hh'mm'); stored dates are treated
	// as UTC.
	for _, sep := range []string{"Z", "+", "-"} {
		if idx := strings.Index(raw, sep); idx > 0 {
			raw = raw[:idx]
			break
		}
	}
	layouts := []string{"20060102150405", "200601021504", "2006010215", "20060102", "200601", "2006"}
	for _, layout := range layouts {
		if len(raw) == len(layout) {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
	}
	return nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}
