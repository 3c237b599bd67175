package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/corvid-labs/corpora-backend/internal/faults"
)

type docxExtractor struct{}

// Extract walks word/document.xml gathering <w:t> runs. DOCX has no fixed
// pagination, so pages come from explicit page breaks (<w:br w:type="page">
// and <w:lastRenderedPageBreak/>); a document without breaks is one page.
// Author and creation date come from docProps/core.xml when present.
func (e *docxExtractor) Extract(data []byte) (*Result, error) {
	const op = "extract_docx"

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, faults.Permanent(op, "docx is not a valid zip container", err)
	}

	docXML, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, faults.Permanent(op, "word/document.xml missing", err)
	}

	pages, err := splitDocumentXML(docXML)
	if err != nil {
		return nil, faults.Permanent(op, "parse word/document.xml failed", err)
	}
	if len(pages) == 0 {
		pages = []Page{{Number: 1, Text: ""}}
	}

	result := &Result{Pages: pages, PageCount: len(pages)}

	if coreXML, err := readZipFile(zr, "docProps/core.xml"); err == nil {
		author, created := parseCoreProps(coreXML)
		if author != "" {
			result.Author = &author
		}
		result.CreationDate = created
	}

	return result, nil
}

// detectOpenXMLKind tells docx from pptx and other zip payloads by the
// presence of their key parts.
func detectOpenXMLKind(zipBytes []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "unknown"
	}
	hasWord := false
	hasPpt := false
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "word/") {
			hasWord = true
		}
		if strings.HasPrefix(f.Name, "ppt/") {
			hasPpt = true
		}
	}
	switch {
	case hasWord && !hasPpt:
		return "docx"
	case hasPpt && !hasWord:
		return "pptx"
	default:
		return "unknown"
	}
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, io.ErrUnexpectedEOF
}

func splitDocumentXML(raw []byte) ([]Page, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))

	var pages []Page
	var current strings.Builder
	flush := func() {
		text := collapseWhitespace(current.String())
		pages = append(pages, Page{Number: len(pages) + 1, Text: text})
		current.Reset()
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &t); err != nil {
					return nil, err
				}
				current.WriteString(text)
			case "br":
				for _, attr := range t.Attr {
					if attr.Name.Local == "type" && attr.Value == "page" {
						flush()
					}
				}
			case "lastRenderedPageBreak":
				if current.Len() > 0 {
					flush()
				}
			case "tab":
				current.WriteString(" ")
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				current.WriteString("\n")
			}
		}
	}
	if strings.TrimSpace(current.String()) != "" || len(pages) == 0 {
		flush()
	}
	return pages, nil
}

type coreProps struct {
	Creator string `xml:"creator"`
	Created string `xml:"created"`
}

func parseCoreProps(raw []byte) (string, *time.Time) {
	var props coreProps
	if err := xml.Unmarshal(raw, &props); err != nil {
		return "", nil
	}
	author := strings.TrimSpace(props.Creator)
	createdRaw := strings.TrimSpace(props.Created)
	if createdRaw == "" {
		return author, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, createdRaw); err == nil {
			return author, &t
		}
	}
	return author, nil
}
