package pipeline

import (
	"archive/zip"
	"io"
	"testing"
)

type docxWriter struct {
	zw *zip.Writer
}

func newDocxWriter(w io.Writer) *docxWriter {
	return &docxWriter{zw: zip.NewWriter(w)}
}

func (d *docxWriter) add(t *testing.T, name, content string) {
	t.Helper()
	f, err := d.zw.Create(name)
	if err != nil {
		t.Fatalf("zip create %s: %v", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("zip write %s: %v", name, err)
	}
}

func (d *docxWriter) close(t *testing.T) {
	t.Helper()
	if err := d.zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}
