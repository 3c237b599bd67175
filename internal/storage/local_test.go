package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
)

func newTestStorage(t *testing.T) RawStorage {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	s, err := NewLocalStorage(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return s
}

func TestLocalStoragePutGetRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	payload := []byte("%PDF-1.4 fake body")
	path := "ws-1/doc-1-report.pdf"
	if err := s.Put(ctx, path, bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, size, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	if size != int64(len(payload)) {
		t.Fatalf("size: want=%d got=%d", len(payload), size)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: want=%q got=%q", payload, got)
	}
}

func TestLocalStoragePutCollision(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	path := "ws-1/doc-1-a.txt"
	if err := s.Put(ctx, path, bytes.NewReader([]byte("one")), 3); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	err := s.Put(ctx, path, bytes.NewReader([]byte("two")), 3)
	if err == nil {
		t.Fatalf("second Put: want collision error, got nil")
	}
	if faults.KindOf(err) != faults.KindInternal {
		t.Fatalf("collision kind: want=%s got=%s", faults.KindInternal, faults.KindOf(err))
	}
}

func TestLocalStorageGetMissingIsNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, _, err := s.Get(context.Background(), "ws-x/absent")
	if faults.KindOf(err) != faults.KindNotFound {
		t.Fatalf("kind: want=%s got=%s (err=%v)", faults.KindNotFound, faults.KindOf(err), err)
	}
}

func TestLocalStorageDeletePrefix(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	paths := []string{"ws-1/doc-1-a.txt", "ws-1/doc-2-b.txt", "ws-2/doc-3-c.txt"}
	for _, p := range paths {
		if err := s.Put(ctx, p, bytes.NewReader([]byte("x")), 1); err != nil {
			t.Fatalf("Put %s: %v", p, err)
		}
	}

	if err := s.DeletePrefix(ctx, "ws-1/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	for _, p := range paths[:2] {
		exists, err := s.Exists(ctx, p)
		if err != nil {
			t.Fatalf("Exists %s: %v", p, err)
		}
		if exists {
			t.Fatalf("object %s survived prefix delete", p)
		}
	}
	exists, err := s.Exists(ctx, paths[2])
	if err != nil {
		t.Fatalf("Exists %s: %v", paths[2], err)
	}
	if !exists {
		t.Fatalf("object %s outside prefix was deleted", paths[2])
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"notes 2024 (final).docx", "notes_2024_final_.docx"},
		{"", "file"},
	}
	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Fatalf("SanitizeName(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}
