package storage

import (
	"context"
	"io"
	"regexp"
	"strings"
)

// RawStorage is the blob store holding uploaded documents verbatim.
// Paths are opaque "{workspace_id}/{document_id}-{sanitized_name}" strings.
// Objects are write-once: Put to an existing path is an invariant violation.
type RawStorage interface {
	Put(ctx context.Context, path string, data io.Reader, size int64) error
	// Get returns a lazy reader plus the object size. The caller closes the
	// reader; its lifetime may span an HTTP response body.
	Get(ctx context.Context, path string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, path string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Exists(ctx context.Context, path string) (bool, error)
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName flattens a user-supplied filename into a storage-safe token.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = unsafePathChars.ReplaceAllString(name, "_")
	if name == "" {
		name = "file"
	}
	return name
}

// ObjectPath builds the canonical blob path for a document.
func ObjectPath(workspaceID, documentID, documentName string) string {
	return workspaceID + "/" + documentID + "-" + SanitizeName(documentName)
}
