package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
)

type localStorage struct {
	log  *logger.Logger
	root string
}

// NewLocalStorage roots a filesystem-backed RawStorage at dir, the fallback
// when no MINIO_ENDPOINT is configured.
func NewLocalStorage(log *logger.Logger, dir string) (RawStorage, error) {
	serviceLog := log.With("service", "LocalStorage")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw storage dir: %w", err)
	}
	serviceLog.Info("Local filesystem raw storage selected", "root", dir)
	return &localStorage{log: serviceLog, root: dir}, nil
}

func (s *localStorage) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", faults.Validation("resolve", fmt.Sprintf("invalid storage path %q", path))
	}
	return filepath.Join(s.root, clean), nil
}

func (s *localStorage) Put(ctx context.Context, path string, data io.Reader, size int64) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err == nil {
		return faults.Internal("put", fmt.Sprintf("blob path collision: %s", path), nil)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return faults.New(faults.KindPermanent, "put", "create blob dir failed", err)
	}

	// Write to a temp file then rename so readers never observe a partial
	// object.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return faults.New(faults.KindPermanent, "put", "create temp blob failed", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return faults.Transient("put", "write blob failed", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return faults.Transient("put", "close blob failed", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return faults.New(faults.KindPermanent, "put", "publish blob failed", err)
	}
	return nil
}

func (s *localStorage) Get(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, faults.NotFound("get", "object not found")
		}
		return nil, 0, faults.Transient("get", "open blob failed", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, faults.Transient("get", "stat blob failed", err)
	}
	return f, info.Size(), nil
}

func (s *localStorage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return faults.NotFound("delete", "object not found")
		}
		return faults.Transient("delete", "remove blob failed", err)
	}
	return nil
}

func (s *localStorage) DeletePrefix(ctx context.Context, prefix string) error {
	full, err := s.resolve(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return faults.Transient("delete_prefix", "remove blob prefix failed", err)
	}
	return nil
}

func (s *localStorage) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, faults.Transient("exists", "stat blob failed", err)
	}
	return true, nil
}
