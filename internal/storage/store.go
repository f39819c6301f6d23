package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the uploaded-document storage contract this core consumes.
// Production deployments back it with S3-style presigned URLs; mechanics are
// out of scope here.
type ObjectStore interface {
	// Presign returns a URL under which the named object can be read by the
	// model for a limited time.
	Presign(name string) (string, error)
	// Write stores the object bytes under name.
	Write(ctx context.Context, name string, data []byte) error
}

// FSStore keeps objects under a base directory and presigns them as URLs
// under a base URL (or file:// URLs when none is configured). Good enough
// for local runs and tests.
type FSStore struct {
	baseDir string
	baseURL string
	logger  *slog.Logger
}

func NewFSStore(baseDir, baseURL string, logger *slog.Logger) *FSStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (s *FSStore) Presign(name string) (string, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(name))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	if s.baseURL != "" {
		escaped := url.PathEscape(name)
		// keep the object key's slashes readable
		escaped = strings.ReplaceAll(escaped, "%2F", "/")
		return s.baseURL + "/" + escaped, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (s *FSStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.baseDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.logger.Debug("object stored", "name", name, "bytes", len(data))
	return nil
}
