package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps files on disk under dir; the router serves dir at urlPath.
type Local struct {
	dir     string
	urlPath string
}

// NewLocal creates a disk-backed storage.
func NewLocal(dir, urlPath string) *Local {
	if strings.TrimSpace(dir) == "" {
		dir = "data/uploads"
	}
	urlPath = "/" + strings.Trim(strings.TrimSpace(urlPath), "/")
	if urlPath == "/" {
		urlPath = "/uploads"
	}
	return &Local{dir: dir, urlPath: urlPath}
}

// Dir returns the directory files are written to.
func (l *Local) Dir() string {
	return l.dir
}

// URLPath returns the public path prefix.
func (l *Local) URLPath() string {
	return l.urlPath
}

func (l *Local) Upload(_ context.Context, object *Object) (*UploadResult, error) {
	if err := validateObject(object); err != nil {
		return nil, err
	}
	target, err := l.resolve(object.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(target, object.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	return &UploadResult{URL: l.urlPath + "/" + filepath.ToSlash(object.Key), Key: object.Key}, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (l *Local) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.dir, cleaned), nil
}
