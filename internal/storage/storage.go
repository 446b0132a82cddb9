// Package storage uploads images to the configured backend: local disk,
// Cloudflare R2 (S3 API) or Cloudinary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/munichweekly/internal/config"
)

var ErrEmptyObject = errors.New("storage object is empty")

// Storage is implemented by every upload backend.
type Storage interface {
	Upload(ctx context.Context, object *Object) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// Object is a file to be stored under Key.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// UploadResult carries the public URL and the key needed to delete the object later.
type UploadResult struct {
	URL string
	Key string
}

// New builds the Storage selected by settings.Provider.
func New(settings config.StorageSettings) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case "", "local":
		return NewLocal(settings.UploadDir, settings.UploadURLPath), nil
	case "r2":
		return NewR2(R2Config{
			Endpoint:  settings.R2Endpoint,
			Region:    settings.R2Region,
			Bucket:    settings.R2Bucket,
			AccessKey: settings.R2AccessKey,
			SecretKey: settings.R2SecretKey,
			PublicURL: settings.R2PublicURL,
		})
	case "cloudinary":
		return NewCloudinary(settings.CloudinaryName, settings.CloudinaryKey, settings.CloudinarySec, settings.Folder)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", settings.Provider)
	}
}

// NewKey 生成唯一的对象路径，例如 submissions/12/20250601-<uuid>.jpg
func NewKey(prefix, ext string, now time.Time) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := fmt.Sprintf("%s-%s%s", now.Format("20060102"), uuid.NewString(), ext)
	return path.Join(strings.Trim(prefix, "/"), name)
}

func validateObject(object *Object) error {
	if object == nil || len(object.Data) == 0 {
		return ErrEmptyObject
	}
	if strings.TrimSpace(object.Key) == "" {
		return errors.New("storage object key is required")
	}
	return nil
}
