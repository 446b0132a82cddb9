package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Cloudinary stores images on Cloudinary; the key is the Cloudinary public id.
type Cloudinary struct {
	uploader *uploader.API
	folder   string
}

// NewCloudinary builds the uploader from account credentials.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("cloudinary uploader: %w", err)
	}
	return &Cloudinary{uploader: up, folder: strings.Trim(folder, "/")}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, object *Object) (*UploadResult, error) {
	if err := validateObject(object); err != nil {
		return nil, err
	}
	publicID := strings.TrimSuffix(object.Key, path.Ext(object.Key))
	result, err := c.uploader.Upload(ctx, bytes.NewReader(object.Data), uploader.UploadParams{
		Folder:   c.folder,
		PublicID: publicID,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", result.Error.Message)
	}
	return &UploadResult{URL: result.SecureURL, Key: result.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if _, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: key}); err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", key, err)
	}
	return nil
}
