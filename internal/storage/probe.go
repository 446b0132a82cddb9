package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when the payload cannot be decoded as a supported image.
var ErrNotImage = errors.New("file is not a supported image")

// ImageInfo describes a decoded image header.
type ImageInfo struct {
	Format      string
	Width       int
	Height      int
	ContentType string
	Ext         string
}

// ProbeImage reads only the image header to obtain format and pixel size.
func ProbeImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, ErrNotImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, ErrNotImage
	}

	info := ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}
	switch format {
	case "jpeg":
		info.ContentType, info.Ext = "image/jpeg", ".jpg"
	case "png":
		info.ContentType, info.Ext = "image/png", ".png"
	case "gif":
		info.ContentType, info.Ext = "image/gif", ".gif"
	case "webp":
		info.ContentType, info.Ext = "image/webp", ".webp"
	default:
		return ImageInfo{}, ErrNotImage
	}
	return info, nil
}
