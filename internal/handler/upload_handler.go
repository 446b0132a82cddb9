package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/service"
)

const uploadFormField = "file"

// readUpload 读取 multipart 中的图片文件，超过上限的部分不会读入内存。
func (a *API) readUpload(c *gin.Context) (service.ImageUpload, bool) {
	header, err := c.FormFile(uploadFormField)
	if err != nil {
		respondError(c, http.StatusBadRequest, "image_required", "missing image file")
		return service.ImageUpload{}, false
	}

	limit := a.cfg.Storage.MaxUploadBytes
	if limit > 0 && header.Size > limit {
		respondError(c, http.StatusRequestEntityTooLarge, "image_too_large",
			fmt.Sprintf("image exceeds %d bytes", limit))
		return service.ImageUpload{}, false
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "image_invalid", "failed to read image")
		return service.ImageUpload{}, false
	}
	defer file.Close()

	var reader io.Reader = file
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		respondError(c, http.StatusBadRequest, "image_invalid", "failed to read image")
		return service.ImageUpload{}, false
	}

	return service.ImageUpload{Filename: header.Filename, Data: data}, true
}
