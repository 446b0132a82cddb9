package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/metrics"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/service"
)

type galleryConfigPayload struct {
	IssueID           uint   `json:"issueId"`
	IsPublished       bool   `json:"isPublished"`
	DisplayOrder      *int   `json:"displayOrder"`
	CoverImageURL     string `json:"coverImageUrl"`
	CustomTitle       string `json:"customTitle"`
	CustomDescription string `json:"customDescription"`
}

func (p galleryConfigPayload) toInput() service.GalleryConfigInput {
	return service.GalleryConfigInput{
		IssueID:           p.IssueID,
		IsPublished:       p.IsPublished,
		DisplayOrder:      p.DisplayOrder,
		CoverImageURL:     p.CoverImageURL,
		CustomTitle:       p.CustomTitle,
		CustomDescription: p.CustomDescription,
	}
}

type publishPayload struct {
	IsPublished bool `json:"isPublished"`
}

type orderPayload struct {
	SubmissionIDs []uint `json:"submissionIds"`
}

// ListPublishedGalleries 返回已发布的作品展列表。
func (a *API) ListPublishedGalleries(c *gin.Context) {
	items, err := a.galleries.ListPublished()
	if err != nil {
		a.respondServiceError(c, err, "failed to list galleries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *API) GetIssueGallery(c *gin.Context) {
	a.issueGallery(c, false)
}

// PreviewIssueGallery lets admins see unpublished galleries.
func (a *API) PreviewIssueGallery(c *gin.Context) {
	a.issueGallery(c, true)
}

func (a *API) issueGallery(c *gin.Context, includeUnpublished bool) {
	issueID, ok := uintParam(c, "issueId")
	if !ok {
		return
	}

	gallery, err := a.galleries.IssueGallery(issueID, includeUnpublished, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to load gallery")
		return
	}
	c.JSON(http.StatusOK, gallery)
}

// GetMasonryLayout 计算瀑布流排列，columns 只接受 2 或 4。
func (a *API) GetMasonryLayout(c *gin.Context) {
	issueID, ok := uintParam(c, "issueId")
	if !ok {
		return
	}
	columns, err := strconv.Atoi(c.DefaultQuery("columns", "2"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "columns_invalid", "columns must be 2 or 4")
		return
	}

	ordering, err := a.layouts.MasonryOrdering(c.Request.Context(), issueID, columns, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to compute layout")
		return
	}
	c.JSON(http.StatusOK, ordering)
}

// RecordGalleryView 统计作品展浏览量，访客 ID 来自会话 cookie。
func (a *API) RecordGalleryView(c *gin.Context) {
	issueID, ok := uintParam(c, "issueId")
	if !ok {
		return
	}

	stats, err := a.galleries.RecordView(issueID, middleware.VisitorID(c), a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to record view")
		return
	}

	metrics.RecordGalleryView()
	c.JSON(http.StatusOK, gin.H{"item": stats})
}

func (a *API) ListGalleryConfigs(c *gin.Context) {
	items, err := a.galleries.ListConfigs()
	if err != nil {
		a.respondServiceError(c, err, "failed to list gallery configs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *API) GetGalleryConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	config, err := a.galleries.GetConfig(id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load gallery config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": config})
}

func (a *API) CreateGalleryConfig(c *gin.Context) {
	var payload galleryConfigPayload
	if !bindJSON(c, &payload) {
		return
	}

	config, err := a.galleries.CreateConfig(c.Request.Context(), payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to create gallery config")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "gallery config created", "item": config})
}

func (a *API) UpdateGalleryConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload galleryConfigPayload
	if !bindJSON(c, &payload) {
		return
	}

	config, err := a.galleries.UpdateConfig(c.Request.Context(), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update gallery config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "gallery config updated", "item": config})
}

func (a *API) DeleteGalleryConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := a.galleries.DeleteConfig(c.Request.Context(), id); err != nil {
		a.respondServiceError(c, err, "failed to delete gallery config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "gallery config deleted"})
}

func (a *API) PublishGalleryConfig(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload publishPayload
	if !bindJSON(c, &payload) {
		return
	}

	config, err := a.galleries.SetPublished(c.Request.Context(), id, payload.IsPublished)
	if err != nil {
		a.respondServiceError(c, err, "failed to publish gallery config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "gallery config updated", "item": config})
}

// SetGalleryOrder 用给定顺序整体替换入选作品的展示顺序。
func (a *API) SetGalleryOrder(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload orderPayload
	if !bindJSON(c, &payload) {
		return
	}

	rows, err := a.galleries.SetSubmissionOrder(c.Request.Context(), id, payload.SubmissionIDs)
	if err != nil {
		a.respondServiceError(c, err, "failed to save gallery order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "gallery order saved", "items": rows})
}

// GalleryStats returns page views and unique visitors per issue.
func (a *API) GalleryStats(c *gin.Context) {
	overview, err := a.galleries.Analytics().Overview(parsePositiveInt(c.Query("limit"), 10))
	if err != nil {
		a.respondServiceError(c, err, "failed to load gallery stats")
		return
	}
	c.JSON(http.StatusOK, overview)
}
