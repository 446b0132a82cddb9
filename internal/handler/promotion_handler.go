package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/service"
)

type promotionPayload struct {
	IsEnabled   bool   `json:"isEnabled"`
	NavTitle    string `json:"navTitle"`
	PageURL     string `json:"pageUrl"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (p promotionPayload) toInput() service.PromotionInput {
	return service.PromotionInput{
		IsEnabled:   p.IsEnabled,
		NavTitle:    p.NavTitle,
		PageURL:     p.PageURL,
		Title:       p.Title,
		Description: p.Description,
	}
}

type promotionImagePayload struct {
	ImageAlt   *string `json:"imageAlt"`
	ImageOrder *int    `json:"imageOrder"`
}

type reorderPayload struct {
	ImageIDs []uint `json:"imageIds"`
}

// ActivePromotion 返回当前生效的推广页，没有时 item 为 null。
func (a *API) ActivePromotion(c *gin.Context) {
	config, err := a.promotions.Active()
	if err != nil {
		a.respondServiceError(c, err, "failed to load promotion")
		return
	}
	if config == nil {
		c.JSON(http.StatusOK, gin.H{"item": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": service.NewPromotionView(*config)})
}

func (a *API) PromotionPage(c *gin.Context) {
	config, err := a.promotions.ByPageURL(c.Param("pageUrl"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load promotion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": service.NewPromotionView(*config)})
}

func (a *API) ListPromotions(c *gin.Context) {
	items, err := a.promotions.List()
	if err != nil {
		a.respondServiceError(c, err, "failed to list promotions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *API) GetPromotion(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	config, err := a.promotions.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load promotion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": service.NewPromotionView(*config)})
}

func (a *API) CreatePromotion(c *gin.Context) {
	var payload promotionPayload
	if !bindJSON(c, &payload) {
		return
	}

	config, err := a.promotions.Create(payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to create promotion")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "promotion created", "item": config})
}

func (a *API) UpdatePromotion(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload promotionPayload
	if !bindJSON(c, &payload) {
		return
	}

	config, err := a.promotions.Update(id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update promotion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "promotion updated", "item": config})
}

func (a *API) DeletePromotion(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := a.promotions.Delete(c.Request.Context(), id); err != nil {
		a.respondServiceError(c, err, "failed to delete promotion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "promotion deleted"})
}

// ActivatePromotion 激活指定配置，其余配置自动失效。
func (a *API) ActivatePromotion(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	config, err := a.promotions.Activate(id)
	if err != nil {
		a.respondServiceError(c, err, "failed to activate promotion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "promotion activated", "item": config})
}

func (a *API) DeactivatePromotion(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	config, err := a.promotions.Deactivate(id)
	if err != nil {
		a.respondServiceError(c, err, "failed to deactivate promotion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "promotion deactivated", "item": config})
}

func (a *API) AddPromotionImage(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	upload, ok := a.readUpload(c)
	if !ok {
		return
	}

	image, err := a.promotions.AddImage(c.Request.Context(), id, upload, c.PostForm("imageAlt"), a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to store promotion image")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "image uploaded", "item": image})
}

func (a *API) UpdatePromotionImage(c *gin.Context) {
	imageID, ok := uintParam(c, "imageId")
	if !ok {
		return
	}
	var payload promotionImagePayload
	if !bindJSON(c, &payload) {
		return
	}

	image, err := a.promotions.UpdateImage(imageID, service.PromotionImageInput{
		ImageAlt:   payload.ImageAlt,
		ImageOrder: payload.ImageOrder,
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to update promotion image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "image updated", "item": image})
}

func (a *API) ReorderPromotionImages(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload reorderPayload
	if !bindJSON(c, &payload) {
		return
	}

	images, err := a.promotions.ReorderImages(id, payload.ImageIDs)
	if err != nil {
		a.respondServiceError(c, err, "failed to reorder promotion images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "images reordered", "items": images})
}

func (a *API) DeletePromotionImage(c *gin.Context) {
	imageID, ok := uintParam(c, "imageId")
	if !ok {
		return
	}

	if err := a.promotions.DeleteImage(c.Request.Context(), imageID); err != nil {
		a.respondServiceError(c, err, "failed to delete promotion image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "image deleted"})
}
