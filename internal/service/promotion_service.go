package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrPromotionNotFound       = errors.New("promotion config not found")
	ErrPromotionTitleRequired  = errors.New("promotion title is required")
	ErrPromotionPageURLInvalid = errors.New("promotion page url must contain only lowercase letters, digits and hyphens")
	ErrPromotionPageURLTaken   = errors.New("promotion page url is already used")
	ErrPromotionImageNotFound  = errors.New("promotion image not found")
	ErrPromotionOrderInvalid   = errors.New("promotion image order is invalid")
)

var pageURLPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// PromotionService 管理推广页配置及其图片，同一时间最多只有一个配置处于激活状态。
type PromotionService struct {
	db       *gorm.DB
	store    storage.Storage
	logger   logrus.FieldLogger
	maxBytes int64
}

// PromotionInput represents fields accepted when creating or updating a promotion config.
type PromotionInput struct {
	IsEnabled   bool
	NavTitle    string
	PageURL     string
	Title       string
	Description string
}

// PromotionImageInput 更新图片信息，nil 字段保持不变。
type PromotionImageInput struct {
	ImageAlt   *string
	ImageOrder *int
}

// PromotionView adds the rendered description to a config.
type PromotionView struct {
	db.PromotionConfig
	DescriptionHTML string `json:"descriptionHtml"`
}

// NewPromotionView renders the markdown description.
func NewPromotionView(config db.PromotionConfig) PromotionView {
	return PromotionView{
		PromotionConfig: config,
		DescriptionHTML: renderMarkdownOrEscape(config.Description),
	}
}

// NewPromotionService creates a PromotionService instance.
func NewPromotionService(gdb *gorm.DB, store storage.Storage) *PromotionService {
	return &PromotionService{
		db:       gdb,
		store:    store,
		logger:   logrus.StandardLogger(),
		maxBytes: defaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes sets the image size limit.
func (s *PromotionService) WithMaxUploadBytes(n int64) *PromotionService {
	if n > 0 {
		s.maxBytes = n
	}
	return s
}

// WithLogger overrides the default logger.
func (s *PromotionService) WithLogger(logger logrus.FieldLogger) *PromotionService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Create inserts an inactive promotion config.
func (s *PromotionService) Create(input PromotionInput) (*db.PromotionConfig, error) {
	pageURL, err := s.validateInput(input, 0)
	if err != nil {
		return nil, err
	}

	config := db.PromotionConfig{PageURL: pageURL}
	applyPromotionInput(&config, input)
	if err := s.db.Create(&config).Error; err != nil {
		return nil, fmt.Errorf("create promotion config: %w", err)
	}
	return s.Get(config.ID)
}

// Update modifies an existing config; activation is managed separately.
func (s *PromotionService) Update(id uint, input PromotionInput) (*db.PromotionConfig, error) {
	config, err := s.findConfig(id)
	if err != nil {
		return nil, err
	}
	pageURL, err := s.validateInput(input, id)
	if err != nil {
		return nil, err
	}

	config.PageURL = pageURL
	applyPromotionInput(config, input)
	if err := s.db.Omit("Images").Save(config).Error; err != nil {
		return nil, fmt.Errorf("update promotion config: %w", err)
	}
	return s.Get(id)
}

// Activate 在同一事务内先停用全部配置再激活目标配置。
func (s *PromotionService) Activate(id uint) (*db.PromotionConfig, error) {
	if _, err := s.findConfig(id); err != nil {
		return nil, err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.PromotionConfig{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&db.PromotionConfig{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	}); err != nil {
		return nil, fmt.Errorf("activate promotion config: %w", err)
	}

	s.logger.WithField("config_id", id).Info("promotion config activated")
	return s.Get(id)
}

// Deactivate clears the active flag of a config.
func (s *PromotionService) Deactivate(id uint) (*db.PromotionConfig, error) {
	config, err := s.findConfig(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(config).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivate promotion config: %w", err)
	}
	return s.Get(id)
}

// Delete removes a config, its images and their stored files.
func (s *PromotionService) Delete(ctx context.Context, id uint) error {
	config, err := s.Get(id)
	if err != nil {
		return err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", id).Delete(&db.PromotionImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.PromotionConfig{}, id).Error
	}); err != nil {
		return fmt.Errorf("delete promotion config: %w", err)
	}

	for _, image := range config.Images {
		s.removeObject(ctx, image.StorageKey)
	}
	return nil
}

// List returns all configs with images for the admin view.
func (s *PromotionService) List() ([]db.PromotionConfig, error) {
	var configs []db.PromotionConfig
	if err := s.db.Preload("Images", orderImages).
		Order("created_at desc").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list promotion configs: %w", err)
	}
	return configs, nil
}

// Get fetches a config with ordered images.
func (s *PromotionService) Get(id uint) (*db.PromotionConfig, error) {
	var config db.PromotionConfig
	if err := s.db.Preload("Images", orderImages).First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("get promotion config: %w", err)
	}
	return &config, nil
}

// Active 返回当前激活且启用的配置，没有时返回 nil。
func (s *PromotionService) Active() (*db.PromotionConfig, error) {
	var config db.PromotionConfig
	err := s.db.Preload("Images", orderImages).
		Where("is_active = ? AND is_enabled = ?", true, true).
		First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active promotion: %w", err)
	}
	return &config, nil
}

// ByPageURL returns an enabled config by its slug.
func (s *PromotionService) ByPageURL(slug string) (*db.PromotionConfig, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !pageURLPattern.MatchString(slug) {
		return nil, ErrPromotionNotFound
	}

	var config db.PromotionConfig
	if err := s.db.Preload("Images", orderImages).
		Where("page_url = ? AND is_enabled = ?", slug, true).
		First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("get promotion by page url: %w", err)
	}
	return &config, nil
}

// AddImage 上传图片并追加到末尾。
func (s *PromotionService) AddImage(ctx context.Context, configID uint, upload ImageUpload, alt string, now time.Time) (*db.PromotionImage, error) {
	if _, err := s.findConfig(configID); err != nil {
		return nil, err
	}
	info, err := inspectUpload(upload, s.maxBytes)
	if err != nil {
		return nil, err
	}

	order, err := s.nextImageOrder(configID)
	if err != nil {
		return nil, err
	}

	key := storage.NewKey(fmt.Sprintf("promotion/%d", configID), info.Ext, now)
	result, err := s.store.Upload(ctx, &storage.Object{Key: key, ContentType: info.ContentType, Data: upload.Data})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	image := db.PromotionImage{
		ConfigID:    configID,
		ImageURL:    result.URL,
		StorageKey:  result.Key,
		ImageOrder:  order,
		ImageAlt:    strings.TrimSpace(alt),
		ImageWidth:  info.Width,
		ImageHeight: info.Height,
	}
	if err := s.db.Create(&image).Error; err != nil {
		s.removeObject(ctx, result.Key)
		return nil, fmt.Errorf("create promotion image: %w", err)
	}
	return &image, nil
}

// UpdateImage changes the alt text and/or position of an image.
func (s *PromotionService) UpdateImage(id uint, input PromotionImageInput) (*db.PromotionImage, error) {
	image, err := s.findImage(id)
	if err != nil {
		return nil, err
	}
	if input.ImageAlt != nil {
		image.ImageAlt = strings.TrimSpace(*input.ImageAlt)
	}
	if input.ImageOrder != nil {
		image.ImageOrder = *input.ImageOrder
	}
	if err := s.db.Save(image).Error; err != nil {
		return nil, fmt.Errorf("update promotion image: %w", err)
	}
	return image, nil
}

// ReorderImages 按给定顺序重排图片，ids 必须恰好覆盖该配置下的全部图片。
func (s *PromotionService) ReorderImages(configID uint, ids []uint) ([]db.PromotionImage, error) {
	if _, err := s.findConfig(configID); err != nil {
		return nil, err
	}

	var existing []uint
	if err := s.db.Model(&db.PromotionImage{}).Where("config_id = ?", configID).Pluck("id", &existing).Error; err != nil {
		return nil, fmt.Errorf("list promotion images: %w", err)
	}
	if len(existing) != len(ids) {
		return nil, ErrPromotionOrderInvalid
	}
	owned := make(map[uint]bool, len(existing))
	for _, id := range existing {
		owned[id] = true
	}
	for _, id := range ids {
		if !owned[id] {
			return nil, ErrPromotionOrderInvalid
		}
		delete(owned, id)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		for index, id := range ids {
			if err := tx.Model(&db.PromotionImage{}).Where("id = ?", id).Update("image_order", index).Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reorder promotion images: %w", err)
	}

	var images []db.PromotionImage
	if err := orderImages(s.db.Where("config_id = ?", configID)).Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// DeleteImage removes an image and its stored file.
func (s *PromotionService) DeleteImage(ctx context.Context, id uint) error {
	image, err := s.findImage(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(image).Error; err != nil {
		return fmt.Errorf("delete promotion image: %w", err)
	}
	s.removeObject(ctx, image.StorageKey)
	return nil
}

func (s *PromotionService) validateInput(input PromotionInput, selfID uint) (string, error) {
	if strings.TrimSpace(input.Title) == "" {
		return "", ErrPromotionTitleRequired
	}
	pageURL := strings.ToLower(strings.Trim(strings.TrimSpace(input.PageURL), "/"))
	if !pageURLPattern.MatchString(pageURL) {
		return "", ErrPromotionPageURLInvalid
	}

	var count int64
	if err := s.db.Model(&db.PromotionConfig{}).
		Where("page_url = ? AND id <> ?", pageURL, selfID).
		Count(&count).Error; err != nil {
		return "", fmt.Errorf("check page url: %w", err)
	}
	if count > 0 {
		return "", ErrPromotionPageURLTaken
	}
	return pageURL, nil
}

func (s *PromotionService) findConfig(id uint) (*db.PromotionConfig, error) {
	var config db.PromotionConfig
	if err := s.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("get promotion config: %w", err)
	}
	return &config, nil
}

func (s *PromotionService) findImage(id uint) (*db.PromotionImage, error) {
	var image db.PromotionImage
	if err := s.db.First(&image, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromotionImageNotFound
		}
		return nil, fmt.Errorf("get promotion image: %w", err)
	}
	return &image, nil
}

func (s *PromotionService) nextImageOrder(configID uint) (int, error) {
	var maxOrder int
	if err := s.db.Model(&db.PromotionImage{}).
		Where("config_id = ?", configID).
		Select("COALESCE(MAX(image_order), -1)").
		Scan(&maxOrder).Error; err != nil {
		return 0, fmt.Errorf("resolve image order: %w", err)
	}
	return maxOrder + 1, nil
}

func (s *PromotionService) removeObject(ctx context.Context, key string) {
	if key == "" || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to delete stored image")
	}
}

func applyPromotionInput(config *db.PromotionConfig, input PromotionInput) {
	config.IsEnabled = input.IsEnabled
	config.NavTitle = strings.TrimSpace(input.NavTitle)
	config.Title = strings.TrimSpace(input.Title)
	config.Description = strings.TrimSpace(input.Description)
}

func orderImages(tx *gorm.DB) *gorm.DB {
	return tx.Order("image_order asc").Order("id asc")
}
