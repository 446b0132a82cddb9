package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/munichweekly/internal/cache"
	"github.com/munichweekly/internal/layout"
	"github.com/sirupsen/logrus"
)

const defaultLayoutTTL = 10 * time.Minute

// MasonryOrdering 是某期作品展在指定列数下的瀑布流布局。
type MasonryOrdering struct {
	IssueID uint `json:"issueId"`
	layout.Result
}

// LayoutService 计算并缓存作品展的瀑布流布局。
type LayoutService struct {
	gallery *GalleryService
	cache   cache.Cache
	ttl     time.Duration
	logger  logrus.FieldLogger
}

// NewLayoutService creates a LayoutService; it registers itself as the gallery's invalidator.
func NewLayoutService(gallery *GalleryService, c cache.Cache, ttl time.Duration) *LayoutService {
	if ttl <= 0 {
		ttl = defaultLayoutTTL
	}
	s := &LayoutService{gallery: gallery, cache: c, ttl: ttl, logger: logrus.StandardLogger()}
	gallery.WithLayoutInvalidator(s)
	return s
}

// WithLogger overrides the default logger.
func (s *LayoutService) WithLogger(logger logrus.FieldLogger) *LayoutService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// MasonryOrdering 返回已发布作品展的布局，优先读取缓存。
func (s *LayoutService) MasonryOrdering(ctx context.Context, issueID uint, columns int, now time.Time) (*MasonryOrdering, error) {
	if !layout.ValidColumns(columns) {
		return nil, layout.ErrInvalidColumns
	}

	key := masonryCacheKey(issueID, columns)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var ordering MasonryOrdering
		if err := json.Unmarshal(cached, &ordering); err == nil {
			return &ordering, nil
		}
		s.logger.WithField("key", key).Warn("discarding undecodable layout cache entry")
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WithError(err).WithField("key", key).Warn("layout cache read failed")
	}

	gallery, err := s.gallery.IssueGallery(issueID, false, now)
	if err != nil {
		return nil, err
	}

	items := make([]layout.Item, 0, len(gallery.Submissions))
	for _, sub := range gallery.Submissions {
		items = append(items, layout.Item{ID: sub.ID, Width: sub.ImageWidth, Height: sub.ImageHeight})
	}
	result, err := layout.Masonry(items, columns)
	if err != nil {
		return nil, err
	}

	ordering := &MasonryOrdering{IssueID: issueID, Result: result}
	if payload, err := json.Marshal(ordering); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("layout cache write failed")
		}
	}
	return ordering, nil
}

// Invalidate drops every cached layout of the issue.
func (s *LayoutService) Invalidate(ctx context.Context, issueID uint) error {
	return s.cache.DeletePrefix(ctx, fmt.Sprintf("layout:masonry:%d:", issueID))
}

func masonryCacheKey(issueID uint, columns int) string {
	return fmt.Sprintf("layout:masonry:%d:%d", issueID, columns)
}
