package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/munichweekly/internal/db"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrGalleryConfigNotFound = errors.New("gallery config not found")
	ErrGalleryConfigExists   = errors.New("gallery config already exists for this issue")
	ErrGalleryOrderInvalid   = errors.New("gallery order is invalid")
	ErrGalleryNotPublished   = errors.New("gallery is not published")
)

// LayoutInvalidator drops cached layouts of an issue.
type LayoutInvalidator interface {
	Invalidate(ctx context.Context, issueID uint) error
}

// GalleryService 管理每期作品展的展示配置与人工排序。
type GalleryService struct {
	db        *gorm.DB
	analytics *AnalyticsService
	layouts   LayoutInvalidator
	logger    logrus.FieldLogger
}

// GalleryConfigInput represents fields accepted when creating or updating a gallery config.
type GalleryConfigInput struct {
	IssueID           uint
	IsPublished       bool
	DisplayOrder      *int
	CoverImageURL     string
	CustomTitle       string
	CustomDescription string
}

// IssueGallery 是一期作品展的完整视图：配置、期数与排好序的入选作品。
type IssueGallery struct {
	Config      *db.GalleryIssueConfig `json:"config"`
	Issue       IssueView              `json:"issue"`
	Submissions []db.Submission        `json:"submissions"`
	VotesHidden bool                   `json:"votesHidden"`
}

// NewGalleryService creates a GalleryService instance.
func NewGalleryService(gdb *gorm.DB) *GalleryService {
	return &GalleryService{
		db:        gdb,
		analytics: NewAnalyticsService(gdb),
		logger:    logrus.StandardLogger(),
	}
}

// WithLayoutInvalidator registers the layout cache to clear on changes.
func (s *GalleryService) WithLayoutInvalidator(inv LayoutInvalidator) *GalleryService {
	s.layouts = inv
	return s
}

// WithLogger overrides the default logger.
func (s *GalleryService) WithLogger(logger logrus.FieldLogger) *GalleryService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Analytics exposes the view statistics service.
func (s *GalleryService) Analytics() *AnalyticsService {
	return s.analytics
}

// CreateConfig 为某期创建作品展配置，每期只能有一个。
func (s *GalleryService) CreateConfig(ctx context.Context, input GalleryConfigInput) (*db.GalleryIssueConfig, error) {
	if _, err := findIssue(s.db, input.IssueID); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&db.GalleryIssueConfig{}).Where("issue_id = ?", input.IssueID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check gallery config: %w", err)
	}
	if count > 0 {
		return nil, ErrGalleryConfigExists
	}

	displayOrder, err := s.resolveDisplayOrder(input.DisplayOrder)
	if err != nil {
		return nil, err
	}

	config := db.GalleryIssueConfig{IssueID: input.IssueID, DisplayOrder: displayOrder}
	applyGalleryConfigInput(&config, input)
	if err := s.db.Create(&config).Error; err != nil {
		return nil, fmt.Errorf("create gallery config: %w", err)
	}

	s.invalidate(ctx, config.IssueID)
	return s.GetConfig(config.ID)
}

// UpdateConfig modifies presentation fields; the issue binding is fixed.
func (s *GalleryService) UpdateConfig(ctx context.Context, id uint, input GalleryConfigInput) (*db.GalleryIssueConfig, error) {
	config, err := s.findConfig(id)
	if err != nil {
		return nil, err
	}

	applyGalleryConfigInput(config, input)
	if input.DisplayOrder != nil {
		config.DisplayOrder = *input.DisplayOrder
	}
	if err := s.db.Omit("Issue").Save(config).Error; err != nil {
		return nil, fmt.Errorf("update gallery config: %w", err)
	}

	s.invalidate(ctx, config.IssueID)
	return s.GetConfig(id)
}

// DeleteConfig removes a config together with its order rows.
func (s *GalleryService) DeleteConfig(ctx context.Context, id uint) error {
	config, err := s.findConfig(id)
	if err != nil {
		return err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", id).Delete(&db.GallerySubmissionOrder{}).Error; err != nil {
			return err
		}
		return tx.Delete(config).Error
	}); err != nil {
		return fmt.Errorf("delete gallery config: %w", err)
	}

	s.invalidate(ctx, config.IssueID)
	return nil
}

// GetConfig fetches a config with its issue.
func (s *GalleryService) GetConfig(id uint) (*db.GalleryIssueConfig, error) {
	var config db.GalleryIssueConfig
	if err := s.db.Preload("Issue").First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGalleryConfigNotFound
		}
		return nil, fmt.Errorf("get gallery config: %w", err)
	}
	return &config, nil
}

// ListConfigs returns every config for the admin view.
func (s *GalleryService) ListConfigs() ([]db.GalleryIssueConfig, error) {
	var configs []db.GalleryIssueConfig
	if err := s.db.Preload("Issue").
		Order("display_order asc").
		Order("created_at desc").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list gallery configs: %w", err)
	}
	return configs, nil
}

// SetPublished toggles public visibility.
func (s *GalleryService) SetPublished(ctx context.Context, id uint, published bool) (*db.GalleryIssueConfig, error) {
	config, err := s.findConfig(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(config).Update("is_published", published).Error; err != nil {
		return nil, fmt.Errorf("publish gallery config: %w", err)
	}

	s.invalidate(ctx, config.IssueID)
	s.logger.WithFields(logrus.Fields{"config_id": id, "issue_id": config.IssueID, "published": published}).
		Info("gallery visibility changed")
	return s.GetConfig(id)
}

// SetSubmissionOrder 以给定顺序整体替换人工排序，所有作品必须是该期的入选作品且不可重复。
func (s *GalleryService) SetSubmissionOrder(ctx context.Context, configID uint, submissionIDs []uint) ([]db.GallerySubmissionOrder, error) {
	config, err := s.findConfig(configID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(submissionIDs))
	for _, id := range submissionIDs {
		if id == 0 {
			return nil, fmt.Errorf("%w: invalid submission id", ErrGalleryOrderInvalid)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate submission %d", ErrGalleryOrderInvalid, id)
		}
		seen[id] = struct{}{}
	}

	if len(submissionIDs) > 0 {
		var count int64
		if err := s.db.Model(&db.Submission{}).
			Where("id IN ? AND issue_id = ? AND status = ?", submissionIDs, config.IssueID, db.SubmissionStatusSelected).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check submissions: %w", err)
		}
		if int(count) != len(submissionIDs) {
			return nil, fmt.Errorf("%w: only selected submissions of issue %d can be ordered", ErrGalleryOrderInvalid, config.IssueID)
		}
	}

	orders := make([]db.GallerySubmissionOrder, 0, len(submissionIDs))
	for index, id := range submissionIDs {
		orders = append(orders, db.GallerySubmissionOrder{
			ConfigID:     configID,
			SubmissionID: id,
			DisplayOrder: index,
		})
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", configID).Delete(&db.GallerySubmissionOrder{}).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		return tx.Create(&orders).Error
	}); err != nil {
		return nil, fmt.Errorf("save gallery order: %w", err)
	}

	s.invalidate(ctx, config.IssueID)
	return orders, nil
}

// ListPublished 返回已发布的作品展，按 DisplayOrder 升序，其次按创建时间倒序。
func (s *GalleryService) ListPublished() ([]db.GalleryIssueConfig, error) {
	var configs []db.GalleryIssueConfig
	if err := s.db.Preload("Issue").
		Where("is_published = ?", true).
		Order("display_order asc").
		Order("created_at desc").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list published galleries: %w", err)
	}
	return configs, nil
}

// IssueGallery 返回某期作品展。includeUnpublished 为 true 时用于管理员预览，
// 此时允许配置缺失或未发布，且始终显示票数。
func (s *GalleryService) IssueGallery(issueID uint, includeUnpublished bool, now time.Time) (*IssueGallery, error) {
	issue, err := findIssue(s.db, issueID)
	if err != nil {
		return nil, err
	}

	var config *db.GalleryIssueConfig
	var found db.GalleryIssueConfig
	switch err := s.db.Where("issue_id = ?", issueID).First(&found).Error; {
	case err == nil:
		config = &found
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !includeUnpublished {
			return nil, ErrGalleryConfigNotFound
		}
	default:
		return nil, fmt.Errorf("get gallery config: %w", err)
	}
	if !includeUnpublished && !config.IsPublished {
		return nil, ErrGalleryNotPublished
	}

	submissions, err := s.orderedSelections(issueID, config)
	if err != nil {
		return nil, err
	}

	result := &IssueGallery{
		Config:      config,
		Issue:       NewIssueView(*issue, now),
		Submissions: submissions,
	}
	if !includeUnpublished && !issue.VotingEnded(now) {
		hideVoteCounts(result.Submissions)
		result.VotesHidden = true
	}
	return result, nil
}

// RecordView counts a page view of a published gallery.
func (s *GalleryService) RecordView(issueID uint, visitorID string, now time.Time) (*db.GalleryViewStatistic, error) {
	var config db.GalleryIssueConfig
	if err := s.db.Where("issue_id = ?", issueID).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGalleryConfigNotFound
		}
		return nil, err
	}
	if !config.IsPublished {
		return nil, ErrGalleryNotPublished
	}
	return s.analytics.RecordGalleryView(issueID, visitorID, now)
}

// orderedSelections 先按人工排序，未排序的作品按票数倒序、投稿时间正序排在后面。
func (s *GalleryService) orderedSelections(issueID uint, config *db.GalleryIssueConfig) ([]db.Submission, error) {
	var submissions []db.Submission
	if err := s.db.Preload("User", publicUserColumns).
		Where("issue_id = ? AND status = ?", issueID, db.SubmissionStatusSelected).
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("list selected submissions: %w", err)
	}

	positions := map[uint]int{}
	if config != nil {
		var orders []db.GallerySubmissionOrder
		if err := s.db.Where("config_id = ?", config.ID).Find(&orders).Error; err != nil {
			return nil, fmt.Errorf("list gallery order: %w", err)
		}
		for _, o := range orders {
			positions[o.SubmissionID] = o.DisplayOrder
		}
	}

	sort.SliceStable(submissions, func(i, j int) bool {
		a, b := submissions[i], submissions[j]
		pa, aOrdered := positions[a.ID]
		pb, bOrdered := positions[b.ID]
		switch {
		case aOrdered && bOrdered:
			return pa < pb
		case aOrdered != bOrdered:
			return aOrdered
		case a.VoteCount != b.VoteCount:
			return a.VoteCount > b.VoteCount
		case !a.SubmittedAt.Equal(b.SubmittedAt):
			return a.SubmittedAt.Before(b.SubmittedAt)
		default:
			return a.ID < b.ID
		}
	})
	return submissions, nil
}

func (s *GalleryService) findConfig(id uint) (*db.GalleryIssueConfig, error) {
	var config db.GalleryIssueConfig
	if err := s.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGalleryConfigNotFound
		}
		return nil, fmt.Errorf("get gallery config: %w", err)
	}
	return &config, nil
}

func (s *GalleryService) resolveDisplayOrder(order *int) (int, error) {
	if order != nil {
		return *order, nil
	}
	var maxOrder int
	if err := s.db.Model(&db.GalleryIssueConfig{}).
		Select("COALESCE(MAX(display_order), 0)").
		Scan(&maxOrder).Error; err != nil {
		return 0, err
	}
	return maxOrder + 1, nil
}

func (s *GalleryService) invalidate(ctx context.Context, issueID uint) {
	if s.layouts == nil {
		return
	}
	if err := s.layouts.Invalidate(ctx, issueID); err != nil {
		s.logger.WithError(err).WithField("issue_id", issueID).Warn("failed to invalidate layout cache")
	}
}

func applyGalleryConfigInput(config *db.GalleryIssueConfig, input GalleryConfigInput) {
	config.IsPublished = input.IsPublished
	config.CoverImageURL = strings.TrimSpace(input.CoverImageURL)
	config.CustomTitle = strings.TrimSpace(input.CustomTitle)
	config.CustomDescription = strings.TrimSpace(input.CustomDescription)
}
