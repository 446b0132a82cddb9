package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/munichweekly/internal/db"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrIssueNotFound        = errors.New("issue not found")
	ErrIssueTitleRequired   = errors.New("issue title is required")
	ErrIssueScheduleInvalid = errors.New("issue schedule is invalid")
	ErrIssueHasSubmissions  = errors.New("issue still has submissions")
)

// IssueService 管理每期主题及其时间窗口。
type IssueService struct {
	db      *gorm.DB
	layouts LayoutInvalidator
	logger  logrus.FieldLogger
}

// IssueInput represents fields accepted when creating or updating an issue.
type IssueInput struct {
	Title           string
	Description     string
	SubmissionStart time.Time
	SubmissionEnd   time.Time
	VotingStart     time.Time
	VotingEnd       time.Time
}

// IssueFilter describes filters for listing issues.
type IssueFilter struct {
	Page    int
	PerPage int
}

// IssueListResult aggregates paginated issues.
type IssueListResult struct {
	Items      []db.Issue
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// IssueView 是对外输出的期数结构，附带渲染后的描述与当前阶段。
type IssueView struct {
	db.Issue
	DescriptionHTML string `json:"descriptionHtml"`
	Phase           string `json:"phase"`
}

// NewIssueView renders the description and computes the phase at now.
func NewIssueView(issue db.Issue, now time.Time) IssueView {
	return IssueView{
		Issue:           issue,
		DescriptionHTML: renderMarkdownOrEscape(issue.Description),
		Phase:           issue.Phase(now),
	}
}

// NewIssueViews maps NewIssueView over issues.
func NewIssueViews(issues []db.Issue, now time.Time) []IssueView {
	views := make([]IssueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, NewIssueView(issue, now))
	}
	return views
}

// NewIssueService creates an IssueService instance.
func NewIssueService(gdb *gorm.DB) *IssueService {
	return &IssueService{db: gdb, logger: logrus.StandardLogger()}
}

// WithLayoutInvalidator registers the layout cache to clear when an issue is deleted.
func (s *IssueService) WithLayoutInvalidator(inv LayoutInvalidator) *IssueService {
	s.layouts = inv
	return s
}

// WithLogger sets the logger used for cache invalidation failures.
func (s *IssueService) WithLogger(logger logrus.FieldLogger) *IssueService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Create inserts a new issue.
func (s *IssueService) Create(input IssueInput) (*db.Issue, error) {
	if err := validateIssueInput(input); err != nil {
		return nil, err
	}

	issue := db.Issue{}
	applyIssueInput(&issue, input)
	if err := s.db.Create(&issue).Error; err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return &issue, nil
}

// Update modifies an existing issue.
func (s *IssueService) Update(id uint, input IssueInput) (*db.Issue, error) {
	if err := validateIssueInput(input); err != nil {
		return nil, err
	}

	issue, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	applyIssueInput(issue, input)
	if err := s.db.Save(issue).Error; err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}
	return issue, nil
}

// Get fetches an issue by id.
func (s *IssueService) Get(id uint) (*db.Issue, error) {
	return findIssue(s.db, id)
}

// List 按投稿开始时间倒序分页返回期数。
func (s *IssueService) List(filter IssueFilter) (IssueListResult, error) {
	result := IssueListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
	}

	query := s.db.Model(&db.Issue{})
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("submission_start desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, err
	}
	return result, nil
}

// Delete 删除期数；仍有投稿时拒绝删除。
func (s *IssueService) Delete(id uint) error {
	issue, err := s.Get(id)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&db.Submission{}).Where("issue_id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	if count > 0 {
		return ErrIssueHasSubmissions
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var configIDs []uint
		if err := tx.Model(&db.GalleryIssueConfig{}).Where("issue_id = ?", id).Pluck("id", &configIDs).Error; err != nil {
			return err
		}
		if len(configIDs) > 0 {
			if err := tx.Where("config_id IN ?", configIDs).Delete(&db.GallerySubmissionOrder{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", configIDs).Delete(&db.GalleryIssueConfig{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(issue).Error
	})
	if err != nil {
		return err
	}

	if s.layouts != nil {
		if err := s.layouts.Invalidate(context.Background(), id); err != nil {
			s.logger.WithError(err).WithField("issue_id", id).Warn("failed to invalidate layout cache")
		}
	}
	return nil
}

func findIssue(tx *gorm.DB, id uint) (*db.Issue, error) {
	var issue db.Issue
	if err := tx.First(&issue, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIssueNotFound
		}
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &issue, nil
}

func validateIssueInput(input IssueInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrIssueTitleRequired
	}
	if input.SubmissionStart.IsZero() || input.SubmissionEnd.IsZero() ||
		input.VotingStart.IsZero() || input.VotingEnd.IsZero() {
		return fmt.Errorf("%w: all four dates are required", ErrIssueScheduleInvalid)
	}
	if !input.SubmissionStart.Before(input.SubmissionEnd) {
		return fmt.Errorf("%w: submission start must be before submission end", ErrIssueScheduleInvalid)
	}
	if !input.VotingStart.Before(input.VotingEnd) {
		return fmt.Errorf("%w: voting start must be before voting end", ErrIssueScheduleInvalid)
	}
	if input.VotingStart.Before(input.SubmissionStart) {
		return fmt.Errorf("%w: voting cannot start before submissions open", ErrIssueScheduleInvalid)
	}
	return nil
}

func applyIssueInput(issue *db.Issue, input IssueInput) {
	issue.Title = strings.TrimSpace(input.Title)
	issue.Description = strings.TrimSpace(input.Description)
	issue.SubmissionStart = input.SubmissionStart.UTC()
	issue.SubmissionEnd = input.SubmissionEnd.UTC()
	issue.VotingStart = input.VotingStart.UTC()
	issue.VotingEnd = input.VotingEnd.UTC()
}
