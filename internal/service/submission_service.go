package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultMaxSubmissionsPerIssue = 4
	defaultMaxUploadBytes         = 20 << 20
	maxDescriptionLength          = 2000
)

var (
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrSubmissionWindowClosed  = errors.New("submission window is closed")
	ErrSubmissionLimitReached  = errors.New("submission limit reached for this issue")
	ErrCoverAlreadyChosen      = errors.New("a cover submission was already chosen for this issue")
	ErrSubmissionForbidden     = errors.New("submission belongs to another user")
	ErrSubmissionNotPending    = errors.New("submission is no longer pending")
	ErrSubmissionStatusInvalid = errors.New("submission status is invalid")
	ErrDescriptionTooLong      = errors.New("description is too long")
	ErrImageRequired           = errors.New("image file is required")
	ErrImageTooLarge           = errors.New("image file is too large")
	ErrImageInvalid            = errors.New("file is not a supported image")
)

// SubmissionService 负责投稿的创建、图片上传、审核与删除。
type SubmissionService struct {
	db          *gorm.DB
	store       storage.Storage
	layouts     LayoutInvalidator
	logger      logrus.FieldLogger
	maxPerIssue int
	maxBytes    int64
}

// SubmissionInput represents fields accepted when creating a submission.
type SubmissionInput struct {
	IssueID     uint
	Description string
	IsCover     bool
}

// ImageUpload is a raw uploaded file.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// SubmissionFilter describes the admin review listing.
type SubmissionFilter struct {
	IssueID uint
	UserID  uint
	Status  string
	Page    int
	PerPage int
}

// SubmissionListResult aggregates paginated submissions.
type SubmissionListResult struct {
	Items       []db.Submission
	Total       int64
	TotalPages  int
	Page        int
	PerPage     int
	VotesHidden bool
}

// NewSubmissionService creates a SubmissionService with default limits.
func NewSubmissionService(gdb *gorm.DB, store storage.Storage) *SubmissionService {
	return &SubmissionService{
		db:          gdb,
		store:       store,
		logger:      logrus.StandardLogger(),
		maxPerIssue: defaultMaxSubmissionsPerIssue,
		maxBytes:    defaultMaxUploadBytes,
	}
}

// WithLimits adjusts the per-issue submission cap and the upload size limit.
func (s *SubmissionService) WithLimits(maxPerIssue int, maxBytes int64) *SubmissionService {
	if maxPerIssue > 0 {
		s.maxPerIssue = maxPerIssue
	}
	if maxBytes > 0 {
		s.maxBytes = maxBytes
	}
	return s
}

// WithLayoutInvalidator registers the layout cache to clear on review changes.
func (s *SubmissionService) WithLayoutInvalidator(inv LayoutInvalidator) *SubmissionService {
	s.layouts = inv
	return s
}

// WithLogger overrides the default logger.
func (s *SubmissionService) WithLogger(logger logrus.FieldLogger) *SubmissionService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Create 在投稿窗口内为用户创建一条待审核投稿。
func (s *SubmissionService) Create(userID uint, input SubmissionInput, now time.Time) (*db.Submission, error) {
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}

	var submission db.Submission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := ensureActiveUser(tx, userID); err != nil {
			return err
		}
		issue, err := findIssue(tx, input.IssueID)
		if err != nil {
			return err
		}
		if !issue.AcceptsSubmissions(now) {
			return ErrSubmissionWindowClosed
		}

		var count int64
		if err := tx.Model(&db.Submission{}).
			Where("user_id = ? AND issue_id = ?", userID, issue.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(s.maxPerIssue) {
			return ErrSubmissionLimitReached
		}

		if input.IsCover {
			var covers int64
			if err := tx.Model(&db.Submission{}).
				Where("user_id = ? AND issue_id = ? AND is_cover = ?", userID, issue.ID, true).
				Count(&covers).Error; err != nil {
				return err
			}
			if covers > 0 {
				return ErrCoverAlreadyChosen
			}
		}

		submission = db.Submission{
			UserID:      userID,
			IssueID:     issue.ID,
			Description: description,
			IsCover:     input.IsCover,
			Status:      db.SubmissionStatusPending,
			VoteCount:   0,
			SubmittedAt: now,
		}
		return tx.Create(&submission).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"submission_id": submission.ID, "issue_id": submission.IssueID, "user_id": userID}).
		Info("submission created")
	return &submission, nil
}

// AttachImage 校验并上传图片，记录访问地址与像素尺寸；仅作者可在待审核状态下操作。
func (s *SubmissionService) AttachImage(ctx context.Context, userID, submissionID uint, upload ImageUpload, now time.Time) (*db.Submission, error) {
	submission, err := s.Get(submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, ErrSubmissionForbidden
	}
	if submission.Status != db.SubmissionStatusPending {
		return nil, ErrSubmissionNotPending
	}

	info, err := inspectUpload(upload, s.maxBytes)
	if err != nil {
		return nil, err
	}

	key := storage.NewKey(fmt.Sprintf("submissions/%d", submission.IssueID), info.Ext, now)
	result, err := s.store.Upload(ctx, &storage.Object{Key: key, ContentType: info.ContentType, Data: upload.Data})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	previousKey := submission.StorageKey
	if err := s.db.Model(submission).Updates(map[string]interface{}{
		"image_url":    result.URL,
		"storage_key":  result.Key,
		"image_width":  info.Width,
		"image_height": info.Height,
	}).Error; err != nil {
		s.removeObject(ctx, result.Key)
		return nil, fmt.Errorf("save image: %w", err)
	}
	if previousKey != "" && previousKey != result.Key {
		s.removeObject(ctx, previousKey)
	}

	submission.ImageURL = result.URL
	submission.StorageKey = result.Key
	submission.ImageWidth = info.Width
	submission.ImageHeight = info.Height
	return submission, nil
}

// Get fetches a submission by id.
func (s *SubmissionService) Get(id uint) (*db.Submission, error) {
	var submission db.Submission
	if err := s.db.First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &submission, nil
}

// ListMine returns the user's own submissions; issueID 0 means all issues.
func (s *SubmissionService) ListMine(userID, issueID uint) ([]db.Submission, error) {
	query := s.db.Where("user_id = ?", userID)
	if issueID != 0 {
		query = query.Where("issue_id = ?", issueID)
	}
	var items []db.Submission
	if err := query.Order("submitted_at desc").Order("id desc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list my submissions: %w", err)
	}
	return items, nil
}

// ListPublic 返回某期已通过或入选的投稿；投票结束前对非管理员隐藏票数。
func (s *SubmissionService) ListPublic(issueID uint, page, perPage int, viewerIsAdmin bool, now time.Time) (SubmissionListResult, error) {
	result := SubmissionListResult{
		Page:    normalizePage(page),
		PerPage: normalizePerPage(perPage, 24),
	}

	issue, err := findIssue(s.db, issueID)
	if err != nil {
		return result, err
	}

	query := s.db.Model(&db.Submission{}).
		Where("issue_id = ? AND status IN ?", issueID, []string{db.SubmissionStatusApproved, db.SubmissionStatusSelected})
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Preload("User", publicUserColumns).
		Order("submitted_at asc").Order("id asc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, err
	}

	if !viewerIsAdmin && !issue.VotingEnded(now) {
		hideVoteCounts(result.Items)
		result.VotesHidden = true
	}
	return result, nil
}

// ListForReview returns submissions in any status for admins.
func (s *SubmissionService) ListForReview(filter SubmissionFilter) (SubmissionListResult, error) {
	result := SubmissionListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 50),
	}

	query := s.db.Model(&db.Submission{})
	if filter.IssueID != 0 {
		query = query.Where("issue_id = ?", filter.IssueID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		if !validSubmissionStatus(status) {
			return result, ErrSubmissionStatusInvalid
		}
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Preload("User").
		Order("submitted_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, err
	}
	return result, nil
}

// Review 设置审核状态并记录审核时间，同时清除该期的布局缓存。
func (s *SubmissionService) Review(ctx context.Context, submissionID uint, status string, now time.Time) (*db.Submission, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validSubmissionStatus(status) {
		return nil, ErrSubmissionStatusInvalid
	}

	submission, err := s.Get(submissionID)
	if err != nil {
		return nil, err
	}

	reviewedAt := now
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(submission).Updates(map[string]interface{}{
			"status":      status,
			"reviewed_at": &reviewedAt,
		}).Error; err != nil {
			return err
		}
		if status != db.SubmissionStatusSelected {
			// 取消入选时移除人工排序
			return tx.Where("submission_id = ?", submissionID).Delete(&db.GallerySubmissionOrder{}).Error
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("review submission: %w", err)
	}

	submission.Status = status
	submission.ReviewedAt = &reviewedAt
	s.invalidate(ctx, submission.IssueID)

	s.logger.WithFields(logrus.Fields{"submission_id": submissionID, "status": status}).Info("submission reviewed")
	return submission, nil
}

// Delete 删除投稿及其投票与排序记录。作者仅能删除待审核的投稿，管理员不受限制。
func (s *SubmissionService) Delete(ctx context.Context, userID uint, isAdmin bool, submissionID uint) error {
	submission, err := s.Get(submissionID)
	if err != nil {
		return err
	}
	if !isAdmin {
		if submission.UserID != userID {
			return ErrSubmissionForbidden
		}
		if submission.Status != db.SubmissionStatusPending {
			return ErrSubmissionNotPending
		}
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", submissionID).Delete(&db.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", submissionID).Delete(&db.GallerySubmissionOrder{}).Error; err != nil {
			return err
		}
		return tx.Delete(submission).Error
	}); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}

	s.removeObject(ctx, submission.StorageKey)
	s.invalidate(ctx, submission.IssueID)
	return nil
}

func (s *SubmissionService) removeObject(ctx context.Context, key string) {
	if key == "" || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to delete stored image")
	}
}

func (s *SubmissionService) invalidate(ctx context.Context, issueID uint) {
	if s.layouts == nil {
		return
	}
	if err := s.layouts.Invalidate(ctx, issueID); err != nil {
		s.logger.WithError(err).WithField("issue_id", issueID).Warn("failed to invalidate layout cache")
	}
}

// inspectUpload 校验上传大小并解析图片格式与尺寸。
func inspectUpload(upload ImageUpload, maxBytes int64) (storage.ImageInfo, error) {
	if len(upload.Data) == 0 {
		return storage.ImageInfo{}, ErrImageRequired
	}
	if maxBytes > 0 && int64(len(upload.Data)) > maxBytes {
		return storage.ImageInfo{}, ErrImageTooLarge
	}
	info, err := storage.ProbeImage(upload.Data)
	if err != nil {
		return storage.ImageInfo{}, ErrImageInvalid
	}
	return info, nil
}

func validSubmissionStatus(status string) bool {
	switch status {
	case db.SubmissionStatusPending, db.SubmissionStatusApproved,
		db.SubmissionStatusRejected, db.SubmissionStatusSelected:
		return true
	}
	return false
}

func hideVoteCounts(items []db.Submission) {
	for i := range items {
		items[i].VoteCount = 0
	}
}

func publicUserColumns(tx *gorm.DB) *gorm.DB {
	return tx.Select("id", "nickname", "avatar_url")
}
