package service

import (
	"errors"
	"time"

	"github.com/munichweekly/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsService 负责作品展浏览量（PV/UV）的统计。
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb}
}

// RecordGalleryView 记录访客对某期作品展的浏览，并返回最新的统计数据。
// 同一访客重复访问只累加 PV。
func (s *AnalyticsService) RecordGalleryView(issueID uint, visitorID string, now time.Time) (*db.GalleryViewStatistic, error) {
	if visitorID == "" || issueID == 0 {
		return nil, errors.New("invalid visitor or issue id")
	}

	var stats db.GalleryViewStatistic

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		visit := db.GalleryVisit{
			IssueID:      issueID,
			VisitorID:    visitorID,
			LastViewedAt: now,
		}
		insert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "issue_id"}, {Name: "visitor_id"}},
			DoNothing: true,
		}).Create(&visit)
		if insert.Error != nil {
			return insert.Error
		}

		isNewVisitor := insert.RowsAffected == 1
		if !isNewVisitor {
			if err := tx.Model(&db.GalleryVisit{}).
				Where("issue_id = ? AND visitor_id = ?", issueID, visitorID).
				Update("last_viewed_at", now).Error; err != nil {
				return err
			}
		}

		statsResult := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("issue_id = ?", issueID).
			First(&stats)

		switch {
		case errors.Is(statsResult.Error, gorm.ErrRecordNotFound):
			stats = db.GalleryViewStatistic{IssueID: issueID}
			if err := tx.Create(&stats).Error; err != nil {
				return err
			}
		case statsResult.Error != nil:
			return statsResult.Error
		}

		stats.PageViews++
		if isNewVisitor {
			stats.UniqueVisitors++
		}
		stats.LastViewedAt = now

		return tx.Save(&stats).Error
	}); err != nil {
		return nil, err
	}

	return &stats, nil
}

// IssueStatsMap 返回指定期数的统计数据，没有记录的期数不会出现在结果中。
func (s *AnalyticsService) IssueStatsMap(issueIDs []uint) (map[uint]*db.GalleryViewStatistic, error) {
	result := make(map[uint]*db.GalleryViewStatistic, len(issueIDs))
	if len(issueIDs) == 0 {
		return result, nil
	}

	var stats []db.GalleryViewStatistic
	if err := s.db.Where("issue_id IN ?", issueIDs).Find(&stats).Error; err != nil {
		return nil, err
	}

	for i := range stats {
		stat := stats[i]
		result[stat.IssueID] = &stat
	}
	return result, nil
}

// GalleryOverview 汇总全部作品展的 UV/PV。
type GalleryOverview struct {
	TotalPageViews      uint64          `json:"totalPageViews"`
	TotalUniqueVisitors uint64          `json:"totalUniqueVisitors"`
	TopIssues           []TopIssueStats `json:"topIssues"`
}

// TopIssueStats describes the most viewed issue galleries.
type TopIssueStats struct {
	IssueID        uint   `json:"issueId"`
	Title          string `json:"title"`
	PageViews      uint64 `json:"pageViews"`
	UniqueVisitors uint64 `json:"uniqueVisitors"`
}

// Overview 汇总全站作品展浏览数据及最热门的期数。
func (s *AnalyticsService) Overview(limit int) (GalleryOverview, error) {
	if limit <= 0 {
		limit = 5
	}

	var overview GalleryOverview

	var totals struct {
		PageViews uint64
	}
	if err := s.db.Model(&db.GalleryViewStatistic{}).
		Select("COALESCE(SUM(page_views), 0) AS page_views").
		Scan(&totals).Error; err != nil {
		return overview, err
	}
	overview.TotalPageViews = totals.PageViews

	var uniqueVisitors int64
	if err := s.db.Model(&db.GalleryVisit{}).Distinct("visitor_id").Count(&uniqueVisitors).Error; err != nil {
		return overview, err
	}
	overview.TotalUniqueVisitors = uint64(uniqueVisitors)

	var top []TopIssueStats
	if err := s.db.Table("gallery_view_statistics gs").
		Select("gs.issue_id, i.title, gs.page_views, gs.unique_visitors").
		Joins("JOIN issues i ON i.id = gs.issue_id").
		Order("gs.page_views DESC").
		Limit(limit).
		Scan(&top).Error; err != nil {
		return overview, err
	}
	overview.TopIssues = top
	return overview, nil
}
