package db

import "time"

// GalleryIssueConfig 定义某一期在公开作品展中的展示配置
type GalleryIssueConfig struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	IssueID           uint      `gorm:"uniqueIndex;not null" json:"issueId"`
	Issue             *Issue    `gorm:"constraint:OnDelete:CASCADE" json:"issue,omitempty"`
	IsPublished       bool      `gorm:"default:false;index" json:"isPublished"`
	DisplayOrder      int       `gorm:"default:0" json:"displayOrder"`
	CoverImageURL     string    `gorm:"size:1024" json:"coverImageUrl"`
	CustomTitle       string    `gorm:"size:200" json:"customTitle"`
	CustomDescription string    `gorm:"type:text" json:"customDescription"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName 指定自定义表名。
func (GalleryIssueConfig) TableName() string {
	return "gallery_issue_configs"
}

// GallerySubmissionOrder 保存管理员手动指定的作品顺序，DisplayOrder 越小越靠前
type GallerySubmissionOrder struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ConfigID     uint      `gorm:"not null;index:idx_gallery_order_unique,unique" json:"configId"`
	SubmissionID uint      `gorm:"not null;index:idx_gallery_order_unique,unique" json:"submissionId"`
	DisplayOrder int       `gorm:"not null;default:0" json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 指定自定义表名。
func (GallerySubmissionOrder) TableName() string {
	return "gallery_submission_orders"
}

// GalleryViewStatistic 汇总每期作品展的浏览数据。
type GalleryViewStatistic struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	IssueID        uint      `gorm:"uniqueIndex" json:"issueId"`
	PageViews      uint64    `gorm:"default:0" json:"pageViews"`
	UniqueVisitors uint64    `gorm:"default:0" json:"uniqueVisitors"`
	LastViewedAt   time.Time `json:"lastViewedAt"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// TableName 指定自定义表名，避免自动复数化导致的歧义。
func (GalleryViewStatistic) TableName() string {
	return "gallery_view_statistics"
}

// GalleryVisit 记录访客层面的浏览历史，用于 UV/PV 去重。
type GalleryVisit struct {
	ID           uint   `gorm:"primaryKey"`
	IssueID      uint   `gorm:"uniqueIndex:idx_gallery_visit_unique"`
	VisitorID    string `gorm:"size:64;uniqueIndex:idx_gallery_visit_unique"`
	LastViewedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定自定义表名。
func (GalleryVisit) TableName() string {
	return "gallery_visits"
}
