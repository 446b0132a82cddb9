package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
	SubmissionStatusSelected = "selected"
)

// Submission 定义用户针对某一期的投稿作品
type Submission struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"userId"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	IssueID     uint           `gorm:"index;not null" json:"issueId"`
	Issue       *Issue         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ImageURL    string         `gorm:"size:1024" json:"imageUrl"`
	StorageKey  string         `gorm:"size:512" json:"-"`
	ImageWidth  int            `json:"imageWidth"`
	ImageHeight int            `json:"imageHeight"`
	Description string         `gorm:"type:text" json:"description"`
	IsCover     bool           `gorm:"default:false" json:"isCover"`
	Status      string         `gorm:"size:20;not null;default:pending;index" json:"status"`
	VoteCount   int            `gorm:"default:0;not null" json:"voteCount"`
	SubmittedAt time.Time      `json:"submittedAt"`
	ReviewedAt  *time.Time     `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Votable 只有审核通过或入选的作品可以投票。
func (s Submission) Votable() bool {
	return s.Status == SubmissionStatusApproved || s.Status == SubmissionStatusSelected
}
