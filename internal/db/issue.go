package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	IssuePhaseUpcoming   = "upcoming"
	IssuePhaseSubmission = "submission"
	IssuePhaseReview     = "review"
	IssuePhaseVoting     = "voting"
	IssuePhaseClosed     = "closed"
)

// Issue 定义每期主题及其投稿、投票时间窗口
type Issue struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	SubmissionStart time.Time      `gorm:"index" json:"submissionStart"`
	SubmissionEnd   time.Time      `json:"submissionEnd"`
	VotingStart     time.Time      `json:"votingStart"`
	VotingEnd       time.Time      `json:"votingEnd"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// AcceptsSubmissions 判断 now 是否处于投稿窗口内（含边界）。
func (i Issue) AcceptsSubmissions(now time.Time) bool {
	return !now.Before(i.SubmissionStart) && !now.After(i.SubmissionEnd)
}

// VotingOpen 判断 now 是否处于投票窗口内（含边界）。
func (i Issue) VotingOpen(now time.Time) bool {
	return !now.Before(i.VotingStart) && !now.After(i.VotingEnd)
}

// VotingEnded 判断投票是否已经结束。
func (i Issue) VotingEnded(now time.Time) bool {
	return now.After(i.VotingEnd)
}

// Phase 返回 now 时刻所处的阶段。
func (i Issue) Phase(now time.Time) string {
	switch {
	case now.Before(i.SubmissionStart):
		return IssuePhaseUpcoming
	case i.AcceptsSubmissions(now):
		return IssuePhaseSubmission
	case i.VotingOpen(now):
		return IssuePhaseVoting
	case now.Before(i.VotingStart):
		return IssuePhaseReview
	default:
		return IssuePhaseClosed
	}
}
