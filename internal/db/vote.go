package db

import "time"

// Vote 记录一次投票；UserID 与 VisitorID 二选一。
// (submission_id, user_id) 与 (submission_id, visitor_id) 均为唯一索引，NULL 不参与冲突判断。
type Vote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       *uint     `gorm:"index:idx_vote_submission_user,unique,priority:2" json:"userId,omitempty"`
	VisitorID    *string   `gorm:"size:64;index:idx_vote_submission_visitor,unique,priority:2" json:"visitorId,omitempty"`
	SubmissionID uint      `gorm:"not null;index:idx_vote_submission_user,unique,priority:1;index:idx_vote_submission_visitor,unique,priority:1" json:"submissionId"`
	IssueID      uint      `gorm:"not null;index" json:"issueId"`
	VotedAt      time.Time `json:"votedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName 指定自定义表名。
func (Vote) TableName() string {
	return "votes"
}
