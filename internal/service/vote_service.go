package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/munichweekly/internal/db"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrVoterRequired        = errors.New("voter identity is required")
	ErrSubmissionNotVotable = errors.New("submission cannot be voted on")
	ErrVotingClosed         = errors.New("voting is not open for this issue")
	ErrAlreadyVoted         = errors.New("already voted for this submission")
	ErrVoteNotFound         = errors.New("vote not found")
)

const (
	VoterKindUser    = "user"
	VoterKindVisitor = "visitor"
)

// Voter 标识投票人：登录用户优先，否则使用会话中的访客 ID。
type Voter struct {
	UserID    uint
	VisitorID string
}

// Kind returns "user" or "visitor".
func (v Voter) Kind() string {
	if v.UserID != 0 {
		return VoterKindUser
	}
	return VoterKindVisitor
}

func (v Voter) valid() bool {
	return v.UserID != 0 || strings.TrimSpace(v.VisitorID) != ""
}

func (v Voter) scope(tx *gorm.DB) *gorm.DB {
	if v.UserID != 0 {
		return tx.Where("user_id = ?", v.UserID)
	}
	return tx.Where("visitor_id = ?", v.VisitorID)
}

// VoteService 处理投票与取消投票，票数与投票记录在同一事务内更新。
type VoteService struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewVoteService creates a VoteService instance.
func NewVoteService(gdb *gorm.DB) *VoteService {
	return &VoteService{db: gdb, logger: logrus.StandardLogger()}
}

// WithLogger overrides the default logger.
func (s *VoteService) WithLogger(logger logrus.FieldLogger) *VoteService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Cast 为作品投一票。同一投票人对同一作品只能投一次，由存在性检查与唯一索引共同保证。
func (s *VoteService) Cast(voter Voter, submissionID uint, now time.Time) (*db.Vote, error) {
	if !voter.valid() {
		return nil, ErrVoterRequired
	}

	var vote db.Vote
	err := s.db.Transaction(func(tx *gorm.DB) error {
		submission, issue, err := loadVotingTarget(tx, submissionID)
		if err != nil {
			return err
		}
		if !submission.Votable() {
			return ErrSubmissionNotVotable
		}
		if !issue.VotingOpen(now) {
			return ErrVotingClosed
		}
		if voter.UserID != 0 {
			if _, err := ensureActiveUser(tx, voter.UserID); err != nil {
				return err
			}
		}

		var existing int64
		if err := voter.scope(tx.Model(&db.Vote{})).
			Where("submission_id = ?", submissionID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyVoted
		}

		vote = db.Vote{SubmissionID: submissionID, IssueID: issue.ID, VotedAt: now}
		if voter.UserID != 0 {
			userID := voter.UserID
			vote.UserID = &userID
		} else {
			visitorID := voter.VisitorID
			vote.VisitorID = &visitorID
		}

		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&vote)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return ErrAlreadyVoted
		}

		return tx.Model(&db.Submission{}).
			Where("id = ?", submissionID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"submission_id": submissionID, "voter": voter.Kind()}).Info("vote cast")
	return &vote, nil
}

// Cancel 在投票窗口内撤销投票，票数不会减到负数。
func (s *VoteService) Cancel(voter Voter, submissionID uint, now time.Time) error {
	if !voter.valid() {
		return ErrVoterRequired
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		_, issue, err := loadVotingTarget(tx, submissionID)
		if err != nil {
			return err
		}
		if !issue.VotingOpen(now) {
			return ErrVotingClosed
		}

		result := voter.scope(tx).Where("submission_id = ?", submissionID).Delete(&db.Vote{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVoteNotFound
		}

		return tx.Model(&db.Submission{}).
			Where("id = ?", submissionID).
			UpdateColumn("vote_count", gorm.Expr("CASE WHEN vote_count > 0 THEN vote_count - 1 ELSE 0 END")).Error
	})
}

// Check reports whether voter has voted for the submission.
func (s *VoteService) Check(voter Voter, submissionID uint) (bool, error) {
	if !voter.valid() {
		return false, nil
	}
	var count int64
	if err := voter.scope(s.db.Model(&db.Vote{})).
		Where("submission_id = ?", submissionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return count > 0, nil
}

// Status returns the ids of the submissions voter voted for in an issue.
func (s *VoteService) Status(voter Voter, issueID uint) ([]uint, error) {
	ids := []uint{}
	if !voter.valid() {
		return ids, nil
	}
	if err := voter.scope(s.db.Model(&db.Vote{})).
		Where("issue_id = ?", issueID).
		Order("submission_id asc").
		Pluck("submission_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("vote status: %w", err)
	}
	return ids, nil
}

func loadVotingTarget(tx *gorm.DB, submissionID uint) (*db.Submission, *db.Issue, error) {
	var submission db.Submission
	if err := tx.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSubmissionNotFound
		}
		return nil, nil, err
	}
	issue, err := findIssue(tx, submission.IssueID)
	if err != nil {
		return nil, nil, err
	}
	return &submission, issue, nil
}
