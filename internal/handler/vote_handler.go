package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/metrics"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/service"
)

// currentVoter 登录用户按用户 ID 投票，匿名访客使用会话 cookie 中的访客 ID。
func currentVoter(c *gin.Context) service.Voter {
	if userID := middleware.GetUserID(c); userID != 0 {
		return service.Voter{UserID: userID}
	}
	return service.Voter{VisitorID: middleware.VisitorID(c)}
}

func (a *API) CastVote(c *gin.Context) {
	submissionID, ok := uintQuery(c, "submissionId")
	if !ok {
		return
	}

	voter := currentVoter(c)
	vote, err := a.votes.Cast(voter, submissionID, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to cast vote")
		return
	}

	metrics.RecordVote("cast", voter.Kind())
	c.JSON(http.StatusCreated, gin.H{"message": "vote recorded", "item": vote})
}

func (a *API) CancelVote(c *gin.Context) {
	submissionID, ok := uintQuery(c, "submissionId")
	if !ok {
		return
	}

	voter := currentVoter(c)
	if err := a.votes.Cancel(voter, submissionID, a.now()); err != nil {
		a.respondServiceError(c, err, "failed to cancel vote")
		return
	}

	metrics.RecordVote("cancel", voter.Kind())
	c.JSON(http.StatusOK, gin.H{"message": "vote cancelled"})
}

func (a *API) CheckVote(c *gin.Context) {
	submissionID, ok := uintQuery(c, "submissionId")
	if !ok {
		return
	}

	voted, err := a.votes.Check(currentVoter(c), submissionID)
	if err != nil {
		a.respondServiceError(c, err, "failed to check vote")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissionId": submissionID, "voted": voted})
}

// VoteStatus 返回当前投票人在某期已投的作品 ID。
func (a *API) VoteStatus(c *gin.Context) {
	issueID, ok := uintQuery(c, "issueId")
	if !ok {
		return
	}

	ids, err := a.votes.Status(currentVoter(c), issueID)
	if err != nil {
		a.respondServiceError(c, err, "failed to load vote status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"issueId": issueID, "submissionIds": ids})
}
