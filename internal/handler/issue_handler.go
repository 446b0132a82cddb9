package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/service"
)

type issuePayload struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	SubmissionStart time.Time `json:"submissionStart"`
	SubmissionEnd   time.Time `json:"submissionEnd"`
	VotingStart     time.Time `json:"votingStart"`
	VotingEnd       time.Time `json:"votingEnd"`
}

func (p issuePayload) toInput() service.IssueInput {
	return service.IssueInput{
		Title:           p.Title,
		Description:     p.Description,
		SubmissionStart: p.SubmissionStart,
		SubmissionEnd:   p.SubmissionEnd,
		VotingStart:     p.VotingStart,
		VotingEnd:       p.VotingEnd,
	}
}

// ListIssues 分页返回期刊，附带当前阶段。
func (a *API) ListIssues(c *gin.Context) {
	result, err := a.issues.List(service.IssueFilter{
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("perPage"), 10),
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to list issues")
		return
	}

	views := service.NewIssueViews(result.Items, a.now())
	c.JSON(http.StatusOK, paginated(views, result.Total, result.Page, result.PerPage, result.TotalPages))
}

func (a *API) GetIssue(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	issue, err := a.issues.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load issue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": service.NewIssueView(*issue, a.now())})
}

func (a *API) CreateIssue(c *gin.Context) {
	var payload issuePayload
	if !bindJSON(c, &payload) {
		return
	}

	issue, err := a.issues.Create(payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to create issue")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "issue created", "item": service.NewIssueView(*issue, a.now())})
}

func (a *API) UpdateIssue(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload issuePayload
	if !bindJSON(c, &payload) {
		return
	}

	issue, err := a.issues.Update(id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update issue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "issue updated", "item": service.NewIssueView(*issue, a.now())})
}

func (a *API) DeleteIssue(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := a.issues.Delete(id); err != nil {
		a.respondServiceError(c, err, "failed to delete issue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "issue deleted"})
}
