package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/metrics"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/service"
)

type submissionPayload struct {
	IssueID     uint   `json:"issueId"`
	Description string `json:"description"`
	IsCover     bool   `json:"isCover"`
}

func (p submissionPayload) toInput() service.SubmissionInput {
	return service.SubmissionInput{IssueID: p.IssueID, Description: p.Description, IsCover: p.IsCover}
}

type reviewPayload struct {
	Status string `json:"status"`
}

// ListSubmissions 返回某期公开可见的作品，投票结束前隐藏票数。
func (a *API) ListSubmissions(c *gin.Context) {
	issueID, ok := uintQuery(c, "issueId")
	if !ok {
		return
	}

	result, err := a.submissions.ListPublic(
		issueID,
		parsePositiveInt(c.Query("page"), 1),
		parsePositiveInt(c.Query("perPage"), 20),
		middleware.IsAdmin(c),
		a.now(),
	)
	if err != nil {
		a.respondServiceError(c, err, "failed to list submissions")
		return
	}

	body := paginated(result.Items, result.Total, result.Page, result.PerPage, result.TotalPages)
	body["votesHidden"] = result.VotesHidden
	c.JSON(http.StatusOK, body)
}

func (a *API) ListMySubmissions(c *gin.Context) {
	items, err := a.submissions.ListMine(middleware.GetUserID(c), optionalUintQuery(c, "issueId"))
	if err != nil {
		a.respondServiceError(c, err, "failed to list submissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *API) CreateSubmission(c *gin.Context) {
	var payload submissionPayload
	if !bindJSON(c, &payload) {
		return
	}

	submission, err := a.submissions.Create(middleware.GetUserID(c), payload.toInput(), a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to create submission")
		return
	}

	metrics.RecordSubmission("created")
	c.JSON(http.StatusCreated, gin.H{"message": "submission created", "item": submission})
}

// UploadSubmissionImage 接收 multipart 图片并写入存储。
func (a *API) UploadSubmissionImage(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	upload, ok := a.readUpload(c)
	if !ok {
		return
	}

	submission, err := a.submissions.AttachImage(c.Request.Context(), middleware.GetUserID(c), id, upload, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to store image")
		return
	}

	metrics.RecordSubmission("image_uploaded")
	c.JSON(http.StatusOK, gin.H{"message": "image uploaded", "item": submission})
}

func (a *API) DeleteSubmission(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := a.submissions.Delete(c.Request.Context(), middleware.GetUserID(c), middleware.IsAdmin(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete submission")
		return
	}

	metrics.RecordSubmission("deleted")
	c.JSON(http.StatusOK, gin.H{"message": "submission deleted"})
}

// AdminListSubmissions 审核列表，可按期刊、用户与状态筛选。
func (a *API) AdminListSubmissions(c *gin.Context) {
	result, err := a.submissions.ListForReview(service.SubmissionFilter{
		IssueID: optionalUintQuery(c, "issueId"),
		UserID:  optionalUintQuery(c, "userId"),
		Status:  c.Query("status"),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("perPage"), 20),
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to list submissions")
		return
	}
	c.JSON(http.StatusOK, paginated(result.Items, result.Total, result.Page, result.PerPage, result.TotalPages))
}

func (a *API) AdminGetSubmission(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	submission, err := a.submissions.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load submission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": submission})
}

func (a *API) ReviewSubmission(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload reviewPayload
	if !bindJSON(c, &payload) {
		return
	}

	submission, err := a.submissions.Review(c.Request.Context(), id, payload.Status, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to review submission")
		return
	}

	metrics.RecordSubmission(submission.Status)
	c.JSON(http.StatusOK, gin.H{"message": "submission reviewed", "item": submission})
}
