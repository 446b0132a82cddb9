package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/layout"
	"github.com/munichweekly/internal/service"
)

type errorMapping struct {
	status int
	code   string
}

// serviceErrors 将领域错误映射为 HTTP 状态码与错误码。
var serviceErrors = []struct {
	err error
	errorMapping
}{
	{service.ErrUserNotFound, errorMapping{http.StatusNotFound, "user_not_found"}},
	{service.ErrEmailInvalid, errorMapping{http.StatusBadRequest, "email_invalid"}},
	{service.ErrEmailTaken, errorMapping{http.StatusConflict, "email_taken"}},
	{service.ErrPasswordTooShort, errorMapping{http.StatusBadRequest, "password_too_short"}},
	{service.ErrInvalidCredentials, errorMapping{http.StatusUnauthorized, "invalid_credentials"}},
	{service.ErrUserBanned, errorMapping{http.StatusForbidden, "user_banned"}},
	{service.ErrCannotBanAdmin, errorMapping{http.StatusBadRequest, "cannot_ban_admin"}},

	{service.ErrIssueNotFound, errorMapping{http.StatusNotFound, "issue_not_found"}},
	{service.ErrIssueTitleRequired, errorMapping{http.StatusBadRequest, "title_required"}},
	{service.ErrIssueScheduleInvalid, errorMapping{http.StatusBadRequest, "schedule_invalid"}},
	{service.ErrIssueHasSubmissions, errorMapping{http.StatusConflict, "issue_has_submissions"}},

	{service.ErrSubmissionNotFound, errorMapping{http.StatusNotFound, "submission_not_found"}},
	{service.ErrSubmissionWindowClosed, errorMapping{http.StatusBadRequest, "submission_window_closed"}},
	{service.ErrSubmissionLimitReached, errorMapping{http.StatusBadRequest, "submission_limit_reached"}},
	{service.ErrCoverAlreadyChosen, errorMapping{http.StatusBadRequest, "cover_already_chosen"}},
	{service.ErrSubmissionForbidden, errorMapping{http.StatusForbidden, "forbidden"}},
	{service.ErrSubmissionNotPending, errorMapping{http.StatusConflict, "submission_not_pending"}},
	{service.ErrSubmissionStatusInvalid, errorMapping{http.StatusBadRequest, "status_invalid"}},
	{service.ErrDescriptionTooLong, errorMapping{http.StatusBadRequest, "description_too_long"}},
	{service.ErrImageRequired, errorMapping{http.StatusBadRequest, "image_required"}},
	{service.ErrImageTooLarge, errorMapping{http.StatusRequestEntityTooLarge, "image_too_large"}},
	{service.ErrImageInvalid, errorMapping{http.StatusBadRequest, "image_invalid"}},

	{service.ErrVoterRequired, errorMapping{http.StatusBadRequest, "voter_required"}},
	{service.ErrSubmissionNotVotable, errorMapping{http.StatusBadRequest, "submission_not_votable"}},
	{service.ErrVotingClosed, errorMapping{http.StatusBadRequest, "voting_closed"}},
	{service.ErrAlreadyVoted, errorMapping{http.StatusConflict, "already_voted"}},
	{service.ErrVoteNotFound, errorMapping{http.StatusNotFound, "vote_not_found"}},

	{service.ErrGalleryConfigNotFound, errorMapping{http.StatusNotFound, "gallery_not_found"}},
	{service.ErrGalleryConfigExists, errorMapping{http.StatusConflict, "gallery_config_exists"}},
	{service.ErrGalleryOrderInvalid, errorMapping{http.StatusBadRequest, "gallery_order_invalid"}},
	{service.ErrGalleryNotPublished, errorMapping{http.StatusNotFound, "gallery_not_published"}},
	{layout.ErrInvalidColumns, errorMapping{http.StatusBadRequest, "columns_invalid"}},

	{service.ErrPromotionNotFound, errorMapping{http.StatusNotFound, "promotion_not_found"}},
	{service.ErrPromotionTitleRequired, errorMapping{http.StatusBadRequest, "title_required"}},
	{service.ErrPromotionPageURLInvalid, errorMapping{http.StatusBadRequest, "page_url_invalid"}},
	{service.ErrPromotionPageURLTaken, errorMapping{http.StatusConflict, "page_url_taken"}},
	{service.ErrPromotionImageNotFound, errorMapping{http.StatusNotFound, "promotion_image_not_found"}},
	{service.ErrPromotionOrderInvalid, errorMapping{http.StatusBadRequest, "promotion_order_invalid"}},
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

// respondServiceError 根据错误类型返回对应状态码，未知错误记录日志并返回 500。
func (a *API) respondServiceError(c *gin.Context, err error, fallback string) {
	for _, known := range serviceErrors {
		if errors.Is(err, known.err) {
			respondError(c, known.status, known.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	a.logger.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	respondError(c, http.StatusInternalServerError, "internal_error", fallback)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "request body is invalid")
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// uintParam parses a path id and writes a 400 response when it is invalid.
func uintParam(c *gin.Context, key string) (uint, bool) {
	id, err := parseUintParam(c, key)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_id", err.Error())
		return 0, false
	}
	return id, true
}

// uintQuery parses a required positive query value.
func uintQuery(c *gin.Context, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(key))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid_query", fmt.Sprintf("query parameter %s is required", key))
		return 0, false
	}
	return uint(id), true
}

// optionalUintQuery returns 0 when the value is absent or malformed.
func optionalUintQuery(c *gin.Context, key string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Query(key)), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

func parsePositiveInt(value string, fallback int) int {
	num, err := strconv.Atoi(value)
	if err != nil || num <= 0 {
		return fallback
	}
	return num
}

func paginated(items interface{}, total int64, page, perPage, totalPages int) gin.H {
	return gin.H{
		"items":      items,
		"total":      total,
		"page":       page,
		"perPage":    perPage,
		"totalPages": totalPages,
	}
}
