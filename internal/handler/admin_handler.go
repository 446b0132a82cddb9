package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/service"
)

type banPayload struct {
	Banned bool `json:"banned"`
}

// Dashboard 汇总后台首页需要的计数。
func (a *API) Dashboard(c *gin.Context) {
	var issueCount, userCount, pendingCount, selectedCount int64

	if err := a.db.Model(&db.Issue{}).Count(&issueCount).Error; err != nil {
		a.respondServiceError(c, err, "failed to load dashboard")
		return
	}
	if err := a.db.Model(&db.User{}).Count(&userCount).Error; err != nil {
		a.respondServiceError(c, err, "failed to load dashboard")
		return
	}
	if err := a.db.Model(&db.Submission{}).Where("status = ?", db.SubmissionStatusPending).Count(&pendingCount).Error; err != nil {
		a.respondServiceError(c, err, "failed to load dashboard")
		return
	}
	if err := a.db.Model(&db.Submission{}).Where("status = ?", db.SubmissionStatusSelected).Count(&selectedCount).Error; err != nil {
		a.respondServiceError(c, err, "failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"admin":               middleware.GetClaims(c).Email,
		"issueCount":          issueCount,
		"userCount":           userCount,
		"pendingSubmissions":  pendingCount,
		"selectedSubmissions": selectedCount,
	})
}

// ListUsers 支持按邮箱或昵称搜索，banned=true/false 过滤封禁状态。
func (a *API) ListUsers(c *gin.Context) {
	filter := service.UserFilter{
		Search:  c.Query("search"),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("perPage"), 20),
	}
	if raw := c.Query("banned"); raw != "" {
		if banned, err := strconv.ParseBool(raw); err == nil {
			filter.Banned = &banned
		}
	}

	result, err := a.users.List(filter)
	if err != nil {
		a.respondServiceError(c, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, paginated(result.Items, result.Total, result.Page, result.PerPage, result.TotalPages))
}

func (a *API) BanUser(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var payload banPayload
	if !bindJSON(c, &payload) {
		return
	}

	user, err := a.users.SetBanned(id, payload.Banned)
	if err != nil {
		a.respondServiceError(c, err, "failed to update user")
		return
	}

	a.logger.WithField("user_id", id).WithField("banned", payload.Banned).Info("user ban status changed")
	c.JSON(http.StatusOK, gin.H{"message": "user updated", "item": user})
}
