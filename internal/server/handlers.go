package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/herald/internal/models"
	"github.com/ifuryst/herald/internal/service"
	"github.com/ifuryst/herald/pkg/errors"
)

type cronRequest struct {
	JobIDs []string `json:"job_ids"`
}

type decisionRequest struct {
	DecidedBy string `json:"decided_by"`
}

type scheduleRequest struct {
	PublishAt *time.Time `json:"publish_at"`
}

type moveRequest struct {
	PublishAt time.Time `json:"publish_at" binding:"required"`
	Mode      string    `json:"mode"`
}

type recipeRequest struct {
	IsActive   *bool   `json:"is_active"`
	IsMain     bool    `json:"is_main"`
	DelayHours float64 `json:"delay_hours"`
}

func (s *Server) requireCronSecret(c *gin.Context) {
	secret := s.Config.Server.CronSecret
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleCronPublish(c *gin.Context) {
	var req cronRequest
	if c.Request.ContentLength != 0 {
		// An unparseable body falls back to a scheduled run.
		if err := c.ShouldBindJSON(&req); err != nil {
			s.Logger.Warn("Ignoring invalid cron body", zap.Error(err))
		}
	}

	ctx := c.Request.Context()
	if len(req.JobIDs) > 0 {
		summary, err := s.Engine.Force(ctx, req.JobIDs)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "processed": summary.Processed, "results": summary.Results})
		return
	}

	summary, err := s.Engine.RunSchedule(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if summary.Processed == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "processed": 0, "reason": "no-due-jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "processed": summary.Processed, "results": summary.Results})
}

func (s *Server) handleApprove(c *gin.Context) {
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.Engine.Approval.Approve(c.Request.Context(), c.Param("id"), req.DecidedBy); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "decision": models.DecisionApproved})
}

func (s *Server) handleReject(c *gin.Context) {
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.Engine.Approval.Reject(c.Request.Context(), c.Param("id"), req.DecidedBy); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "decision": models.DecisionRejected})
}

func (s *Server) handleSchedule(c *gin.Context) {
	ref, err := contentRef(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req scheduleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, errors.Validation("invalid request: %v", err))
			return
		}
	}

	jobs, err := s.Engine.Planner.Schedule(c.Request.Context(), ref, req.PublishAt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "jobs": jobs})
}

func (s *Server) handleListJobs(c *gin.Context) {
	ref, err := contentRef(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	jobs, err := s.Engine.History(c.Request.Context(), ref)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleMoveJob(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Validation("invalid request: %v", err))
		return
	}
	mode, err := service.ParseMoveMode(req.Mode)
	if err != nil {
		s.writeError(c, err)
		return
	}

	moved, err := s.Engine.Rescheduler.Move(c.Request.Context(), c.Param("id"), req.PublishAt, mode)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": moved})
}

func (s *Server) handleCancelJob(c *gin.Context) {
	if err := s.Engine.Jobs.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListRecipes(c *gin.Context) {
	recipes, err := s.Engine.Recipes.List(c.Request.Context(), s.Config.Project.Key)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (s *Server) handleSaveRecipe(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Validation("invalid request: %v", err))
		return
	}
	recipe := &models.PublishRecipe{
		ProjectKey: s.Config.Project.Key,
		Platform:   c.Param("platform"),
		IsActive:   req.IsActive == nil || *req.IsActive,
		IsMain:     req.IsMain,
		DelayHours: req.DelayHours,
	}
	if err := s.Engine.Recipes.Save(c.Request.Context(), recipe); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recipe": recipe})
}

func (s *Server) handleRecentErrors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	logs, err := s.Engine.Monitoring.GetRecentErrors(limit)
	if err != nil {
		s.writeError(c, errors.Storage(err, "load error logs"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": logs})
}

func (s *Server) handleResolveError(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		s.writeError(c, errors.Validation("invalid error log id"))
		return
	}
	if err := s.Engine.Monitoring.ResolveError(uint(id)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handlePlatformStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 {
		days = 7
	}
	stats, err := s.Engine.Monitoring.GetPlatformStats(days)
	if err != nil {
		s.writeError(c, errors.Storage(err, "load platform stats"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func contentRef(c *gin.Context) (models.ContentRef, error) {
	id := c.Param("id")
	switch models.ContentKind(c.Param("kind")) {
	case models.ContentNews:
		return models.NewsRef(id), nil
	case models.ContentReview:
		return models.ReviewRef(id), nil
	}
	return models.ContentRef{}, errors.Validation("unknown content kind %q", c.Param("kind"))
}

// writeError maps the error taxonomy to HTTP statuses. Only the
// operator-facing message leaves the process.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsStaleData(err):
		status = http.StatusConflict
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrGeneration):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.Logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": errors.UserMessage(err)})
}
