package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/internal/queue"
	"github.com/danielolaszy/sprintsplit/internal/review"
)

func (s *Server) page(c *gin.Context) {
	ctrl := s.sessions.get(c)
	if err := ctrl.Load(c.Request.Context()); err != nil {
		logging.Error("failed to load sprints", "error", err)
	}
	c.HTML(http.StatusOK, "page.html", ctrl.View())
}

func (s *Server) search(c *gin.Context) {
	target, err := strconv.Atoi(c.PostForm("targetSprint"))
	if err != nil || target <= 0 {
		c.String(http.StatusBadRequest, "target sprint is required")
		return
	}
	next, err := strconv.Atoi(c.PostForm("nextSprint"))
	if err != nil || next <= 0 {
		c.String(http.StatusBadRequest, "next sprint is required")
		return
	}

	ctrl := s.sessions.get(c)
	if err := ctrl.Search(c.Request.Context(), target, next); err != nil {
		logging.Error("search failed", "sprint", target, "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) split(c *gin.Context) {
	s.sessions.get(c).RequestSplit()
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) confirm(c *gin.Context) {
	keys := c.PostFormArray("issueIds")

	ctrl := s.sessions.get(c)
	if err := ctrl.Confirm(c.Request.Context(), keys); err != nil {
		logging.Error("enqueue failed", "issues", keys, "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) close(c *gin.Context) {
	s.sessions.get(c).Close()
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) apiSprints(c *gin.Context) {
	sprints, err := s.service.LoadSprints(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"sprints": sprints}
	if next, ok := review.SuggestNextSprint(sprints); ok {
		resp["suggestedNextSprintId"] = next
	}
	c.JSON(http.StatusOK, resp)
}

type searchRequest struct {
	TargetSprint int `json:"targetSprint" binding:"required,gt=0"`
}

func (s *Server) apiSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := s.service.Search(c.Request.Context(), req.TargetSprint)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": len(rows), "issues": rows})
}

type splitRequest struct {
	IssueIDs []string `json:"issueIds" binding:"required,min=1,dive,required"`
}

func (s *Server) apiSplit(c *gin.Context) {
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := s.service.Confirm(c.Request.Context(), req.IssueIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"enqueued": n})
}

func (s *Server) apiJobs(c *gin.Context) {
	status := queue.Status(c.Query("status"))
	switch status {
	case "", queue.StatusPending, queue.StatusRunning, queue.StatusDone, queue.StatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(status)})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	ctx := c.Request.Context()
	stats, err := s.jobs.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	jobs, err := s.jobs.List(ctx, status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats, "jobs": jobs})
}
