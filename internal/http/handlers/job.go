package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/http/response"
)

type JobRunner interface {
	Trigger(ctx context.Context, jobType string) (*catalog.JobRun, error)
	Recent(ctx context.Context, jobType string, limit int) ([]*catalog.JobRun, error)
}

type JobHandler struct {
	jobs JobRunner
}

func NewJobHandler(jobs JobRunner) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/recent?type=&limit=
func (h *JobHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.jobs.Recent(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if runs == nil {
		runs = []*catalog.JobRun{}
	}
	response.RespondOK(c, gin.H{"jobs": runs})
}

// POST /api/jobs/:type/run
func (h *JobHandler) Run(c *gin.Context) {
	run, err := h.jobs.Trigger(c.Request.Context(), c.Param("type"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": run})
}
