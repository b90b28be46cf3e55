package handler

import (
	"context"

	"ai-hiring-go/internal/jobs"
	"ai-hiring-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// JobService 由 jobs.Service 实现
type JobService interface {
	Create(ctx context.Context, in jobs.Input) (*models.Job, error)
	Get(ctx context.Context, jobID string) (*models.Job, error)
	List(ctx context.Context) ([]models.Job, error)
	Update(ctx context.Context, jobID string, in jobs.Input) (*models.Job, error)
	Delete(ctx context.Context, jobID string) error
}

// JobHandler 岗位目录
type JobHandler struct {
	jobs JobService
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{jobs: svc}
}

// List GET /api/jobs
func (h *JobHandler) List(ctx context.Context, c *app.RequestContext) {
	list, err := h.jobs.List(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, list)
}

// Get GET /api/jobs/:id
func (h *JobHandler) Get(ctx context.Context, c *app.RequestContext) {
	job, err := h.jobs.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, job)
}

// Create POST /api/jobs
func (h *JobHandler) Create(ctx context.Context, c *app.RequestContext) {
	var in jobs.Input
	if err := bindJSON(c, "jobs.Create", &in); err != nil {
		writeError(ctx, c, err)
		return
	}
	job, err := h.jobs.Create(ctx, in)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, job)
}

// Update PUT /api/jobs/:id
func (h *JobHandler) Update(ctx context.Context, c *app.RequestContext) {
	var in jobs.Input
	if err := bindJSON(c, "jobs.Update", &in); err != nil {
		writeError(ctx, c, err)
		return
	}
	job, err := h.jobs.Update(ctx, c.Param("id"), in)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, job)
}

// Delete DELETE /api/jobs/:id
func (h *JobHandler) Delete(ctx context.Context, c *app.RequestContext) {
	if err := h.jobs.Delete(ctx, c.Param("id")); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}
