package handler

import (
	"context"
	"strconv"

	"ai-hiring-go/internal/candidates"
	"ai-hiring-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const defaultCandidatePageSize = 100

// CandidateService 由 candidates.Service 实现
type CandidateService interface {
	List(ctx context.Context, f storage.CandidateFilter) ([]candidates.Summary, error)
	Get(ctx context.Context, candidateID string) (*candidates.Detail, error)
	UpdateStatus(ctx context.Context, candidateID, status, message string) (*candidates.StatusResult, error)
	Requeue(ctx context.Context, candidateID string) error
}

// CandidateHandler 招聘方查看和处理候选人
type CandidateHandler struct {
	candidates CandidateService
}

func NewCandidateHandler(svc CandidateService) *CandidateHandler {
	return &CandidateHandler{candidates: svc}
}

type statusRequest struct {
	Status  string `json:"status" validate:"required"`
	Message string `json:"message"`
}

// List GET /api/candidates?job_id=&status=&limit=&offset=
func (h *CandidateHandler) List(ctx context.Context, c *app.RequestContext) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultCandidatePageSize
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	list, err := h.candidates.List(ctx, storage.CandidateFilter{
		JobID:  c.Query("job_id"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, list)
}

// Get GET /api/candidates/:id
func (h *CandidateHandler) Get(ctx context.Context, c *app.RequestContext) {
	d, err := h.candidates.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, d)
}

// UpdateStatus PUT /api/candidates/:id/status
func (h *CandidateHandler) UpdateStatus(ctx context.Context, c *app.RequestContext) {
	var req statusRequest
	if err := bindJSON(c, "candidates.UpdateStatus", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	res, err := h.candidates.UpdateStatus(ctx, c.Param("id"), req.Status, req.Message)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// Requeue POST /api/candidates/:id/evaluation/requeue
func (h *CandidateHandler) Requeue(ctx context.Context, c *app.RequestContext) {
	if err := h.candidates.Requeue(ctx, c.Param("id")); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusAccepted, utils.H{"success": true, "message": "Evaluation requeued"})
}
