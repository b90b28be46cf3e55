package handler

import (
	"context"
	"io"
	"mime/multipart"
	"strings"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/intake"
	"ai-hiring-go/internal/jobs"
	"ai-hiring-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HeaderApplicationToken 申请令牌头，优先于表单里的 token 字段
const HeaderApplicationToken = "X-Application-Token"

// IntakeService 由 intake.Service 实现
type IntakeService interface {
	Submit(ctx context.Context, sub intake.Submission) (*intake.Result, error)
}

// OpenJobs 由 jobs.Service 实现
type OpenJobs interface {
	ListOpen(ctx context.Context) ([]jobs.PublicJob, error)
}

// ApplyHandler 候选人申请页
type ApplyHandler struct {
	tokens TokenService
	intake IntakeService
	jobs   OpenJobs
}

func NewApplyHandler(tokens TokenService, in IntakeService, openJobs OpenJobs) *ApplyHandler {
	return &ApplyHandler{tokens: tokens, intake: in, jobs: openJobs}
}

// Validate GET /api/apply/validate?token=。任何失败都只回答无效
func (h *ApplyHandler) Validate(ctx context.Context, c *app.RequestContext) {
	v, err := h.tokens.Validate(ctx, c.Query("token"))
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("校验申请令牌失败")
		c.JSON(consts.StatusOK, utils.H{"valid": false, "error": "Token is invalid"})
		return
	}
	if !v.Valid {
		c.JSON(consts.StatusOK, utils.H{"valid": false, "error": v.Reason})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"valid": true, "email": v.Email})
}

// Jobs GET /api/apply/jobs
func (h *ApplyHandler) Jobs(ctx context.Context, c *app.RequestContext) {
	list, err := h.jobs.ListOpen(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, list)
}

// Submit POST /api/apply/submit (multipart)
func (h *ApplyHandler) Submit(ctx context.Context, c *app.RequestContext) {
	const op = "apply.Submit"
	fh, err := c.FormFile("resume")
	if err != nil {
		writeError(ctx, c, apperr.Validation(op, intake.MsgMissingFields))
		return
	}
	data, err := readUpload(fh, constants.MaxResumeBytes)
	if err != nil {
		writeError(ctx, c, apperr.Dependency(op, "Failed to read resume", err))
		return
	}

	tok := strings.TrimSpace(string(c.GetHeader(HeaderApplicationToken)))
	if tok == "" {
		tok = c.PostForm("token")
	}
	res, err := h.intake.Submit(ctx, intake.Submission{
		Token:       tok,
		Name:        c.PostForm("name"),
		Email:       c.PostForm("email"),
		JobID:       c.PostForm("job_id"),
		Phone:       c.PostForm("phone"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Resume:      data,
	})
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, utils.H{
		"success":      true,
		"message":      intake.MsgSubmittedResponse,
		"candidate_id": res.CandidateID,
	})
}

// readUpload 多读一个字节，超限交给服务层按大小校验
func readUpload(fh *multipart.FileHeader, limit int) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(limit)+1))
}
