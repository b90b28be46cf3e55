package handler

import (
	"context"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/internal/token"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// TokenService 由 token.Service 实现
type TokenService interface {
	Issue(ctx context.Context, email, issuedBy string) (*models.ApplicationToken, error)
	BulkIssue(ctx context.Context, emails []string, issuedBy string) (*token.BulkResult, error)
	List(ctx context.Context, issuedBy string) ([]token.InviteView, error)
	Consume(ctx context.Context, value string) error
	Validate(ctx context.Context, value string) (*token.Validation, error)
}

// InviteHandler 招聘方发出申请邀请
type InviteHandler struct {
	tokens TokenService
}

func NewInviteHandler(tokens TokenService) *InviteHandler {
	return &InviteHandler{tokens: tokens}
}

type inviteRequest struct {
	Email    string `json:"email"`
	IssuedBy string `json:"issued_by"`
}

type bulkInviteRequest struct {
	Emails   []string `json:"emails"`
	IssuedBy string   `json:"issued_by"`
}

type consumeRequest struct {
	Token string `json:"token" validate:"required"`
}

// Issue POST /api/invites
func (h *InviteHandler) Issue(ctx context.Context, c *app.RequestContext) {
	var req inviteRequest
	if err := bindJSON(c, "invites.Issue", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	t, err := h.tokens.Issue(ctx, req.Email, req.IssuedBy)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, utils.H{"success": true, "data": t})
}

// BulkIssue POST /api/invites/bulk
func (h *InviteHandler) BulkIssue(ctx context.Context, c *app.RequestContext) {
	var req bulkInviteRequest
	if err := bindJSON(c, "invites.BulkIssue", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	res, err := h.tokens.BulkIssue(ctx, req.Emails, req.IssuedBy)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, res)
}

// List GET /api/invites?issued_by=
func (h *InviteHandler) List(ctx context.Context, c *app.RequestContext) {
	issuedBy := c.Query("issued_by")
	if issuedBy == "" {
		writeError(ctx, c, apperr.Validation("invites.List", "issued_by is required"))
		return
	}
	views, err := h.tokens.List(ctx, issuedBy)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, views)
}

// Consume POST /api/invites/consume
func (h *InviteHandler) Consume(ctx context.Context, c *app.RequestContext) {
	var req consumeRequest
	if err := bindJSON(c, "invites.Consume", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	if err := h.tokens.Consume(ctx, req.Token); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true})
}
