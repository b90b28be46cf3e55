// Package token 一次性申请令牌的签发、校验与消费
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/notify"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"

	"golang.org/x/sync/errgroup"
)

// DefaultTTL 令牌有效期
const DefaultTTL = 48 * time.Hour

// tokenBytes 令牌熵，编码后 43 个字符
const tokenBytes = 32

const bulkConcurrency = 4

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Store 令牌持久化，由 storage.MySQL 实现
type Store interface {
	CreateApplicationToken(ctx context.Context, t *models.ApplicationToken) error
	GetApplicationToken(ctx context.Context, token string) (*models.ApplicationToken, error)
	ExpireApplicationToken(ctx context.Context, token string) (bool, error)
	ConsumeApplicationToken(ctx context.Context, token string, usedAt time.Time) error
	ListApplicationTokens(ctx context.Context, issuedBy string) ([]models.ApplicationToken, error)
}

// Inviter 发送邀请邮件
type Inviter interface {
	SendInvitation(ctx context.Context, email, token string) error
}

// State 校验结果分类，调用方据此选择对外文案
type State int

const (
	StateValid State = iota
	StateMissing
	StateUnknown
	StateUsed
	StateExpired
)

// Validation 令牌校验结果
type Validation struct {
	Valid  bool
	Email  string
	State  State
	Reason string
}

// BulkResult 批量邀请结果
type BulkResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// InviteView 邀请列表的一行，状态按当前时间推导
type InviteView struct {
	ID         uint64     `json:"id"`
	Email      string     `json:"email"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at"`
	HasApplied bool       `json:"has_applied"`
}

// Service 申请令牌服务
type Service struct {
	store    Store
	inviter  Inviter
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// Option 服务选项
type Option func(*Service)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithGenerator 替换令牌生成器
func WithGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.newToken = gen
	}
}

// NewService ttl<=0 时使用 48 小时
func NewService(store Store, inviter Inviter, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		store:    store,
		inviter:  inviter,
		ttl:      ttl,
		now:      time.Now,
		newToken: Generate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate 生成 URL 安全的随机令牌
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机令牌失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidEmail 简单的邮箱格式检查
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Issue 先落库再发邮件。软失败只记日志；硬失败返回 Dependency，令牌仍保留可重发
func (s *Service) Issue(ctx context.Context, email, issuedBy string) (*models.ApplicationToken, error) {
	const op = "token.Issue"
	email = strings.TrimSpace(email)
	issuedBy = strings.TrimSpace(issuedBy)
	if email == "" {
		return nil, apperr.Validation(op, "Email is required")
	}
	if issuedBy == "" {
		return nil, apperr.Validation(op, "issued_by (user ID) is required")
	}
	if !ValidEmail(email) {
		return nil, apperr.Validation(op, "Invalid email format")
	}

	value, err := s.newToken()
	if err != nil {
		return nil, apperr.Dependency(op, "", err)
	}
	t := &models.ApplicationToken{
		Token:     value,
		Email:     email,
		IssuedBy:  issuedBy,
		Status:    models.TokenStatusPending,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.CreateApplicationToken(ctx, t); err != nil {
		return nil, apperr.Dependency(op, "Failed to save invitation record.", err)
	}

	log := logger.Ctx(ctx)
	if s.inviter == nil {
		return t, nil
	}
	if err := s.inviter.SendInvitation(ctx, email, value); err != nil {
		if notify.IsSoftFailure(err) {
			log.Warn().Err(err).Str("issued_by", issuedBy).Msg("[mailgun] 邀请邮件软失败，令牌已保存")
			return t, nil
		}
		log.Error().Err(err).Str("issued_by", issuedBy).Msg("邀请邮件发送失败，令牌已保存")
		return nil, apperr.Dependency(op, "Failed to send invitation email. Please check Mailgun config.", err)
	}
	log.Info().Str("issued_by", issuedBy).Msg("邀请已发送")
	return t, nil
}

// Validate 失败时关闭：未知令牌只返回无效，不透露细节。
// PENDING 但已过期的令牌在此惰性迁移为 EXPIRED
func (s *Service) Validate(ctx context.Context, value string) (*Validation, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return &Validation{State: StateMissing, Reason: "Token is required"}, nil
	}

	t, err := s.store.GetApplicationToken(ctx, value)
	if errors.Is(err, storage.ErrNotFound) {
		return &Validation{State: StateUnknown, Reason: "Token is invalid"}, nil
	}
	if err != nil {
		return nil, apperr.Dependency("token.Validate", "", err)
	}

	if t.Status != models.TokenStatusPending {
		return &Validation{State: StateUsed, Reason: "Token has already been used or expired"}, nil
	}
	if !t.ExpiresAt.After(s.now()) {
		if _, err := s.store.ExpireApplicationToken(ctx, value); err != nil {
			apperr.Warn(ctx, "token.Expire", err)
		}
		return &Validation{State: StateExpired, Reason: "Token has expired"}, nil
	}
	return &Validation{Valid: true, Email: t.Email, State: StateValid}, nil
}

// Consume PENDING -> USED。令牌已被使用或过期时返回 Conflict
func (s *Service) Consume(ctx context.Context, value string) error {
	const op = "token.Consume"
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(op, "Token is required")
	}
	err := s.store.ConsumeApplicationToken(ctx, value, s.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrStaleState):
		return apperr.Conflict(op, "This invitation has already been used or expired")
	default:
		return apperr.Dependency(op, "", err)
	}
}

// BulkIssue 并发签发，单个失败不影响其他邮箱
func (s *Service) BulkIssue(ctx context.Context, emails []string, issuedBy string) (*BulkResult, error) {
	if len(emails) == 0 || strings.TrimSpace(issuedBy) == "" {
		return nil, apperr.Validation("token.BulkIssue", "Emails list and issued_by are required")
	}

	var mu sync.Mutex
	res := &BulkResult{Errors: []string{}}
	record := func(email string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			res.Success++
			return
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", email, apperr.PublicMessage(err)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, email := range emails {
		email := strings.TrimSpace(email)
		g.Go(func() error {
			_, err := s.Issue(gctx, email, issuedBy)
			record(email, err)
			return nil
		})
	}
	_ = g.Wait()

	logger.Ctx(ctx).Info().Int("success", res.Success).Int("failed", res.Failed).Msg("批量邀请完成")
	return res, nil
}

// List 签发人发出的邀请，最新的在前
func (s *Service) List(ctx context.Context, issuedBy string) ([]InviteView, error) {
	tokens, err := s.store.ListApplicationTokens(ctx, strings.TrimSpace(issuedBy))
	if err != nil {
		return nil, apperr.Dependency("token.List", "Failed to fetch invites", err)
	}
	now := s.now()
	views := make([]InviteView, 0, len(tokens))
	for _, t := range tokens {
		status := t.Status
		if status == models.TokenStatusPending && !t.ExpiresAt.After(now) {
			status = models.TokenStatusExpired
		}
		views = append(views, InviteView{
			ID:         t.ID,
			Email:      t.Email,
			Status:     status,
			CreatedAt:  t.CreatedAt,
			ExpiresAt:  t.ExpiresAt,
			UsedAt:     t.UsedAt,
			HasApplied: t.Status == models.TokenStatusUsed,
		})
	}
	return views, nil
}
