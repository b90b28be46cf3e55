// Package notify 候选人邮件通知
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-hiring-go/internal/config"
	"ai-hiring-go/internal/httpclient"
	"ai-hiring-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Message 一封邮件
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender 邮件投递通道
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrSendingDisabled 配置关闭了发送 (MAILGUN_DISABLE_SEND / MAILGUN_TEST_MODE)
var ErrSendingDisabled = errors.New("mail sending disabled")

// SoftFailError 可以吞掉的投递失败，例如沙箱域名只允许发给授权收件人
type SoftFailError struct {
	Err error
}

func (e *SoftFailError) Error() string {
	return "soft-fail: " + e.Err.Error()
}

func (e *SoftFailError) Unwrap() error {
	return e.Err
}

// IsSoftFailure 调用方据此决定是否忽略错误
func IsSoftFailure(err error) bool {
	var sf *SoftFailError
	return errors.As(err, &sf)
}

// ShouldSoftFail 根据服务商返回的错误信息判断是否属于测试环境限制
func ShouldSoftFail(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "authorized recipients") || strings.Contains(lower, "sandbox")
}

// MailgunSender 通过 Mailgun HTTP API 发信
type MailgunSender struct {
	cfg     config.MailConfig
	client  *client.Client
	timeout time.Duration
}

// NewMailgunSender 创建 Mailgun 发送器
func NewMailgunSender(cfg config.MailConfig) (*MailgunSender, error) {
	timeout := config.GetDuration(cfg.Timeout, 10*time.Second)
	c, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}
	return &MailgunSender{cfg: cfg, client: c, timeout: timeout}, nil
}

func (m *MailgunSender) from() string {
	if m.cfg.FromName == "" {
		return m.cfg.FromAddress
	}
	return fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromAddress)
}

// Send POST {provider_url}/{domain}/messages
func (m *MailgunSender) Send(ctx context.Context, msg Message) error {
	if m.cfg.DisableSend {
		logger.Ctx(ctx).Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("[mailgun] 发送已关闭，跳过邮件")
		return &SoftFailError{Err: ErrSendingDisabled}
	}
	if m.cfg.APIKey == "" || m.cfg.Domain == "" {
		return errors.New("MAILGUN_API_KEY or MAILGUN_DOMAIN not configured")
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(m.cfg.ProviderURL, "/") + "/" + m.cfg.Domain + "/messages")
	req.SetMethod(consts.MethodPost)
	req.SetHeader("Authorization", httpclient.BasicAuth("api", m.cfg.APIKey))
	req.SetFormData(map[string]string{
		"from":    m.from(),
		"to":      msg.To,
		"subject": msg.Subject,
		"text":    msg.Text,
		"html":    msg.HTML,
	})

	if err := m.client.DoTimeout(ctx, req, resp, m.timeout); err != nil {
		return fmt.Errorf("failed to send email via Mailgun: %w", err)
	}
	if status := resp.StatusCode(); status >= 400 {
		body := string(resp.Body())
		err := fmt.Errorf("failed to send email via Mailgun: %d %s", status, body)
		if ShouldSoftFail(body) {
			return &SoftFailError{Err: err}
		}
		return err
	}
	return nil
}
