package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
)

const (
	defaultRejectionMessage = "Thank you for your interest. Unfortunately, we have decided to move forward with other candidates."
	defaultOfferMessage     = "Our team will be in touch shortly with the official offer letter and next steps."
)

var (
	inviteTmpl = template.Must(template.New("invite").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">You've been invited to apply</h2>
  <p style="color: #666; line-height: 1.6;">You have been invited to apply for a position. This link expires in 48 hours.</p>
  <div style="margin: 30px 0;">
    <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #007bff; color: white; text-decoration: none; border-radius: 4px; font-weight: bold;">Apply Now</a>
  </div>
  <p style="color: #999; font-size: 14px; margin-top: 30px;">Or copy and paste this link into your browser:<br/><a href="{{.Link}}" style="color: #007bff;">{{.Link}}</a></p>
</div>`))

	approvalTmpl = template.Must(template.New("approval").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #28a745; margin-top: 0;">Congratulations!</h2>
  <p style="color: #333; font-size: 16px;">We are pleased to inform you that your application for <strong>{{.JobTitle}}</strong> has been approved!</p>
  {{if .Message}}<div style="background-color: #f8f9fa; padding: 15px; border-radius: 4px; margin: 20px 0;">{{.Message}}</div>{{end}}
  {{if .Link}}<div style="margin: 30px 0; padding: 20px; background-color: #f0fdf4; border: 1px solid #bbf7d0; border-radius: 8px;">
    <p style="font-weight: bold; margin-top: 0;">Next Step: AI Interview</p>
    <div style="margin: 20px 0;"><a href="{{.Link}}" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: bold;">Start AI Interview</a></div>
    <p style="font-size: 13px; color: #666; margin-bottom: 0;">If the button doesn't work, copy this link:<br><a href="{{.Link}}" style="color: #2563eb;">{{.Link}}</a></p>
  </div>{{end}}
  <p style="color: #666; font-size: 14px; margin-top: 30px;">Best regards,<br/>The Hiring Team</p>
</div>`))

	rejectionTmpl = template.Must(template.New("rejection").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Application Update</h2>
  <p style="color: #333;">Regarding your application for <strong>{{.JobTitle}}</strong>.</p>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 4px; margin: 20px 0;">{{.Message}}</div>
  <p style="color: #666; font-size: 14px;">We wish you the best in your job search.</p>
</div>`))

	offerTmpl = template.Must(template.New("offer").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #28a745; margin-top: 0;">Job Offer: {{.JobTitle}}</h2>
  <p style="color: #333; font-size: 16px;">We are delighted to offer you the position of <strong>{{.JobTitle}}</strong>!</p>
  <div style="background-color: #f0fdf4; padding: 20px; border: 1px solid #bbf7d0; border-radius: 8px; margin: 20px 0;"><p style="margin: 0; font-style: italic;">{{.Message}}</p></div>
  <p style="color: #666; font-size: 14px; margin-top: 30px;">Our team will be in touch shortly with the official offer letter and next steps.</p>
  <p style="color: #666; font-size: 14px;">Best regards,<br/>The Hiring Team</p>
</div>`))
)

type templateData struct {
	JobTitle string
	Message  string
	Link     string
}

// Notifier 渲染并发送招聘流程中的各类邮件
type Notifier struct {
	sender Sender
	appURL string
}

// NewNotifier appURL 是前端地址，用于拼接申请与面试链接
func NewNotifier(sender Sender, appURL string) *Notifier {
	return &Notifier{sender: sender, appURL: strings.TrimRight(appURL, "/")}
}

// InviteURL 申请链接
func (n *Notifier) InviteURL(token string) string {
	return n.appURL + "/apply/" + token
}

// InterviewURL 面试链接
func (n *Notifier) InterviewURL(accessToken string) string {
	return n.appURL + "/interview/" + accessToken
}

// SendInvitation 邀请候选人申请
func (n *Notifier) SendInvitation(ctx context.Context, email, token string) error {
	link := n.InviteURL(token)
	html, err := render(inviteTmpl, templateData{Link: link})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      email,
		Subject: "Invitation to Apply",
		Text:    fmt.Sprintf("You've been invited to apply.\n\nLink: %s", link),
		HTML:    html,
	})
}

// SendApproval 简历通过，附面试链接
func (n *Notifier) SendApproval(ctx context.Context, email, jobTitle, message, accessToken string) error {
	link := ""
	if accessToken != "" {
		link = n.InterviewURL(accessToken)
	}
	html, err := render(approvalTmpl, templateData{JobTitle: jobTitle, Message: message, Link: link})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      email,
		Subject: "Application Approved - " + jobTitle,
		Text:    fmt.Sprintf("Congratulations! Your application for %s has been approved.\n\n%s\n\nStart Interview: %s", jobTitle, message, link),
		HTML:    html,
	})
}

// SendRejection 拒信
func (n *Notifier) SendRejection(ctx context.Context, email, jobTitle, message string) error {
	if strings.TrimSpace(message) == "" {
		message = defaultRejectionMessage
	}
	html, err := render(rejectionTmpl, templateData{JobTitle: jobTitle, Message: message})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      email,
		Subject: "Application Update - " + jobTitle,
		Text:    fmt.Sprintf("Update regarding %s.\n\n%s", jobTitle, message),
		HTML:    html,
	})
}

// SendOffer 面试完成且通过后的录用通知
func (n *Notifier) SendOffer(ctx context.Context, email, jobTitle, message string) error {
	if strings.TrimSpace(message) == "" {
		message = defaultOfferMessage
	}
	html, err := render(offerTmpl, templateData{JobTitle: jobTitle, Message: message})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      email,
		Subject: "Job Offer - " + jobTitle,
		Text:    fmt.Sprintf("Job Offer: %s\n\n%s\n\nOur team will contact you shortly.", jobTitle, message),
		HTML:    html,
	})
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染邮件模板 %s 失败: %w", t.Name(), err)
	}
	return buf.String(), nil
}
