package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-hiring-go/internal/httpclient"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	defaultTranscribeModel = "whisper-1"
	transcriptionPrompt    = "This is a technical job interview answer."
)

// Transcriber 调用 OpenAI 兼容的 /audio/transcriptions 接口
type Transcriber struct {
	apiKey  string
	url     string
	model   string
	timeout time.Duration
	client  *client.Client
}

// NewTranscriber url 为空时返回错误，调用方据此决定是否启用语音转写
func NewTranscriber(apiKey, url, modelName string, timeout time.Duration) (*Transcriber, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("未配置转写服务地址")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultTranscribeModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}
	return &Transcriber{apiKey: apiKey, url: url, model: modelName, timeout: timeout, client: c}, nil
}

// Transcribe 上传一段音频，返回识别文本
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("音频为空")
	}
	if filename == "" {
		filename = "answer.webm"
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(t.url)
	req.SetMethod(consts.MethodPost)
	req.SetHeader("Authorization", "Bearer "+t.apiKey)
	req.SetMultipartFormData(map[string]string{
		"model":    t.model,
		"language": "en",
		"prompt":   transcriptionPrompt,
	})
	req.SetFileReader("file", filename, bytes.NewReader(audio))

	if err := t.client.DoTimeout(ctx, req, resp, t.timeout); err != nil {
		return "", fmt.Errorf("转写请求失败: %w", err)
	}
	if resp.StatusCode() != consts.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("解析转写结果失败: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
