package agent

import (
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
	defaultSpeechModel = "tts-1"
	defaultSpeechVoice = "alloy"
)

// Speaker 调用 OpenAI 兼容的 /audio/speech 接口，把面试题读成 mp3
type Speaker struct {
	apiKey  string
	url     string
	model   string
	voice   string
	timeout time.Duration
	client  *client.Client
}

// NewSpeaker url 为空时返回错误，调用方据此决定是否启用题目朗读
func NewSpeaker(apiKey, url, modelName, voice string, timeout time.Duration) (*Speaker, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("未配置语音合成服务地址")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultSpeechModel
	}
	if strings.TrimSpace(voice) == "" {
		voice = defaultSpeechVoice
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}
	return &Speaker{apiKey: apiKey, url: url, model: modelName, voice: voice, timeout: timeout, client: c}, nil
}

// Speak 返回 mp3 音频字节
func (s *Speaker) Speak(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("朗读文本为空")
	}
	body, err := json.Marshal(map[string]string{
		"model":           s.model,
		"voice":           s.voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("序列化语音合成请求失败: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.SetMethod(consts.MethodPost)
	req.SetHeader("Authorization", "Bearer "+s.apiKey)
	req.SetHeader("Content-Type", "application/json")
	req.SetBody(body)

	if err := s.client.DoTimeout(ctx, req, resp, s.timeout); err != nil {
		return nil, fmt.Errorf("语音合成请求失败: %w", err)
	}
	if resp.StatusCode() != consts.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("语音合成结果为空")
	}
	// resp 会被回收，复制一份
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}
