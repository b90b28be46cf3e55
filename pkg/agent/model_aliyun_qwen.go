package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-hiring-go/internal/httpclient"
	"ai-hiring-go/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	// DashScope 的 OpenAI 兼容接口
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-plus"
)

// QwenOptions 模型专属调用选项
type QwenOptions struct {
	JSONMode bool
}

// WithJSONResponse 要求模型只输出 JSON 对象 (response_format=json_object)
func WithJSONResponse() model.Option {
	return model.WrapImplSpecificOptFn(func(o *QwenOptions) {
		o.JSONMode = true
	})
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Tools          []openAITool    `json:"tools,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string  `json:"role"`
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// APIError 模型服务返回的非 200 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API 请求失败，状态 %d: %s", e.StatusCode, e.Body)
}

// Temporary 429 和 5xx 可以重试
func (e *APIError) Temporary() bool {
	return e.StatusCode == consts.StatusTooManyRequests || e.StatusCode >= 500
}

// AliyunQwenChatModel 通义千问 (OpenAI 兼容协议) 的 model.ToolCallingChatModel 实现
type AliyunQwenChatModel struct {
	apiKey    string
	modelName string
	apiURL    string
	timeout   time.Duration
	client    *client.Client
	tools     []openAITool
}

// NewAliyunQwenChatModel 创建模型客户端；modelName/apiURL 为空时使用默认值
func NewAliyunQwenChatModel(apiKey, modelName, apiURL string, timeout time.Duration) (*AliyunQwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultQwenModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = openAICompatibleQwenAPIURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	c, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("api_url", apiURL).Str("model", modelName).Msg("使用阿里云通义千问 LLM 客户端")

	return &AliyunQwenChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		apiURL:    apiURL,
		timeout:   timeout,
		client:    c,
	}, nil
}

// ModelName 实际使用的模型名
func (aq *AliyunQwenChatModel) ModelName() string {
	return aq.modelName
}

func (aq *AliyunQwenChatModel) buildRequest(messages []*schema.Message, options ...model.Option) chatCompletionRequest {
	common := model.GetCommonOptions(&model.Options{}, options...)
	specific := model.GetImplSpecificOptions(&QwenOptions{}, options...)

	payload := chatCompletionRequest{
		Model:       aq.modelName,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: common.Temperature,
		MaxTokens:   common.MaxTokens,
		Tools:       aq.tools,
	}
	if common.Model != nil && *common.Model != "" {
		payload.Model = *common.Model
	}
	if specific.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	for _, m := range messages {
		if m == nil {
			continue
		}
		payload.Messages = append(payload.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return payload
}

// Generate 实现 model.BaseChatModel
func (aq *AliyunQwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	payload := aq.buildRequest(messages, options...)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(aq.apiURL)
	req.SetMethod(consts.MethodPost)
	req.SetHeader("Authorization", "Bearer "+aq.apiKey)
	req.SetHeader("Content-Type", "application/json")
	req.SetBody(body)

	start := time.Now()
	if err := aq.client.DoTimeout(ctx, req, resp, aq.timeout); err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}

	respBody := resp.Body()
	logger.Ctx(ctx).Debug().
		Str("model", payload.Model).
		Int("status", resp.StatusCode()).
		Dur("latency", time.Since(start)).
		Int("response_bytes", len(respBody)).
		Msg("[阿里云通义千问模型] 收到响应")

	if resp.StatusCode() != consts.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(respBody)}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(respBody))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(respBody))
	}

	choice := parsed.Choices[0].Message
	result := &schema.Message{Role: schema.Assistant}
	if choice.Role != "" {
		result.Role = schema.RoleType(choice.Role)
	}
	if choice.Content != nil {
		result.Content = *choice.Content
	}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, schema.ToolCall{
			ID: tc.ID,
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return result, nil
}

// Stream 本服务只做一次性结构化输出，不支持流式
func (aq *AliyunQwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("AliyunQwenChatModel 不支持 Stream")
}

// WithTools 返回绑定了工具的新实例，原实例不变。参数 schema 统一按空对象声明
func (aq *AliyunQwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *aq
	clone.tools = make([]openAITool, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		clone.tools = append(clone.tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Desc,
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		})
	}
	return &clone, nil
}

var _ model.ToolCallingChatModel = (*AliyunQwenChatModel)(nil)
