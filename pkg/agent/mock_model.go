package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatClient 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatClient 按顺序回放预设响应的 model.ToolCallingChatModel，测试用。
// 只配置一条响应时每次调用都返回它
type MockChatClient struct {
	mu        sync.Mutex
	responses []MockResponse
	next      int

	received [][]*schema.Message
	options  [][]model.Option
}

// NewMockChatClient 返回固定响应
func NewMockChatClient(content string, err error) *MockChatClient {
	return &MockChatClient{responses: []MockResponse{{Content: content, Error: err}}}
}

// NewMockChatClientSequential 依次返回 responses，用尽后报错
func NewMockChatClientSequential(responses ...MockResponse) *MockChatClient {
	return &MockChatClient{responses: responses}
}

// Generate 记录输入并返回下一条预设响应
func (m *MockChatClient) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received = append(m.received, append([]*schema.Message(nil), input...))
	m.options = append(m.options, opts)

	if len(m.responses) == 0 {
		return nil, errors.New("mock client has no responses configured")
	}
	var resp MockResponse
	switch {
	case len(m.responses) == 1:
		resp = m.responses[0]
	case m.next < len(m.responses):
		resp = m.responses[m.next]
		m.next++
	default:
		return nil, errors.New("mock client has run out of sequential responses")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 未实现
func (m *MockChatClient) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not implemented in MockChatClient")
}

// WithTools 忽略工具，返回自身
func (m *MockChatClient) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 已发生的 Generate 次数
func (m *MockChatClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// LastMessages 最近一次调用收到的消息
func (m *MockChatClient) LastMessages() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

// LastOptions 最近一次调用的选项
func (m *MockChatClient) LastOptions() []model.Option {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return nil
	}
	return m.options[len(m.options)-1]
}

var _ model.ToolCallingChatModel = (*MockChatClient)(nil)
