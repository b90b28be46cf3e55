package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ai-hiring-go/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_Allow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tb := NewTokenBucket(60, 2)
	tb.now = func() time.Time { return now }
	tb.lastRefillTime = now

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "容量用尽后应拒绝")

	now = now.Add(time.Second)
	assert.True(t, tb.Allow(), "60 QPM 每秒补充一个令牌")
	assert.False(t, tb.Allow())

	now = now.Add(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "补充不超过容量")
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsRetryableError(fmt.Errorf("wrap: %w", &agent.APIError{StatusCode: 429})))
	assert.True(t, IsRetryableError(&agent.APIError{StatusCode: 503}))
	assert.False(t, IsRetryableError(&agent.APIError{StatusCode: 400, Body: "timeout in body"}), "Temporary 优先于关键字")
	assert.False(t, IsRetryableError(errors.New("invalid api key")))
}

func TestRetryWithBackoff(t *testing.T) {
	tb := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 2)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &agent.APIError{StatusCode: 502}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "不可重试错误只调用一次")
}

func TestRateLimitedLLMModel_Generate(t *testing.T) {
	mock := agent.NewMockChatClientSequential(
		agent.MockResponse{Error: &agent.APIError{StatusCode: 429}},
		agent.MockResponse{Content: `{"ok":true}`},
	)
	m := NewLLMWithRateLimit(mock, "qwen-plus", map[string]int{"qwen-plus": 6000}, 2, time.Millisecond)

	msg, err := m.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, msg.Content)
	assert.Equal(t, 2, mock.Calls())
}
