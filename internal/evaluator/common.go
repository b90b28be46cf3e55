// Package evaluator 封装三类结构化大模型调用：简历评分、面试评分、面试题生成
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/parser"
	"ai-hiring-go/internal/storage/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
)

// ErrEmptyResponse 模型没有返回内容
var ErrEmptyResponse = errors.New("LLM returned empty response")

// JobContext 评分和出题用到的岗位信息
type JobContext struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// String 渲染给模型看的岗位上下文，标题为空时退回通用描述
func (j JobContext) String() string {
	if strings.TrimSpace(j.Title) == "" {
		return constants.DefaultJobContext
	}
	desc := strings.TrimSpace(j.Description)
	if desc == "" {
		desc = "No description provided."
	}
	return fmt.Sprintf("Role: %s\n\nDescription: %s", j.Title, desc)
}

// generate 渲染模板并调用模型，返回原始文本
func generate(ctx context.Context, m model.ToolCallingChatModel, tpl prompt.ChatTemplate, vars map[string]any, opts ...model.Option) (string, error) {
	if m == nil {
		return "", errors.New("llm model is not initialized")
	}
	messages, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	resp, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

// decodeJSON 从模型输出里取出第一个 JSON 对象或数组并解析。
// 解析失败时修复字符串内未转义的引号再试一次
func decodeJSON(content string, array bool, v any) error {
	var raw string
	if array {
		raw = parser.ExtractJSONArray(content)
	} else {
		raw = parser.ExtractJSONObject(content)
	}
	if raw == "" {
		return fmt.Errorf("ai returned invalid JSON format: %.200s", content)
	}
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}

	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if fixErr := json.Unmarshal([]byte(parser.SanitizeJSON(raw)), v); fixErr != nil {
		return fmt.Errorf("ai returned invalid JSON format: %w", err)
	}
	return nil
}

// parseScore 接受整数、浮点和数字字符串，四舍五入后截到 [0,100]
func parseScore(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, errors.New("invalid score: missing")
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid score: %s", string(raw))
	}
	return ClampScore(int(math.Round(f))), nil
}

// stringOrEmpty 字段是 JSON 字符串时取其值，其他类型返回空串
func stringOrEmpty(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// ClampScore 截到 [0,100]
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// RecommendationForScore 80 及以上强匹配，50 及以上潜在匹配，其余弱匹配
func RecommendationForScore(score int) string {
	switch {
	case score >= 80:
		return models.RecommendationStrong
	case score >= 50:
		return models.RecommendationPotential
	default:
		return models.RecommendationWeak
	}
}

// normalizeRecommendation 非法值按分数推导，非字符串（数字、对象、null）同样视为非法
func normalizeRecommendation(raw json.RawMessage, score int) string {
	var rec string
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RecommendationForScore(score)
	}
	switch r := strings.ToUpper(strings.TrimSpace(rec)); r {
	case models.RecommendationStrong, models.RecommendationPotential, models.RecommendationWeak:
		return r
	}
	return RecommendationForScore(score)
}
