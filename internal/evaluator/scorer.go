package evaluator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ai-hiring-go/internal/logger"
	"ai-hiring-go/pkg/agent"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const defaultSummary = "Evaluation completed."

const scorerSystemPrompt = `You are an AI recruitment assistant.
Evaluate candidates objectively based only on provided resume and job description.
Do not speculate or invent skills that are not explicitly mentioned.
Respond ONLY in valid JSON format.
Never recommend hiring or rejecting - only provide objective evaluation.`

// FString 模板，字面量花括号需要写成双括号
const scorerUserPrompt = `JOB DESCRIPTION:

Title: {title}
{description}

CANDIDATE RESUME:

{resume}

TASK:

Evaluate how suitable this candidate is for the job based ONLY on the information provided.

Return a JSON object with the following structure:
{{
  "score": <number between 0-100>,
  "recommendation": "<STRONG_MATCH | POTENTIAL_MATCH | WEAK_MATCH>",
  "matched_skills": {{"skill": "description", ...}},
  "missing_skills": {{"skill": "description", ...}},
  "strengths": {{"strength": "description", ...}},
  "weaknesses": {{"weakness": "description", ...}},
  "summary": "<short paragraph summarizing the evaluation>"
}}

IMPORTANT:
- Only include skills explicitly mentioned in the resume or job description
- Do not invent or assume skills
- Be objective and fair
- Recommendation should be based on score: 80-100 = STRONG_MATCH, 50-79 = POTENTIAL_MATCH, 0-49 = WEAK_MATCH`

// ResumeScore 简历评分结果，技能与优缺点统一为 {名称: 说明}
type ResumeScore struct {
	Score          int               `json:"score"`
	Recommendation string            `json:"recommendation"`
	MatchedSkills  map[string]string `json:"matched_skills"`
	MissingSkills  map[string]string `json:"missing_skills"`
	Strengths      map[string]string `json:"strengths"`
	Weaknesses     map[string]string `json:"weaknesses"`
	Summary        string            `json:"summary"`
}

type rawResumeScore struct {
	Score          json.RawMessage `json:"score"`
	Recommendation json.RawMessage `json:"recommendation"`
	MatchedSkills  json.RawMessage `json:"matched_skills"`
	MissingSkills  json.RawMessage `json:"missing_skills"`
	Strengths      json.RawMessage `json:"strengths"`
	Weaknesses     json.RawMessage `json:"weaknesses"`
	Summary        json.RawMessage `json:"summary"`
}

// ResumeScorer 简历与岗位匹配度评分
type ResumeScorer struct {
	llm         model.ToolCallingChatModel
	template    prompt.ChatTemplate
	temperature float32
	maxTokens   int
}

// ResumeScorerOption 评分器配置
type ResumeScorerOption func(*ResumeScorer)

// WithScorerTemperature 默认 0.3
func WithScorerTemperature(t float32) ResumeScorerOption {
	return func(s *ResumeScorer) { s.temperature = t }
}

// NewResumeScorer 创建评分器
func NewResumeScorer(llm model.ToolCallingChatModel, opts ...ResumeScorerOption) *ResumeScorer {
	s := &ResumeScorer{
		llm: llm,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(scorerSystemPrompt),
			schema.UserMessage(scorerUserPrompt),
		),
		temperature: 0.3,
		maxTokens:   2000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score 调用模型评分并做规范化：分数截断到 [0,100]，推荐结论非法时按分数推导
func (s *ResumeScorer) Score(ctx context.Context, job JobContext, resumeText string) (*ResumeScore, error) {
	description := "No description provided."
	if d := strings.TrimSpace(job.Description); d != "" {
		description = "Description: " + d
	}

	start := time.Now()
	content, err := generate(ctx, s.llm, s.template, map[string]any{
		"title":       job.Title,
		"description": description,
		"resume":      resumeText,
	},
		model.WithTemperature(s.temperature),
		model.WithMaxTokens(s.maxTokens),
		agent.WithJSONResponse(),
	)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Debug().Dur("latency", time.Since(start)).Int("response_len", len(content)).Msg("简历评分模型返回")

	return parseResumeScore(content)
}

func parseResumeScore(content string) (*ResumeScore, error) {
	var raw rawResumeScore
	if err := decodeJSON(content, false, &raw); err != nil {
		return nil, err
	}
	score, err := parseScore(raw.Score)
	if err != nil {
		return nil, err
	}

	summary := stringOrEmpty(raw.Summary)
	if summary == "" {
		summary = defaultSummary
	}

	return &ResumeScore{
		Score:          score,
		Recommendation: normalizeRecommendation(raw.Recommendation, score),
		MatchedSkills:  NormalizeField(raw.MatchedSkills),
		MissingSkills:  NormalizeField(raw.MissingSkills),
		Strengths:      NormalizeField(raw.Strengths),
		Weaknesses:     NormalizeField(raw.Weaknesses),
		Summary:        summary,
	}, nil
}
