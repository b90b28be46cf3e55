package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-hiring-go/internal/parser"
	"ai-hiring-go/pkg/agent"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyTranscript 没有任何问答可供评分
var ErrEmptyTranscript = errors.New("interview transcript is empty")

const graderSystemPrompt = `You are an expert technical interviewer and hiring manager. Analyze the provided interview transcript to evaluate the candidate. You must output a valid JSON object matching the exact structure below.

Output Structure:
{{
  "score": (integer 0-100),
  "recommendation": "STRONG_MATCH" | "POTENTIAL_MATCH" | "WEAK_MATCH",
  "summary": "A professional paragraph summarizing the candidate's fit (approx 3-4 sentences).",
  "matched_skills": [
       {{ "skill": "Skill Name", "reason": "Evidence from transcript" }}
   ],
  "missing_skills": [
       {{ "skill": "Skill Name", "reason": "Why it is considered missing or weak" }}
   ],
  "strengths": [
       {{ "header": "Short Title", "detail": "Detailed explanation" }}
   ],
  "areas_for_improvement": [
       {{ "header": "Short Title", "detail": "Detailed explanation" }}
   ]
}}

Guidelines:
1. Score: 80-100 is STRONG_MATCH, 50-79 is POTENTIAL_MATCH, below 50 is WEAK_MATCH.
2. Matched Skills: Identify technical skills the candidate demonstrated proficiency in based on their answers.
3. Missing Skills: Identify skills asked about in the questions where the candidate struggled, or standard skills implied by the role that were not mentioned.
4. Strengths: Focus on broad attributes (e.g., 'Project Experience', 'Communication', 'Technical Depth').
5. Areas for Improvement: Focus on red flags or weak spots (e.g., 'Limited Professional Experience', 'Theoretical Knowledge only').`

const graderUserPrompt = `JOB CONTEXT:
{job_context}

INTERVIEW TRANSCRIPT:
{transcript}`

// SkillNote 技能及依据
type SkillNote struct {
	Skill  string `json:"skill"`
	Reason string `json:"reason"`
}

// Highlight 优势或待改进项
type Highlight struct {
	Header string `json:"header"`
	Detail string `json:"detail"`
}

// InterviewGrade 面试评分结果
type InterviewGrade struct {
	Score               int         `json:"score"`
	Recommendation      string      `json:"recommendation"`
	Summary             string      `json:"summary"`
	MatchedSkills       []SkillNote `json:"matched_skills"`
	MissingSkills       []SkillNote `json:"missing_skills"`
	Strengths           []Highlight `json:"strengths"`
	AreasForImprovement []Highlight `json:"areas_for_improvement"`
}

// InterviewGrader 根据问答记录给面试打分
type InterviewGrader struct {
	llm      model.ToolCallingChatModel
	template prompt.ChatTemplate
}

// NewInterviewGrader 创建面试评分器
func NewInterviewGrader(llm model.ToolCallingChatModel) *InterviewGrader {
	return &InterviewGrader{
		llm: llm,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(graderSystemPrompt),
			schema.UserMessage(graderUserPrompt),
		),
	}
}

// Grade 问答按顺序序列化为 JSON 数组交给模型
func (g *InterviewGrader) Grade(ctx context.Context, job JobContext, transcript []parser.QAPair) (*InterviewGrade, error) {
	if len(transcript) == 0 {
		return nil, ErrEmptyTranscript
	}
	transcriptJSON, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化面试记录失败: %w", err)
	}

	content, err := generate(ctx, g.llm, g.template, map[string]any{
		"job_context": job.String(),
		"transcript":  string(transcriptJSON),
	},
		model.WithTemperature(0.2),
		agent.WithJSONResponse(),
	)
	if err != nil {
		return nil, err
	}
	return parseInterviewGrade(content)
}

func parseInterviewGrade(content string) (*InterviewGrade, error) {
	var raw struct {
		InterviewGrade
		Score          json.RawMessage `json:"score"`
		Recommendation json.RawMessage `json:"recommendation"`
		Summary        json.RawMessage `json:"summary"`
	}
	if err := decodeJSON(content, false, &raw); err != nil {
		return nil, err
	}
	score, err := parseScore(raw.Score)
	if err != nil {
		return nil, err
	}

	grade := raw.InterviewGrade
	grade.Score = score
	grade.Recommendation = normalizeRecommendation(raw.Recommendation, score)
	grade.Summary = stringOrEmpty(raw.Summary)
	if grade.Summary == "" {
		grade.Summary = defaultSummary
	}
	grade.MatchedSkills = nonNilSkills(grade.MatchedSkills)
	grade.MissingSkills = nonNilSkills(grade.MissingSkills)
	grade.Strengths = nonNilHighlights(grade.Strengths)
	grade.AreasForImprovement = nonNilHighlights(grade.AreasForImprovement)
	return &grade, nil
}

func nonNilSkills(s []SkillNote) []SkillNote {
	if s == nil {
		return []SkillNote{}
	}
	return s
}

func nonNilHighlights(h []Highlight) []Highlight {
	if h == nil {
		return []Highlight{}
	}
	return h
}
