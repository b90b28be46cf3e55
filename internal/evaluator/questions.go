package evaluator

import (
	"context"
	"errors"
	"strings"

	"ai-hiring-go/internal/constants"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// ErrNoQuestions 模型没有给出可用题目
var ErrNoQuestions = errors.New("LLM generated no interview questions")

const questionPrompt = `You are an expert technical recruiter. Generate {count} interview questions for the role of "{title}".

Job Description:
{description}

Requirements:
1. The first question must be an introduction (e.g., "Tell us about yourself").
2. The remaining questions should be specific to the skills in the description.
3. Keep questions concise (under 30 words) so they are easy to listen to via TTS.
4. Return ONLY a raw JSON array of strings. Example: ["Question 1", "Question 2"]`

// QuestionGenerator 为岗位生成面试题
type QuestionGenerator struct {
	llm      model.ToolCallingChatModel
	template prompt.ChatTemplate
	count    int
}

// NewQuestionGenerator count<=0 时使用默认题量
func NewQuestionGenerator(llm model.ToolCallingChatModel, count int) *QuestionGenerator {
	if count <= 0 {
		count = constants.InterviewQuestionCount
	}
	return &QuestionGenerator{
		llm:      llm,
		template: prompt.FromMessages(schema.FString, schema.UserMessage(questionPrompt)),
		count:    count,
	}
}

// Generate 返回按顺序排列的题目文本，多余的题目丢弃
func (g *QuestionGenerator) Generate(ctx context.Context, job JobContext) ([]string, error) {
	desc := strings.TrimSpace(job.Description)
	if desc == "" {
		desc = constants.DefaultJobContext
	}
	content, err := generate(ctx, g.llm, g.template, map[string]any{
		"count":       g.count,
		"title":       job.Title,
		"description": desc,
	}, model.WithTemperature(0.7))
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := decodeJSON(content, true, &raw); err != nil {
		return nil, err
	}

	questions := make([]string, 0, g.count)
	for _, item := range raw {
		q := stringify(item)
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == g.count {
			break
		}
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return questions, nil
}
